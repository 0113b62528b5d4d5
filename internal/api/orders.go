package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/pkg/models"
)

func (s *Server) createOrder(c echo.Context) error {
	var payload models.OrderPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if len(payload.Items) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "order has no items")
	}
	if payload.UserID == "" {
		payload.UserID = "guest"
	}
	if user := currentUser(c); user != nil {
		payload.UserID = user.ID
		if payload.UserName == "" {
			payload.UserName = user.Name
		}
	}

	ctx := c.Request().Context()
	order, err := s.deps.Orders.CreateOrder(ctx, payload)
	if err != nil {
		log.Error().Err(err).Str("user_id", payload.UserID).Msg("order creation failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not place order")
	}

	// Finalization happens in the background. A queue hiccup leaves the
	// order in Processing, which the shopper already sees as placed.
	if s.deps.Queue != nil {
		if err := s.deps.Queue.EnqueueOrderProcess(ctx, order.ID, order.UserID); err != nil {
			log.Warn().Err(err).Int64("order_id", order.ID).Msg("failed to queue order processing")
		}
	}

	log.Info().
		Int64("order_id", order.ID).
		Str("user_id", order.UserID).
		Int("total", order.TotalAmount).
		Msg("order placed")
	return c.JSON(http.StatusCreated, order)
}

func (s *Server) getOrders(c echo.Context) error {
	userID := c.Param("user_id")
	orders, err := s.deps.Orders.Orders(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("order listing failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return c.JSON(http.StatusOK, orders)
}

type cartSyncRequest struct {
	UserID string             `json:"user_id"`
	Items  []models.OrderItem `json:"items"`
}

func (s *Server) getCart(c echo.Context) error {
	userID := c.Param("user_id")
	lines, err := s.deps.Carts.FetchCart(c.Request().Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("cart fetch failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not fetch cart")
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		weight := l.Product.SelectedWeight
		if weight == "" {
			weight = "std"
		}
		items = append(items, models.OrderItem{
			ProductID:   l.Product.ID,
			ProductName: l.Product.Name,
			Quantity:    l.Quantity,
			Price:       l.Product.Price,
			Weight:      weight,
			ImageURL:    l.Product.ImageURL,
		})
	}
	return c.JSON(http.StatusOK, items)
}

func (s *Server) saveCart(c echo.Context) error {
	var req cartSyncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	lines := make([]models.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		p := models.Product{
			ID:           item.ProductID,
			Name:         item.ProductName,
			Price:        item.Price,
			PerUnitPrice: item.Price,
			ImageURL:     item.ImageURL,
		}
		if item.Weight != "" && item.Weight != "std" {
			p.SelectedWeight = item.Weight
		}
		lines = append(lines, models.CartLine{Product: p, Quantity: item.Quantity})
	}

	if err := s.deps.Carts.SaveCart(c.Request().Context(), req.UserID, lines); err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("cart save failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "could not save cart")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}
