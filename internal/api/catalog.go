package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/pkg/models"
)

func productRows(products []models.Product) []models.ProductRow {
	rows := make([]models.ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, p.Row())
	}
	return rows
}

// getProducts serves keyword search and category browsing from one route.
// Search wins when both parameters are present.
func (s *Server) getProducts(c echo.Context) error {
	ctx := c.Request().Context()
	search := c.QueryParam("search")
	category := c.QueryParam("category")
	sub := c.QueryParam("sub_category")

	var (
		products []models.Product
		err      error
	)
	switch {
	case search != "":
		products, err = s.deps.Catalog.SearchProducts(ctx, search)
	case category != "" && sub != "":
		products, err = s.deps.Catalog.ProductsBySubCategory(ctx, category, sub)
	case category != "":
		products, err = s.deps.Catalog.ProductsByCategory(ctx, category)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "search or category is required")
	}
	if err != nil {
		log.Error().Err(err).Str("search", search).Str("category", category).Msg("product query failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "product query failed")
	}

	return c.JSON(http.StatusOK, productRows(products))
}

func (s *Server) getCategories(c echo.Context) error {
	names, err := s.deps.Catalog.CategoryNames(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("category query failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "category query failed")
	}
	if names == nil {
		names = []string{}
	}
	return c.JSON(http.StatusOK, names)
}

func (s *Server) getSubCategories(c echo.Context) error {
	category := c.QueryParam("category")
	if category == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "category is required")
	}

	subs, err := s.deps.Catalog.SubCategories(c.Request().Context(), category)
	if err != nil {
		log.Error().Err(err).Str("category", category).Msg("subcategory query failed")
		return echo.NewHTTPError(http.StatusInternalServerError, "subcategory query failed")
	}
	if subs == nil {
		subs = []models.SubCategory{}
	}
	return c.JSON(http.StatusOK, subs)
}
