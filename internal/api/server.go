// Package api is the storefront HTTP server: catalog browsing, the chat
// NLU endpoint, orders, cart persistence, and OTP login.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/internal/nlu"
	"github.com/cosmocart/cosmocart/pkg/models"
)

// Catalog is the product read surface the handlers serve from.
type Catalog interface {
	SearchProducts(ctx context.Context, query string) ([]models.Product, error)
	ProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	ProductsBySubCategory(ctx context.Context, category, sub string) ([]models.Product, error)
	CategoryNames(ctx context.Context) ([]string, error)
	SubCategories(ctx context.Context, category string) ([]models.SubCategory, error)
}

// OrderStore persists and lists orders.
type OrderStore interface {
	CreateOrder(ctx context.Context, payload models.OrderPayload) (*models.Order, error)
	Orders(ctx context.Context, userID string) ([]models.Order, error)
}

// CartStore persists per-user cart snapshots.
type CartStore interface {
	FetchCart(ctx context.Context, userID string) ([]models.CartLine, error)
	SaveCart(ctx context.Context, userID string, lines []models.CartLine) error
}

// AuthStore handles OTP login records.
type AuthStore interface {
	SaveOTP(ctx context.Context, mobile, otp string) error
	ConsumeOTP(ctx context.Context, mobile, otp string) error
	UpsertUser(ctx context.Context, mobile, name string) (*models.User, error)
}

// ChatAgent answers one chat utterance.
type ChatAgent interface {
	Answer(ctx context.Context, message string) nlu.Reply
}

// OrderQueue schedules post-order background work.
type OrderQueue interface {
	EnqueueOrderProcess(ctx context.Context, orderID int64, userID string) error
}

// Deps bundles everything the server needs. Agent and Queue may be nil:
// without an agent /api/chat degrades to UNKNOWN replies, and without a
// queue orders simply stay in Processing.
type Deps struct {
	Catalog Catalog
	Orders  OrderStore
	Carts   CartStore
	Auth    AuthStore
	Agent   ChatAgent
	Queue   OrderQueue
	Tokens  *TokenService
}

// Server is the storefront API server.
type Server struct {
	echo     *echo.Echo
	deps     Deps
	sessions *sessionRegistry
	host     string
	port     int
}

// NewServer creates the server with its middleware and routes wired.
func NewServer(host string, port int, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	e.Use(requestLogger())
	if deps.Tokens != nil {
		e.Use(deps.Tokens.Middleware())
	}

	server := &Server{
		echo:     e,
		deps:     deps,
		sessions: newSessionRegistry(),
		host:     host,
		port:     port,
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
	})

	s.echo.GET("/products", s.getProducts)
	s.echo.GET("/categories", s.getCategories)
	s.echo.GET("/subcategories", s.getSubCategories)

	s.echo.POST("/api/chat", s.postChat)

	s.echo.POST("/orders", s.createOrder)
	s.echo.GET("/orders/:user_id", s.getOrders)

	s.echo.GET("/cart/:user_id", s.getCart)
	s.echo.POST("/cart", s.saveCart)

	s.echo.POST("/send-otp", s.sendOTP)
	s.echo.POST("/verify-otp", s.verifyOTP)

	// Server-held chat sessions. These carry per-user engine state, so a
	// verified login is required.
	v1 := s.echo.Group("/api/v1", requireUser)
	v1.POST("/sessions", s.createSession)
	v1.POST("/sessions/:id/message", s.sessionMessage)
	v1.POST("/sessions/:id/option", s.sessionOption)
	v1.POST("/sessions/:id/table-confirm", s.sessionTableConfirm)
	v1.POST("/sessions/:id/recipe", s.sessionRecipe)
	v1.GET("/sessions/:id/transcript", s.sessionTranscript)
	v1.DELETE("/sessions/:id", s.closeSession)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start runs the server until an interrupt arrives, then shuts down
// gracefully.
func (s *Server) Start() error {
	go func() {
		addr := fmt.Sprintf("%s:%d", s.host, s.port)
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(ctx)
}

// requestLogger emits one structured line per request.
func requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogMethod: true,
		LogStatus: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := log.Info()
			if v.Error != nil {
				evt = log.Warn().Err(v.Error)
			}
			evt.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Msg("request")
			return nil
		},
	})
}
