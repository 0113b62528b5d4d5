package api

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/internal/cart"
	"github.com/cosmocart/cosmocart/internal/conversation"
	"github.com/cosmocart/cosmocart/internal/nlu"
	"github.com/cosmocart/cosmocart/pkg/models"
)

// sessionTTL is how long an idle chat session survives before pruning.
const sessionTTL = 24 * time.Hour

// chatSession is one server-held engine with its cart and syncer.
type chatSession struct {
	engine   *conversation.Engine
	cart     *cart.Cart
	syncer   *cart.Syncer
	recipes  []models.Recipe
	lastUsed time.Time
}

// sessionRegistry holds live chat sessions keyed by UUID.
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*chatSession
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: map[string]*chatSession{}}
}

func (r *sessionRegistry) add(s *chatSession) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prune()
	s.lastUsed = time.Now()
	r.sessions[id] = s
	return id
}

func (r *sessionRegistry) get(id string) *chatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	if s != nil {
		s.lastUsed = time.Now()
	}
	return s
}

func (r *sessionRegistry) remove(id string) *chatSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.sessions[id]
	delete(r.sessions, id)
	return s
}

// prune drops sessions idle past the TTL. Caller holds the lock.
func (r *sessionRegistry) prune() {
	cutoff := time.Now().Add(-sessionTTL)
	for id, s := range r.sessions {
		if s.lastUsed.Before(cutoff) {
			if s.syncer != nil {
				s.syncer.Close()
			}
			delete(r.sessions, id)
		}
	}
}

// agentConversationalist adapts the NLU agent to the engine's chat surface.
type agentConversationalist struct {
	agent ChatAgent
}

func (a agentConversationalist) Chat(ctx context.Context, message string) (nlu.Reply, error) {
	return a.agent.Answer(ctx, message), nil
}

type createSessionRequest struct {
	DietMode string `json:"diet_mode"`
}

type sessionState struct {
	SessionID string             `json:"session_id"`
	State     string             `json:"state"`
	Messages  []models.Message   `json:"messages"`
	Cart      []models.OrderItem `json:"cart"`
	CartTotal int                `json:"cart_total"`
}

func (s *Server) sessionState(id string, sess *chatSession) sessionState {
	items := make([]models.OrderItem, 0, sess.cart.Len())
	for _, l := range sess.cart.Lines() {
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
	return sessionState{
		SessionID: id,
		State:     sess.engine.State().String(),
		Messages:  sess.engine.Messages(),
		Cart:      items,
		CartTotal: sess.cart.Total(),
	}
}

// createSession boots a server-held engine for the authenticated shopper.
func (s *Server) createSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user := currentUser(c)
	ctx := c.Request().Context()

	shoppingCart := cart.New(nil)
	var syncer *cart.Syncer
	if user.ID != "" && s.deps.Carts != nil {
		syncer = cart.NewSyncer(shoppingCart, s.deps.Carts, user.ID, 0)
		if err := syncer.Hydrate(ctx); err != nil {
			log.Warn().Err(err).Str("user_id", user.ID).Msg("session cart hydration failed")
		}
	}

	names, err := s.deps.Catalog.CategoryNames(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not load categories for session")
	}
	categories := make([]models.Category, 0, len(names))
	for _, n := range names {
		categories = append(categories, models.Category{
			ID:    strings.ReplaceAll(strings.ToLower(n), " ", "_"),
			Label: n,
		})
	}

	var chat conversation.Conversationalist
	if s.deps.Agent != nil {
		chat = agentConversationalist{agent: s.deps.Agent}
	}

	recipes := conversation.DefaultRecipes()
	engine := conversation.NewEngine(s.deps.Catalog, chat, s.deps.Orders, shoppingCart, conversation.Options{
		User:       *user,
		DietMode:   models.DietMode(req.DietMode),
		Categories: categories,
		Recipes:    recipes,
	})
	engine.Bootstrap(ctx)

	sess := &chatSession{engine: engine, cart: shoppingCart, syncer: syncer, recipes: recipes}
	id := s.sessions.add(sess)

	log.Info().Str("session_id", id).Str("user_id", user.ID).Msg("chat session created")
	return c.JSON(http.StatusCreated, s.sessionState(id, sess))
}

func (s *Server) withSession(c echo.Context) (*chatSession, string, error) {
	id := c.Param("id")
	sess := s.sessions.get(id)
	if sess == nil {
		return nil, "", echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	return sess, id, nil
}

type sessionMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) sessionMessage(c echo.Context) error {
	sess, id, err := s.withSession(c)
	if err != nil {
		return err
	}
	var req sessionMessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "text is required")
	}
	sess.engine.HandleUserMessage(c.Request().Context(), req.Text)
	return c.JSON(http.StatusOK, s.sessionState(id, sess))
}

func (s *Server) sessionOption(c echo.Context) error {
	sess, id, err := s.withSession(c)
	if err != nil {
		return err
	}
	var action models.UIAction
	if err := c.Bind(&action); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if action.ID == "" && action.Action == "" && action.Command == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "empty action")
	}
	sess.engine.HandleOptionSelect(c.Request().Context(), action)
	return c.JSON(http.StatusOK, s.sessionState(id, sess))
}

type tableConfirmRequest struct {
	Items []models.CartLine `json:"items"`
}

func (s *Server) sessionTableConfirm(c echo.Context) error {
	sess, id, err := s.withSession(c)
	if err != nil {
		return err
	}
	var req tableConfirmRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	sess.engine.HandleTableConfirm(c.Request().Context(), req.Items)
	return c.JSON(http.StatusOK, s.sessionState(id, sess))
}

type recipeAddRequest struct {
	Name     string `json:"name"`
	Servings int    `json:"servings"`
}

func (s *Server) sessionRecipe(c echo.Context) error {
	sess, id, err := s.withSession(c)
	if err != nil {
		return err
	}
	var req recipeAddRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	for _, r := range sess.recipes {
		if strings.EqualFold(r.Name, req.Name) {
			sess.engine.HandleRecipeAdd(c.Request().Context(), r, req.Servings)
			return c.JSON(http.StatusOK, s.sessionState(id, sess))
		}
	}
	return echo.NewHTTPError(http.StatusNotFound, "unknown recipe")
}

func (s *Server) sessionTranscript(c echo.Context) error {
	sess, id, err := s.withSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.sessionState(id, sess))
}

// closeSession flushes any pending cart write and drops the session.
func (s *Server) closeSession(c echo.Context) error {
	id := c.Param("id")
	sess := s.sessions.remove(id)
	if sess == nil {
		return echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if sess.syncer != nil {
		if err := sess.syncer.Flush(c.Request().Context()); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("final cart flush failed")
		}
		sess.syncer.Close()
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "closed"})
}

// requireUser guards the session routes: they hold per-user server state, so
// anonymous access is not allowed.
func requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "login required")
		}
		return next(c)
	}
}
