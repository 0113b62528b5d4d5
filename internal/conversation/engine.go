// Package conversation implements the chat session core: the append-only
// transcript, the checkout state machine, and the engine that routes user
// utterances and button presses into cart mutations and bot replies.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/internal/cart"
	"github.com/cosmocart/cosmocart/internal/lexical"
	"github.com/cosmocart/cosmocart/internal/nlu"
	"github.com/cosmocart/cosmocart/internal/resolver"
	"github.com/cosmocart/cosmocart/pkg/models"
)

// Catalog is the read-only storefront surface the engine browses and
// searches. It is injected at construction so sessions can run against the
// HTTP client, the database store, or a test double.
type Catalog interface {
	SearchProducts(ctx context.Context, query string) ([]models.Product, error)
	ProductsByCategory(ctx context.Context, category string) ([]models.Product, error)
	ProductsBySubCategory(ctx context.Context, category, sub string) ([]models.Product, error)
	SubCategories(ctx context.Context, category string) ([]models.SubCategory, error)
}

// Conversationalist classifies free-form utterances the engine cannot route
// locally.
type Conversationalist interface {
	Chat(ctx context.Context, message string) (nlu.Reply, error)
}

// OrderService places and retrieves orders.
type OrderService interface {
	CreateOrder(ctx context.Context, payload models.OrderPayload) (*models.Order, error)
	Orders(ctx context.Context, userID string) ([]models.Order, error)
}

const (
	msgConnectTrouble = "Sorry, I'm having trouble connecting to my brain right now."
	msgPickDepartment = "Please select a department to begin:"
)

// Engine drives one chat session. Handlers serialize through an internal
// mutex so a voice transcript racing a button click cannot interleave cart
// reads and writes.
type Engine struct {
	mu         sync.Mutex
	transcript *Transcript
	fsm        machine

	cart     *cart.Cart
	resolver *resolver.Resolver
	catalog  Catalog
	chat     Conversationalist
	orders   OrderService
	notifier cart.Notifier

	user       models.User
	diet       models.DietMode
	categories []models.Category
	recipes    []models.Recipe

	lastOrder []models.OrderItem

	typing   atomic.Bool
	cartOpen atomic.Bool

	// searchGen tags each free-text search so a slow response for an
	// abandoned query is discarded instead of overwriting a newer one.
	searchGen atomic.Uint64
}

// Options carries the optional collaborators and session context for NewEngine.
type Options struct {
	User       models.User
	DietMode   models.DietMode
	Categories []models.Category
	Recipes    []models.Recipe
	Notifier   cart.Notifier
}

// NewEngine wires a session around the given capabilities. The chat and
// order services may be nil, in which case the engine relies entirely on its
// local routing rules.
func NewEngine(catalog Catalog, chat Conversationalist, orders OrderService, shoppingCart *cart.Cart, opts Options) *Engine {
	diet := opts.DietMode
	if diet == "" {
		diet = models.DietAll
	}
	return &Engine{
		transcript: NewTranscript(),
		cart:       shoppingCart,
		resolver:   resolver.New(catalog),
		catalog:    catalog,
		chat:       chat,
		orders:     orders,
		notifier:   opts.Notifier,
		user:       opts.User,
		diet:       diet,
		categories: opts.Categories,
		recipes:    opts.Recipes,
	}
}

// Messages exposes the transcript snapshot for rendering.
func (e *Engine) Messages() []models.Message { return e.transcript.Messages() }

// Typing reports whether the engine is processing an utterance.
func (e *Engine) Typing() bool { return e.typing.Load() }

// Listening always reports false: voice capture is not available here.
func (e *Engine) Listening() bool { return false }

// CartOpen reports whether the last action asked the UI to show the cart.
func (e *Engine) CartOpen() bool { return e.cartOpen.Load() }

// State exposes the checkout position, mainly for tests and diagnostics.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fsm.current()
}

// StartListening reports voice input as unavailable. The session continues;
// the feature is simply absent.
func (e *Engine) StartListening() {
	e.transcript.Append(models.SenderBot, "Voice input is not supported in this environment.", models.MessageError, nil)
}

func (e *Engine) toast(message, kind string) {
	if e.notifier != nil {
		e.notifier.Toast(message, kind)
	}
}

// Bootstrap opens the session: greets the user and, for returning shoppers,
// offers their most recent order for a one-tap reorder.
func (e *Engine) Bootstrap(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.transcript.Append(models.SenderBot, fmt.Sprintf("Welcome, %s. How can I assist you today?", e.user.Name), models.MessageText, nil)

	if e.user.ID == "" || e.orders == nil {
		e.transcript.Append(models.SenderBot, msgPickDepartment, models.MessageGrid, nil)
		return
	}

	history, err := e.orders.Orders(ctx, e.user.ID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", e.user.ID).Msg("order history fetch failed")
		history = nil
	}
	if len(history) == 0 {
		e.transcript.Append(models.SenderBot, msgPickDepartment, models.MessageGrid, nil)
		return
	}

	e.lastOrder = history[0].Items
	e.transcript.Append(models.SenderBot, fmt.Sprintf("Welcome back, %s! I found your recent order.", e.user.Name), models.MessageText, nil)
	e.transcript.Append(models.SenderBot, "", models.MessageOrderPreview, e.lastOrder)
	e.transcript.Append(models.SenderBot, "Would you like to reorder these or start fresh?", models.MessageOptions, []models.UIAction{
		{ID: "reorder_shop", Label: "Add All & Shop More"},
		{ID: "fresh_start", Label: "Start Fresh"},
	})
}

// HandleUserMessage routes one utterance. Remote failures degrade to an
// apology; the session is never left mid-write.
func (e *Engine) HandleUserMessage(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if strings.EqualFold(text, "view cart") {
		e.openCart()
		return
	}

	e.transcript.Append(models.SenderUser, text, models.MessageText, nil)
	e.typing.Store(true)
	defer e.typing.Store(false)
	e.route(ctx, text)
}

func (e *Engine) openCart() {
	e.cartOpen.Store(true)
	if err := e.fsm.to(StateCartReviewing); err != nil {
		log.Debug().Err(err).Msg("cart open outside checkout flow")
	}
}

// route applies the intent priority order: synthetic sub-category commands,
// direct category matches, remote NLU, then local fallback rules.
func (e *Engine) route(ctx context.Context, text string) {
	if cmd, ok := strings.CutPrefix(text, "ShowSub "); ok {
		e.showSubCategory(ctx, cmd)
		return
	}

	if cat, ok := e.matchCategory(text); ok {
		e.browseCategory(ctx, cat)
		return
	}

	if e.chat != nil {
		reply, err := e.chat.Chat(ctx, text)
		if err != nil {
			log.Warn().Err(err).Msg("remote chat failed, using local rules")
		} else if e.applyReply(ctx, reply) {
			return
		}
	}

	e.localFallback(ctx, text)
}

func (e *Engine) showSubCategory(ctx context.Context, cmd string) {
	parent, sub, ok := strings.Cut(cmd, "|")
	if !ok {
		e.transcript.Append(models.SenderBot, "I didn't recognize that section.", models.MessageText, nil)
		return
	}
	e.transcript.Append(models.SenderUser, sub, models.MessageText, nil)

	products, err := e.catalog.ProductsBySubCategory(ctx, parent, sub)
	if err != nil {
		log.Warn().Err(err).Str("category", parent).Str("sub", sub).Msg("subcategory fetch failed")
		e.transcript.Append(models.SenderBot, "I had trouble finding those products. Please try again.", models.MessageText, nil)
		return
	}
	if len(products) == 0 {
		e.transcript.Append(models.SenderBot,
			fmt.Sprintf("No matching items found for %s in our %s department.", sub, parent),
			models.MessageText, nil)
		return
	}
	e.transcript.Append(models.SenderBot,
		fmt.Sprintf("Found %d items for %s:", len(products), sub),
		models.MessageProductGrid, products)
}

func (e *Engine) matchCategory(text string) (models.Category, bool) {
	lower := strings.ToLower(text)
	for _, c := range e.categories {
		if strings.Contains(lower, c.ID) || strings.Contains(lower, strings.ToLower(c.Label)) {
			return c, true
		}
	}
	return models.Category{}, false
}

func (e *Engine) browseCategory(ctx context.Context, cat models.Category) {
	subs, err := e.catalog.SubCategories(ctx, cat.Label)
	if err != nil {
		log.Warn().Err(err).Str("category", cat.Label).Msg("subcategory list fetch failed")
	}
	if len(subs) > 0 {
		actions := make([]models.UIAction, 0, len(subs))
		for _, s := range subs {
			actions = append(actions, models.UIAction{
				ID:      strings.ReplaceAll(strings.ToLower(s.Name), " ", "_"),
				Label:   s.Name,
				Command: fmt.Sprintf("ShowSub %s|%s", cat.Label, s.Name),
			})
		}
		e.transitionTo(StateBrowsing)
		e.transcript.Append(models.SenderBot, fmt.Sprintf("Select a %s section:", cat.Label), models.MessageSubCarousel, actions)
		return
	}

	products, err := e.catalog.ProductsByCategory(ctx, cat.Label)
	if err != nil {
		log.Warn().Err(err).Str("category", cat.Label).Msg("category fetch failed")
		e.transcript.Append(models.SenderBot, msgConnectTrouble, models.MessageText, nil)
		return
	}
	e.transitionTo(StateBrowsing)
	e.transcript.Append(models.SenderBot, fmt.Sprintf("Browsing %s:", cat.Label), models.MessageCarousel, products)
}

// applyReply renders a classified NLU reply. It returns false when the reply
// did not settle the utterance and the local rules should take over.
func (e *Engine) applyReply(ctx context.Context, reply nlu.Reply) bool {
	switch reply.Kind {
	case nlu.QueryUnknown:
		if reply.Message != "" {
			e.transcript.Append(models.SenderBot, reply.Message, models.MessageText, nil)
		}
		if reply.Unknown != nil && len(reply.Unknown.Suggestions) > 0 {
			actions := make([]models.UIAction, 0, len(reply.Unknown.Suggestions))
			for _, s := range reply.Unknown.Suggestions {
				actions = append(actions, models.UIAction{ID: s, Label: s})
			}
			e.transcript.Append(models.SenderBot, "Try asking:", models.MessageOptions, actions)
		}
		return reply.Message != ""

	case nlu.QueryPrice:
		if reply.Price == nil {
			return false
		}
		e.transcript.Append(models.SenderBot, reply.Message, models.MessageText, nil)
		e.transcript.Append(models.SenderBot, "", models.MessageProductCard, reply.Price.Product)
		return true

	case nlu.QueryCartAdd:
		return e.applyCartAdd(ctx, reply)

	case nlu.QueryCategoryFilter, nlu.QueryProductSearch, nlu.QueryPriceFilter:
		if reply.Listing == nil || len(reply.Listing.Products) == 0 {
			if reply.Message != "" {
				e.transcript.Append(models.SenderBot, reply.Message, models.MessageText, nil)
			}
			return false
		}
		e.transcript.Append(models.SenderBot, reply.Message, models.MessageText, nil)
		e.transcript.Append(models.SenderBot, "", models.MessageCarousel, reply.Listing.Products)
		return true

	case nlu.QueryCheckout:
		if reply.Message != "" {
			e.transcript.Append(models.SenderBot, reply.Message, models.MessageText, nil)
		}
		e.beginCheckout()
		return true
	}
	return false
}

// applyCartAdd adds either the already-resolved product from the reply or,
// failing that, whatever the local resolver finds for the extracted name.
func (e *Engine) applyCartAdd(ctx context.Context, reply nlu.Reply) bool {
	if reply.CartAdd == nil {
		return false
	}
	qty := reply.CartAdd.Quantity
	if qty <= 0 {
		qty = 1
	}

	if reply.Success && reply.CartAdd.Product != nil {
		p := *reply.CartAdd.Product
		if reply.CartAdd.Weight != "" && p.UnitType.Weighted() {
			p.SelectedWeight = reply.CartAdd.Weight
		}
		e.addToCart(p, qty)
		e.transcript.Append(models.SenderBot, fmt.Sprintf("Added %dx %s to your cart.", qty, p.Name), models.MessageSuccess, nil)
		return true
	}

	name := reply.CartAdd.ProductName
	if name == "" {
		return false
	}
	p, err := e.resolver.Resolve(ctx, name, reply.CartAdd.Weight, e.diet)
	if err != nil {
		e.transcript.Append(models.SenderBot,
			fmt.Sprintf("I understood you want %s, but I couldn't find it in stock.", name),
			models.MessageError, nil)
		return true
	}
	e.addToCart(p, qty)
	e.transcript.Append(models.SenderBot, fmt.Sprintf("Added %dx %s to your cart.", qty, p.Name), models.MessageSuccess, nil)
	return true
}

// addToCart accumulates onto the existing variant line rather than
// overwriting it.
func (e *Engine) addToCart(p models.Product, qty int) {
	e.cart.UpdateQuantity(p, e.cart.Quantity(p)+qty)
}

var addVerbRe = regexp.MustCompile(`^(add|buy|get)\b`)

// localFallback runs the rule chain used when remote NLU is unavailable or
// could not settle the utterance.
func (e *Engine) localFallback(ctx context.Context, text string) {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "category") || strings.Contains(lower, "aisle") ||
		strings.Contains(lower, "shop") || lower == "browse" {
		e.transitionTo(StateBrowsing)
		e.transcript.Append(models.SenderBot, "Select a department to begin:", models.MessageGrid, nil)
		return
	}

	if addVerbRe.MatchString(lower) || strings.Contains(lower, "want") {
		e.runBatchAdd(ctx, lower)
		return
	}

	if strings.Contains(lower, "history") || strings.Contains(lower, "last order") {
		e.showHistory(ctx)
		return
	}

	e.keywordSearch(ctx, lower)
}

var splitRe = regexp.MustCompile(`,| and `)

// runBatchAdd splits a compound order into sub-commands and works through
// them one at a time. Each item reads the cart state left by the previous
// one, so the same product twice in one command accumulates correctly.
// Cancellation is honored between items; completed additions are kept.
func (e *Engine) runBatchAdd(ctx context.Context, lower string) {
	queue := splitRe.Split(lower, -1)
	for i, cmd := range queue {
		cmd = strings.TrimSpace(cmd)
		if !strings.Contains(cmd, "add") && !strings.Contains(cmd, "buy") && !strings.Contains(cmd, "get") {
			cmd = "add " + cmd
		}
		queue[i] = cmd
	}

	var successes int
	var failed []string
	for _, cmd := range queue {
		if ctx.Err() != nil {
			log.Debug().Int("remaining", len(queue)-successes-len(failed)).Msg("batch add cancelled")
			break
		}
		name, qty, err := e.addSingle(ctx, cmd)
		if err != nil {
			var noMatch *resolver.NoMatchError
			if errors.As(err, &noMatch) {
				if len(noMatch.Query) > 2 {
					failed = append(failed, noMatch.Query)
				}
				continue
			}
			log.Warn().Err(err).Str("command", cmd).Msg("batch add item failed")
			e.transcript.Append(models.SenderBot, msgConnectTrouble, models.MessageText, nil)
			return
		}
		successes++
		e.toast(fmt.Sprintf("Added %dx %s", qty, name), "success")
	}

	if successes > 0 {
		e.transcript.Append(models.SenderBot,
			fmt.Sprintf("%d item(s) have been added to your cart.", successes),
			models.MessageText, nil)
		if len(failed) == 0 {
			e.transcript.Append(models.SenderBot, "How would you like to proceed?", models.MessageOptions, []models.UIAction{
				{ID: "checkout_now", Label: "Checkout"},
				{ID: "fresh_start", Label: "Add More"},
			})
		}
	}
	if len(failed) > 0 {
		e.transcript.Append(models.SenderBot,
			fmt.Sprintf("I could not locate: %q. Please try browsing our departments.", strings.Join(failed, ", ")),
			models.MessageGrid, nil)
	}
}

// addSingle runs one sub-command through extraction and resolution, then
// accumulates the result onto the cart.
func (e *Engine) addSingle(ctx context.Context, command string) (name string, qty int, err error) {
	cmd, err := lexical.Extract(command)
	if err != nil {
		return "", 0, &resolver.NoMatchError{Query: ""}
	}
	p, err := e.resolver.Resolve(ctx, cmd.Query, cmd.Weight, e.diet)
	if err != nil {
		return "", 0, err
	}
	e.addToCart(p, cmd.Quantity)
	return p.Name, cmd.Quantity, nil
}

func (e *Engine) showHistory(ctx context.Context) {
	if e.orders == nil {
		e.transcript.Append(models.SenderBot, "No previous orders found.", models.MessageText, nil)
		return
	}
	userID := e.user.ID
	if userID == "" {
		userID = "guest"
	}
	history, err := e.orders.Orders(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Msg("order history fetch failed")
		e.transcript.Append(models.SenderBot, msgConnectTrouble, models.MessageText, nil)
		return
	}
	if len(history) == 0 {
		e.transcript.Append(models.SenderBot, "No previous orders found.", models.MessageText, nil)
		return
	}
	e.transcript.Append(models.SenderBot, "Retrieved your previous order details:", models.MessageText, nil)
	e.transcript.Append(models.SenderBot, "", models.MessageOrderPreview, history[0].Items)
}

// keywordSearch is the last-resort rule: search every token longer than two
// characters, merge by product id, cap at fifteen results. The result is
// discarded if a newer search started while this one was in flight.
func (e *Engine) keywordSearch(ctx context.Context, lower string) {
	gen := e.searchGen.Add(1)

	var results []models.Product
	seen := map[int64]bool{}
	for _, k := range strings.Fields(lower) {
		if len(k) <= 2 {
			continue
		}
		matches, err := e.catalog.SearchProducts(ctx, k)
		if err != nil {
			log.Warn().Err(err).Str("keyword", k).Msg("keyword search failed")
			e.transcript.Append(models.SenderBot, msgConnectTrouble, models.MessageText, nil)
			return
		}
		for _, m := range matches {
			if seen[m.ID] || len(results) >= 15 {
				continue
			}
			seen[m.ID] = true
			if e.diet == models.DietVeg && !m.IsVeg {
				continue
			}
			results = append(results, m)
		}
	}

	if gen != e.searchGen.Load() {
		log.Debug().Uint64("generation", gen).Msg("discarding stale search result")
		return
	}

	if len(results) > 0 {
		e.transcript.Append(models.SenderBot, "Found these matching items:", models.MessageCarousel, results)
		return
	}
	e.transcript.Append(models.SenderBot, "I couldn't find that item. Please try a department:", models.MessageGrid, nil)
}

// transitionTo advances the state machine, logging rather than failing when
// the move is redundant.
func (e *Engine) transitionTo(next State) {
	if e.fsm.current() == next {
		return
	}
	if err := e.fsm.to(next); err != nil {
		log.Debug().Err(err).Msg("state transition skipped")
	}
}
