package conversation

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// HandleOptionSelect dispatches a structured button press. Actions bypass
// NLU entirely; checkout actions are additionally validated against the
// state machine before they run.
func (e *Engine) HandleOptionSelect(ctx context.Context, action models.UIAction) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if action.Command != "" {
		e.route(ctx, action.Command)
		return
	}

	if action.ID != "confirm_order" {
		e.transcript.Append(models.SenderUser, action.Label, models.MessageText, nil)
	}
	e.typing.Store(true)
	defer e.typing.Store(false)

	switch {
	case action.Action == "Show Recipes":
		e.transcript.Append(models.SenderBot, "Here are some premium meal kits available today:", models.MessageRecipeList, e.recipes)

	case action.ID == "reorder_shop":
		e.reorderLast()

	case action.ID == "fresh_start" || action.Action == "Show Categories":
		e.transitionTo(StateBrowsing)
		e.transcript.Append(models.SenderBot, "Please select a department:", models.MessageGrid, nil)

	case action.Action == "Show Last Order":
		e.transcript.Append(models.SenderBot, "Please check 'Order History' tab for details.", models.MessageText, nil)

	case action.Action == "View Cart":
		e.openCart()

	case action.Action == "Help":
		e.transcript.Append(models.SenderBot, "Support Services:", models.MessageOptions, []models.UIAction{
			{ID: "support_faq", Label: "View FAQs"},
			{ID: "support_call", Label: "Call Customer Support"},
		})

	case action.ID == "checkout_now" || action.ID == "proceed":
		e.beginCheckout()

	case action.ID == "pickup":
		e.selectPickup()

	case action.ID == "delivery":
		e.selectDelivery()

	case action.ID == "submit_delivery":
		e.submitDelivery(action.Delivery)

	case action.ID == "confirm_order":
		e.confirmOrder(ctx, action.PaymentMethod)

	case action.ID == "abort_order" || action.ID == "edit":
		e.abortOrder()

	case action.ID == "support_faq":
		e.transcript.Append(models.SenderBot,
			"Standard Policy:\nDelivery: Complimentary above ₹500.\nReturns: Instant processing at doorstep.",
			models.MessageText, nil)
		e.transcript.Append(models.SenderBot, "How would you like to continue?", models.MessageOptions, []models.UIAction{
			{ID: "fresh_start", Label: "Back to Shopping"},
		})

	case action.ID == "support_call":
		e.transcript.Append(models.SenderBot, "Support Line: 1800-COSMO-MART (Available 9 AM - 9 PM)", models.MessageText, nil)

	default:
		log.Debug().Str("id", action.ID).Str("action", action.Action).Msg("unhandled option")
		e.transcript.Append(models.SenderBot, "I'm not sure how to help with that.", models.MessageText, nil)
	}
}

// reorderLast puts every line of the most recent order back in the cart,
// then opens the department grid for further shopping.
func (e *Engine) reorderLast() {
	for _, item := range e.lastOrder {
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
		e.addToCart(p, item.Quantity)
	}
	if len(e.lastOrder) > 0 {
		e.toast(fmt.Sprintf("Added %d items from your last order", len(e.lastOrder)), "success")
	}
	e.transitionTo(StateBrowsing)
	e.transcript.Append(models.SenderBot, "Select a department to browse items:", models.MessageGrid, nil)
}

func (e *Engine) beginCheckout() {
	if e.cart.Len() == 0 {
		e.transcript.Append(models.SenderBot, "Your cart is currently empty. Please add items to proceed.", models.MessageText, nil)
		return
	}
	if err := e.fsm.to(StateFulfillmentSelection); err != nil {
		log.Warn().Err(err).Msg("checkout not available from current state")
		e.transcript.Append(models.SenderBot, "That option isn't available right now.", models.MessageText, nil)
		return
	}
	e.transcript.Append(models.SenderBot, fmt.Sprintf("Total Amount: ₹%d.", e.cart.Total()), models.MessageText, nil)
	e.transcript.Append(models.SenderBot, "Select your preferred fulfillment method:", models.MessageOptions, []models.UIAction{
		{ID: "pickup", Label: "Store Pickup"},
		{ID: "delivery", Label: "Home Delivery"},
	})
}

func (e *Engine) selectPickup() {
	if err := e.fsm.to(StateOrderSummary); err != nil {
		log.Warn().Err(err).Msg("pickup selected outside fulfillment step")
		e.transcript.Append(models.SenderBot, "That option isn't available right now.", models.MessageText, nil)
		return
	}
	e.cartOpen.Store(false)
	e.transcript.Append(models.SenderBot, "Please review your final order manifest:", models.MessageOrderSummary, models.OrderSummary{
		Mode:    "Store Pickup",
		Details: "Counter 4",
		Items:   e.cart.Lines(),
		Total:   e.cart.Total(),
	})
}

func (e *Engine) selectDelivery() {
	if err := e.fsm.to(StateDeliveryForm); err != nil {
		log.Warn().Err(err).Msg("delivery selected outside fulfillment step")
		e.transcript.Append(models.SenderBot, "That option isn't available right now.", models.MessageText, nil)
		return
	}
	e.cartOpen.Store(false)
	e.transcript.Append(models.SenderBot, "Please provide your delivery details:", models.MessageDeliveryForm, models.DeliveryDetails{
		Name: e.user.Name,
	})
}

var mobileRe = regexp.MustCompile(`^\d{10}$`)

// validateDelivery enforces the delivery form contract: all four fields
// present, both mobile numbers exactly ten digits.
func validateDelivery(d *models.DeliveryDetails) error {
	if d == nil {
		return fmt.Errorf("delivery details are required")
	}
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Address) == "" ||
		strings.TrimSpace(d.Mobile) == "" || strings.TrimSpace(d.AltMobile) == "" {
		return fmt.Errorf("please fill in your name, address, and both mobile numbers")
	}
	if !mobileRe.MatchString(d.Mobile) || !mobileRe.MatchString(d.AltMobile) {
		return fmt.Errorf("mobile numbers must be exactly 10 digits")
	}
	return nil
}

// submitDelivery validates the form. Validation failure surfaces the message
// and leaves the state at the form so the user can correct and resubmit.
func (e *Engine) submitDelivery(details *models.DeliveryDetails) {
	if e.fsm.current() != StateDeliveryForm {
		log.Warn().Str("state", e.fsm.current().String()).Msg("delivery submitted outside form step")
		e.transcript.Append(models.SenderBot, "That option isn't available right now.", models.MessageText, nil)
		return
	}
	if err := validateDelivery(details); err != nil {
		e.transcript.Append(models.SenderBot, err.Error(), models.MessageError, nil)
		return
	}
	if err := e.fsm.to(StateOrderSummary); err != nil {
		log.Warn().Err(err).Msg("delivery submit transition rejected")
		return
	}
	e.transcript.Append(models.SenderBot, "Excellent! Here is your final order manifest:", models.MessageOrderSummary, models.OrderSummary{
		Mode:    "Home Delivery",
		Details: fmt.Sprintf("%s | M: %s | Alt: %s | %s", details.Name, details.Mobile, details.AltMobile, details.Address),
		Items:   e.cart.Lines(),
		Total:   e.cart.Total(),
	})
}

// confirmOrder submits the order. On success the cart is cleared; on failure
// the cart and state are left untouched so the user can retry manually.
func (e *Engine) confirmOrder(ctx context.Context, paymentMethod string) {
	if err := e.fsm.to(StateConfirming); err != nil {
		log.Warn().Err(err).Msg("confirm outside summary step")
		e.transcript.Append(models.SenderBot, "That option isn't available right now.", models.MessageText, nil)
		return
	}
	if paymentMethod == "" {
		paymentMethod = "online"
	}

	userID := e.user.ID
	if userID == "" {
		userID = "guest"
	}
	userName := e.user.Name
	if userName == "" {
		userName = "Guest"
	}

	lines := e.cart.Lines()
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
	payload := models.OrderPayload{
		UserID:        userID,
		UserName:      userName,
		TotalAmount:   e.cart.Total(),
		PaymentMethod: paymentMethod,
		Items:         items,
	}

	var order *models.Order
	var err error
	if e.orders != nil {
		order, err = e.orders.CreateOrder(ctx, payload)
	}
	if err != nil || order == nil {
		if err != nil {
			log.Warn().Err(err).Msg("order placement failed")
		}
		// Keep the cart so the user can retry without re-adding items.
		if terr := e.fsm.to(StateOrderSummary); terr != nil {
			log.Debug().Err(terr).Msg("retry transition skipped")
		}
		e.transcript.Append(models.SenderBot, "Payment failed. Please try again.", models.MessageError, nil)
		return
	}

	e.transcript.Append(models.SenderBot, "Order Placed Successfully!", models.MessageText, nil)
	e.transcript.Append(models.SenderBot,
		fmt.Sprintf("Your Order ID is #%d. Thank you for shopping with CosmoCart Mart.", order.ID),
		models.MessageText, nil)
	e.cart.Clear()
	if terr := e.fsm.to(StateIdle); terr != nil {
		log.Debug().Err(terr).Msg("post-order transition skipped")
	}
}

func (e *Engine) abortOrder() {
	e.transcript.Append(models.SenderBot, "Checkout paused. Your cart is open for adjustments.", models.MessageText, nil)
	e.openCart()
}

// HandleTableConfirm applies absolute quantities from an editable order
// preview table.
func (e *Engine) HandleTableConfirm(ctx context.Context, items []models.CartLine) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, item := range items {
		e.cart.UpdateQuantity(item.Product, item.Quantity)
	}
	e.transcript.Append(models.SenderUser, fmt.Sprintf("Confirmed %d items.", len(items)), models.MessageText, nil)
	e.transcript.Append(models.SenderBot, "Your selection has been updated in the cart.", models.MessageText, nil)
	e.transcript.Append(models.SenderBot, "Please select an option to continue:", models.MessageOptions, []models.UIAction{
		{ID: "checkout_now", Label: "Checkout Now"},
		{ID: "fresh_start", Label: "Browse More Categories"},
	})
}

// HandleRecipeAdd expands a recipe into cart lines, one ingredient at a
// time. Unresolvable ingredients are skipped; everything found is kept.
func (e *Engine) HandleRecipeAdd(ctx context.Context, recipe models.Recipe, servings int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if servings <= 0 {
		servings = 2
	}

	var added []string
	seen := map[string]bool{}
	for _, ing := range recipe.Ingredients {
		if ctx.Err() != nil {
			break
		}
		matches, err := e.catalog.SearchProducts(ctx, ing.SearchTerm)
		if err != nil {
			log.Warn().Err(err).Str("ingredient", ing.SearchTerm).Msg("ingredient lookup failed")
			continue
		}
		if len(matches) == 0 {
			continue
		}
		p := matches[0]
		required := int(math.Ceil(ing.QtyPerServing * float64(servings)))
		e.addToCart(p, required)
		if !seen[p.Name] {
			seen[p.Name] = true
			added = append(added, p.Name)
		}
	}

	e.toast(fmt.Sprintf("Added ingredients for %d people", servings), "success")
	preview := added
	if len(preview) > 3 {
		preview = preview[:3]
	}
	e.transcript.Append(models.SenderBot,
		fmt.Sprintf("I've added items for %d servings of %s (%s...).", servings, recipe.Name, strings.Join(preview, ", ")),
		models.MessageText, nil)
	e.transcript.Append(models.SenderBot, "Would you like to customize the quantities or proceed?", models.MessageOptions, []models.UIAction{
		{ID: "view_cart", Label: "Review Cart", Action: "View Cart"},
		{ID: "fresh_start", Label: "Shop More"},
	})
}
