package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/cosmocart/cosmocart/internal/cart"
	"github.com/cosmocart/cosmocart/internal/config"
	"github.com/cosmocart/cosmocart/internal/conversation"
	"github.com/cosmocart/cosmocart/internal/remote"
	"github.com/cosmocart/cosmocart/pkg/models"
)

// ChatCommand returns the CLI command for the terminal shopping session.
func ChatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Start an interactive shopping session against a CosmoCart server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Backend base URL (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "veg",
				Usage: "Hide non-vegetarian products",
			},
		},
		Action: runChat,
	}
}

// session bundles the REPL state: the engine, the rendering cursor, and the
// actions the shopper can currently press.
type session struct {
	engine   *conversation.Engine
	reader   *bufio.Reader
	rendered int
	actions  map[string]models.UIAction
	recipes  []models.Recipe
}

func runChat(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	backend := cfg.Chat.BackendURL
	if c.String("backend") != "" {
		backend = c.String("backend")
	}
	diet := models.DietMode(cfg.Chat.DietMode)
	if c.Bool("veg") {
		diet = models.DietVeg
	}

	ctx := context.Background()
	client := remote.NewClient(backend)
	reader := bufio.NewReader(os.Stdin)

	user, err := login(ctx, reader, client)
	if err != nil {
		return err
	}

	shoppingCart := cart.New(cart.NotifierFunc(func(message, kind string) {
		fmt.Printf("  * %s\n", message)
	}))

	var syncer *cart.Syncer
	if user.ID != "" {
		syncer = cart.NewSyncer(shoppingCart, client, user.ID, 0)
		if err := syncer.Hydrate(ctx); err != nil {
			log.Warn().Err(err).Msg("could not restore saved cart")
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := syncer.Flush(flushCtx); err != nil {
				log.Warn().Err(err).Msg("final cart sync failed")
			}
			syncer.Close()
		}()
	}

	categories, err := client.Categories(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("could not load departments")
	}

	recipes := conversation.DefaultRecipes()
	engine := conversation.NewEngine(client, client, client, shoppingCart, conversation.Options{
		User:       user,
		DietMode:   diet,
		Categories: categories,
		Recipes:    recipes,
		Notifier: cart.NotifierFunc(func(message, kind string) {
			fmt.Printf("  * %s\n", message)
		}),
	})

	s := &session{
		engine:  engine,
		reader:  reader,
		actions: map[string]models.UIAction{},
		recipes: recipes,
	}
	for _, cat := range categories {
		s.actions[cat.ID] = models.UIAction{ID: cat.ID, Label: cat.Label, Command: cat.Label}
	}

	engine.Bootstrap(ctx)
	s.render(ctx)

	fmt.Println("\nType a message, /<option> to press a button, 'cart' to view your cart, or 'quit' to leave.")
	return s.loop(ctx, shoppingCart)
}

func (s *session) loop(ctx context.Context, shoppingCart *cart.Cart) error {
	for {
		fmt.Print("> ")
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			fmt.Println("Thank you for shopping with CosmoCart Mart.")
			return nil
		case line == "cart" || strings.EqualFold(line, "view cart"):
			printCart(shoppingCart)
			continue
		case strings.HasPrefix(line, "/recipe"):
			s.handleRecipe(ctx, line)
		case strings.HasPrefix(line, "/"):
			s.pressOption(ctx, strings.TrimPrefix(line, "/"))
		default:
			s.engine.HandleUserMessage(ctx, line)
		}
		s.render(ctx)
	}
}

// pressOption resolves a typed /id against the actions currently on screen,
// falling back to the engine's built-in checkout buttons.
func (s *session) pressOption(ctx context.Context, id string) {
	action, ok := s.actions[id]
	if !ok {
		action, ok = builtinActions()[id]
	}
	if !ok {
		fmt.Printf("  (no option %q on screen)\n", id)
		return
	}
	if action.ID == "submit_delivery" {
		action.Delivery = s.promptDelivery()
	}
	s.engine.HandleOptionSelect(ctx, action)
}

func (s *session) handleRecipe(ctx context.Context, line string) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		fmt.Println("  usage: /recipe <number> [servings]")
		return
	}
	idx, err := strconv.Atoi(fields[1])
	if err != nil || idx < 1 || idx > len(s.recipes) {
		fmt.Println("  pick a recipe number from the list")
		return
	}
	servings := 2
	if len(fields) > 2 {
		if n, err := strconv.Atoi(fields[2]); err == nil {
			servings = n
		}
	}
	s.engine.HandleRecipeAdd(ctx, s.recipes[idx-1], servings)
}

// render prints every transcript message appended since the last call and
// refreshes the on-screen action set. Printing a delivery form triggers more
// engine work, so it loops until the transcript stops growing.
func (s *session) render(ctx context.Context) {
	for {
		messages := s.engine.Messages()
		if s.rendered >= len(messages) {
			return
		}
		for ; s.rendered < len(messages); s.rendered++ {
			s.printMessage(ctx, messages[s.rendered])
		}
	}
}

func (s *session) printMessage(ctx context.Context, m models.Message) {
	if m.Sender == models.SenderUser {
		return
	}

	switch m.Type {
	case models.MessageText, models.MessageSuccess:
		fmt.Printf("bot> %s\n", m.Content)

	case models.MessageError:
		fmt.Printf("bot> (!) %s\n", m.Content)

	case models.MessageGrid:
		if m.Content != "" {
			fmt.Printf("bot> %s\n", m.Content)
		}
		for id, a := range s.actions {
			if a.Command != "" && a.Command == a.Label {
				fmt.Printf("     [/%s] %s\n", id, a.Label)
			}
		}

	case models.MessageOptions, models.MessageSubCarousel:
		if m.Content != "" {
			fmt.Printf("bot> %s\n", m.Content)
		}
		if actions, ok := m.Data.([]models.UIAction); ok {
			for _, a := range actions {
				s.actions[a.ID] = a
				fmt.Printf("     [/%s] %s\n", a.ID, a.Label)
			}
		}

	case models.MessageCarousel, models.MessageProductGrid:
		if m.Content != "" {
			fmt.Printf("bot> %s\n", m.Content)
		}
		if products, ok := m.Data.([]models.Product); ok {
			for _, p := range products {
				fmt.Printf("     - %s ₹%d\n", productLabel(p), p.Price)
			}
		}

	case models.MessageProductCard:
		if p, ok := m.Data.(models.Product); ok {
			fmt.Printf("     %s ₹%d (%s)\n", productLabel(p), p.Price, p.Category)
		}

	case models.MessageOrderPreview:
		if items, ok := m.Data.([]models.OrderItem); ok {
			for _, item := range items {
				fmt.Printf("     - %dx %s ₹%d\n", item.Quantity, item.ProductName, item.Price)
			}
		}

	case models.MessageOrderSummary:
		if summary, ok := m.Data.(models.OrderSummary); ok {
			fmt.Printf("bot> %s\n", m.Content)
			fmt.Printf("     %s | %s\n", summary.Mode, summary.Details)
			for _, line := range summary.Items {
				fmt.Printf("     - %dx %s\n", line.Quantity, line.Product.Name)
			}
			fmt.Printf("     Total: ₹%d\n", summary.Total)
		}

	case models.MessageDeliveryForm:
		fmt.Printf("bot> %s\n", m.Content)
		action := models.UIAction{ID: "submit_delivery", Label: "Submit", Delivery: s.promptDelivery()}
		s.engine.HandleOptionSelect(ctx, action)

	case models.MessageRecipeList:
		fmt.Printf("bot> %s\n", m.Content)
		if recipes, ok := m.Data.([]models.Recipe); ok {
			for i, r := range recipes {
				fmt.Printf("     %d. %s (/recipe %d [servings])\n", i+1, r.Name, i+1)
			}
		}

	default:
		if m.Content != "" {
			fmt.Printf("bot> %s\n", m.Content)
		}
	}
}

func productLabel(p models.Product) string {
	if p.SelectedWeight != "" {
		return p.Name + " " + p.SelectedWeight
	}
	return p.Name
}

func (s *session) promptDelivery() *models.DeliveryDetails {
	details := &models.DeliveryDetails{}
	details.Name = prompt(s.reader, "  Full name: ")
	details.Mobile = prompt(s.reader, "  Mobile (10 digits): ")
	details.AltMobile = prompt(s.reader, "  Alternate mobile (10 digits): ")
	details.Address = prompt(s.reader, "  Address: ")
	return details
}

// builtinActions are the checkout buttons that are always pressable even if
// they scrolled off screen.
func builtinActions() map[string]models.UIAction {
	actions := []models.UIAction{
		{ID: "checkout_now", Label: "Checkout"},
		{ID: "pickup", Label: "Store Pickup"},
		{ID: "delivery", Label: "Home Delivery"},
		{ID: "confirm_order", Label: "Pay Online", PaymentMethod: "online"},
		{ID: "abort_order", Label: "Cancel"},
		{ID: "fresh_start", Label: "Start Fresh"},
		{ID: "reorder_shop", Label: "Add All & Shop More"},
		{ID: "view_cart", Label: "View Cart", Action: "View Cart"},
		{ID: "support_faq", Label: "View FAQs"},
		{ID: "support_call", Label: "Call Customer Support"},
		{ID: "recipes", Label: "Show Recipes", Action: "Show Recipes"},
		{ID: "help", Label: "Help", Action: "Help"},
	}
	m := make(map[string]models.UIAction, len(actions))
	for _, a := range actions {
		m[a.ID] = a
	}
	return m
}

func printCart(c *cart.Cart) {
	lines := c.Lines()
	if len(lines) == 0 {
		fmt.Println("  Your cart is empty.")
		return
	}
	for _, l := range lines {
		fmt.Printf("  %dx %s ₹%d\n", l.Quantity, productLabel(l.Product), l.Subtotal())
	}
	fmt.Printf("  Total: ₹%d\n", c.Total())
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

// login runs the OTP flow, or starts a guest session when the shopper skips
// the mobile prompt.
func login(ctx context.Context, reader *bufio.Reader, client *remote.Client) (models.User, error) {
	mobile := prompt(reader, "Mobile number (press enter to shop as guest): ")
	if mobile == "" {
		return models.User{Name: "Guest"}, nil
	}

	if err := client.SendOTP(ctx, mobile); err != nil {
		return models.User{}, fmt.Errorf("could not send login code: %w", err)
	}
	fmt.Println("A login code was sent to your number.")

	name := prompt(reader, "Your name: ")
	otp := prompt(reader, "Login code: ")

	result, err := client.VerifyOTP(ctx, mobile, otp, name)
	if err != nil {
		return models.User{}, fmt.Errorf("login failed: %w", err)
	}
	fmt.Printf("Logged in as %s.\n", result.User.Name)
	return result.User, nil
}
