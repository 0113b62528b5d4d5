package nlu

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// IntentClassifier is the LLM surface the agent depends on.
type IntentClassifier interface {
	Classify(ctx context.Context, message string, categories, sampleProducts []string) (Intent, error)
}

// CatalogLookup is the read-only catalog surface the agent resolves
// against. Implementations return nil (not an error) when nothing matches.
type CatalogLookup interface {
	ProductByExactName(ctx context.Context, name, brand string) (*models.Product, error)
	ProductsByNamePattern(ctx context.Context, name, brand string, limit int) ([]models.Product, error)
	ProductsByCategoryPattern(ctx context.Context, category string, limit int) ([]models.Product, error)
	ProductsByPriceRange(ctx context.Context, name, category string, minPrice, maxPrice *float64, limit int) ([]models.Product, error)
}

// Agent orchestrates intent classification and catalog lookup into the
// typed chat reply the engine consumes.
type Agent struct {
	classifier IntentClassifier
	catalog    CatalogLookup
	categories []string
	samples    []string
}

// NewAgent builds an agent with catalog context for the classifier prompt.
func NewAgent(classifier IntentClassifier, catalog CatalogLookup, categories, sampleProducts []string) *Agent {
	return &Agent{
		classifier: classifier,
		catalog:    catalog,
		categories: categories,
		samples:    sampleProducts,
	}
}

// Answer classifies the utterance and resolves it into a Reply. Every
// failure mode degrades to a speakable reply; Answer never returns an error
// to keep the chat session alive.
func (a *Agent) Answer(ctx context.Context, message string) Reply {
	intent, err := a.classifier.Classify(ctx, message, a.categories, a.samples)
	if err != nil {
		log.Warn().Err(err).Msg("intent classification failed")
		return unknownReply("Unable to classify query", nil)
	}

	switch intent.Kind() {
	case QueryPrice:
		return a.answerPrice(ctx, intent)
	case QueryCartAdd:
		return a.answerCartAdd(ctx, intent)
	case QueryCategoryFilter:
		return a.answerCategoryFilter(ctx, intent)
	case QueryProductSearch:
		return a.answerProductSearch(ctx, intent)
	case QueryPriceFilter:
		return a.answerPriceFilter(ctx, intent)
	case QueryCheckout:
		return Reply{Kind: QueryCheckout, Success: true, Message: "Starting checkout"}
	}
	return unknownReply("Unable to classify query", nil)
}

func unknownReply(message string, suggestions []string) Reply {
	return Reply{
		Kind:    QueryUnknown,
		Message: message,
		Unknown: &UnknownPayload{Suggestions: suggestions},
	}
}

// resolveProduct tries, in order: fuzzy resolution against the sample list,
// then a direct catalog cascade on the raw name.
func (a *Agent) resolveProduct(ctx context.Context, name, brand string) (*models.Product, string) {
	matched, suggestion, _ := matchOrSuggest(name, a.samples)
	lookup := name
	if matched != "" {
		lookup = matched
	}

	p, err := a.catalog.ProductByExactName(ctx, lookup, brand)
	if err != nil {
		log.Warn().Err(err).Str("name", lookup).Msg("catalog lookup failed")
		return nil, suggestion
	}
	if p == nil && lookup != name {
		p, err = a.catalog.ProductByExactName(ctx, name, brand)
		if err != nil {
			return nil, suggestion
		}
	}
	return p, suggestion
}

func (a *Agent) answerPrice(ctx context.Context, intent Intent) Reply {
	p, suggestion := a.resolveProduct(ctx, intent.ProductName, intent.Brand)
	if p != nil {
		return Reply{
			Kind:    QueryPrice,
			Success: true,
			Message: fmt.Sprintf("The price of %s is ₹%d", p.Name, p.Price),
			Price:   &PricePayload{Product: *p},
		}
	}

	if suggestion != "" {
		return unknownReply(fmt.Sprintf("Did you mean '%s'?", suggestion), []string{suggestion})
	}

	similar := similarProducts(intent.ProductName, a.samples, 5)
	return unknownReply("No exact match found. Try one of these.", similar)
}

func (a *Agent) answerCartAdd(ctx context.Context, intent Intent) Reply {
	qty := intent.Quantity
	if qty <= 0 {
		qty = 1
	}

	p, suggestion := a.resolveProduct(ctx, intent.ProductName, intent.Brand)
	if p != nil {
		return Reply{
			Kind:    QueryCartAdd,
			Success: true,
			Message: fmt.Sprintf("Adding %d x %s to cart", qty, p.Name),
			CartAdd: &CartAddPayload{
				Product:     p,
				ProductName: p.Name,
				Quantity:    qty,
				Weight:      intent.Weight,
			},
		}
	}

	if suggestion != "" {
		return unknownReply(fmt.Sprintf("Do you mean '%s'?", suggestion), []string{suggestion})
	}

	// Unresolved: hand the extracted name back so the engine can run its own
	// local resolution pipeline.
	return Reply{
		Kind:    QueryCartAdd,
		Success: false,
		Message: fmt.Sprintf("I understood you want %s, but couldn't resolve it.", intent.ProductName),
		CartAdd: &CartAddPayload{
			ProductName: intent.ProductName,
			Quantity:    qty,
			Weight:      intent.Weight,
		},
	}
}

func (a *Agent) answerCategoryFilter(ctx context.Context, intent Intent) Reply {
	limit := intent.Limit
	if limit <= 0 {
		limit = 5
	}
	cat := strings.TrimSpace(intent.Category)

	products, err := a.catalog.ProductsByCategoryPattern(ctx, cat, limit)
	if err != nil {
		log.Warn().Err(err).Str("category", cat).Msg("category lookup failed")
		products = nil
	}

	if len(products) == 0 {
		return Reply{
			Kind:    QueryCategoryFilter,
			Message: fmt.Sprintf("No products found in '%s'", cat),
			Listing: &ListingPayload{},
		}
	}
	return Reply{
		Kind:    QueryCategoryFilter,
		Success: true,
		Message: fmt.Sprintf("Found %d products in '%s'", len(products), cat),
		Listing: &ListingPayload{Products: products},
	}
}

func (a *Agent) answerProductSearch(ctx context.Context, intent Intent) Reply {
	name := strings.TrimSpace(intent.ProductName)
	if name == "" {
		return Reply{
			Kind:    QueryProductSearch,
			Message: "Please specify which product you'd like to see.",
			Listing: &ListingPayload{},
		}
	}

	products, err := a.catalog.ProductsByNamePattern(ctx, name, intent.Brand, 20)
	if err != nil {
		log.Warn().Err(err).Str("name", name).Msg("product search failed")
		products = nil
	}

	if len(products) == 0 {
		return Reply{
			Kind:    QueryProductSearch,
			Message: fmt.Sprintf("No products found matching '%s'.", name),
			Listing: &ListingPayload{},
		}
	}

	brands := map[string]bool{}
	var brandList []string
	for _, p := range products {
		if p.Brand != "" && !brands[p.Brand] && len(brandList) < 10 {
			brands[p.Brand] = true
			brandList = append(brandList, p.Brand)
		}
	}
	brandText := "various"
	if len(brandList) > 0 {
		brandText = strings.Join(brandList, ", ")
	}

	return Reply{
		Kind:    QueryProductSearch,
		Success: true,
		Message: fmt.Sprintf("Found %d '%s' products from brands: %s", len(products), name, brandText),
		Listing: &ListingPayload{Products: products},
	}
}

func (a *Agent) answerPriceFilter(ctx context.Context, intent Intent) Reply {
	products, err := a.catalog.ProductsByPriceRange(ctx,
		strings.TrimSpace(intent.ProductName), strings.TrimSpace(intent.Category),
		intent.MinPrice, intent.MaxPrice, 20)
	if err != nil {
		log.Warn().Err(err).Msg("price filter lookup failed")
		products = nil
	}

	var parts []string
	if intent.MinPrice != nil {
		parts = append(parts, fmt.Sprintf("above ₹%.0f", *intent.MinPrice))
	}
	if intent.MaxPrice != nil {
		parts = append(parts, fmt.Sprintf("below ₹%.0f", *intent.MaxPrice))
	}
	priceDesc := "in your range"
	if len(parts) > 0 {
		priceDesc = strings.Join(parts, " and ")
	}
	label := intent.ProductName
	if label == "" {
		label = "products"
	}

	if len(products) == 0 {
		return Reply{
			Kind:    QueryPriceFilter,
			Message: fmt.Sprintf("No %s found %s.", label, priceDesc),
			Listing: &ListingPayload{},
		}
	}
	return Reply{
		Kind:    QueryPriceFilter,
		Success: true,
		Message: fmt.Sprintf("Found %d %s %s", len(products), label, priceDesc),
		Listing: &ListingPayload{Products: products},
	}
}
