package nlu

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmocart/cosmocart/pkg/models"
)

type stubClassifier struct {
	intent Intent
	err    error
}

func (s stubClassifier) Classify(ctx context.Context, message string, categories, products []string) (Intent, error) {
	return s.intent, s.err
}

type stubCatalog struct {
	byName  map[string]models.Product
	listing []models.Product
}

func (s stubCatalog) ProductByExactName(ctx context.Context, name, brand string) (*models.Product, error) {
	if p, ok := s.byName[name]; ok {
		return &p, nil
	}
	return nil, nil
}

func (s stubCatalog) ProductsByNamePattern(ctx context.Context, name, brand string, limit int) ([]models.Product, error) {
	return s.listing, nil
}

func (s stubCatalog) ProductsByCategoryPattern(ctx context.Context, category string, limit int) ([]models.Product, error) {
	return s.listing, nil
}

func (s stubCatalog) ProductsByPriceRange(ctx context.Context, name, category string, minPrice, maxPrice *float64, limit int) ([]models.Product, error) {
	return s.listing, nil
}

func tomato() models.Product {
	return models.Product{ID: 1, Name: "Tomato", Price: 30, UnitType: models.UnitKilogram, IsVeg: true}
}

func TestAgent_ClassifierFailureDegradesToUnknown(t *testing.T) {
	a := NewAgent(stubClassifier{err: errors.New("boom")}, stubCatalog{}, nil, nil)
	reply := a.Answer(context.Background(), "gibberish")
	assert.Equal(t, QueryUnknown, reply.Kind)
	assert.False(t, reply.Success)
	assert.NotEmpty(t, reply.Message)
}

func TestAgent_PriceQueryResolved(t *testing.T) {
	a := NewAgent(
		stubClassifier{intent: Intent{QueryType: "PRICE_QUERY", ProductName: "Tomato", Confidence: 0.9}},
		stubCatalog{byName: map[string]models.Product{"Tomato": tomato()}},
		nil, []string{"Tomato"},
	)

	reply := a.Answer(context.Background(), "what is the price of tomato")
	require.Equal(t, QueryPrice, reply.Kind)
	assert.True(t, reply.Success)
	require.NotNil(t, reply.Price)
	assert.Equal(t, "Tomato", reply.Price.Product.Name)
	assert.Contains(t, reply.Message, "₹30")
}

func TestAgent_PriceQuerySuggestsNearMiss(t *testing.T) {
	a := NewAgent(
		stubClassifier{intent: Intent{QueryType: "PRICE_QUERY", ProductName: "tomatoe"}},
		stubCatalog{},
		nil, []string{"Tomato"},
	)

	reply := a.Answer(context.Background(), "price of tomatoe")
	assert.Equal(t, QueryUnknown, reply.Kind)
	require.NotNil(t, reply.Unknown)
	assert.Equal(t, []string{"Tomato"}, reply.Unknown.Suggestions)
}

func TestAgent_CartAddResolved(t *testing.T) {
	a := NewAgent(
		stubClassifier{intent: Intent{QueryType: "CART_ADD", ProductName: "Tomato", Quantity: 5}},
		stubCatalog{byName: map[string]models.Product{"Tomato": tomato()}},
		nil, []string{"Tomato"},
	)

	reply := a.Answer(context.Background(), "add 5 tomatoes")
	require.Equal(t, QueryCartAdd, reply.Kind)
	assert.True(t, reply.Success)
	require.NotNil(t, reply.CartAdd)
	require.NotNil(t, reply.CartAdd.Product)
	assert.Equal(t, 5, reply.CartAdd.Quantity)
}

func TestAgent_CartAddUnresolvedKeepsName(t *testing.T) {
	a := NewAgent(
		stubClassifier{intent: Intent{QueryType: "CART_ADD", ProductName: "dragonfruit"}},
		stubCatalog{},
		nil, []string{"Tomato"},
	)

	reply := a.Answer(context.Background(), "add dragonfruit")
	require.Equal(t, QueryCartAdd, reply.Kind)
	assert.False(t, reply.Success)
	require.NotNil(t, reply.CartAdd)
	assert.Nil(t, reply.CartAdd.Product)
	assert.Equal(t, "dragonfruit", reply.CartAdd.ProductName)
	assert.Equal(t, 1, reply.CartAdd.Quantity)
}

func TestAgent_CategoryFilter(t *testing.T) {
	a := NewAgent(
		stubClassifier{intent: Intent{QueryType: "CATEGORY_FILTER", Category: "dairy"}},
		stubCatalog{listing: []models.Product{tomato()}},
		nil, nil,
	)

	reply := a.Answer(context.Background(), "show me dairy")
	require.Equal(t, QueryCategoryFilter, reply.Kind)
	assert.True(t, reply.Success)
	require.NotNil(t, reply.Listing)
	assert.Len(t, reply.Listing.Products, 1)
}

func TestAgent_Checkout(t *testing.T) {
	a := NewAgent(stubClassifier{intent: Intent{QueryType: "checkout"}}, stubCatalog{}, nil, nil)
	reply := a.Answer(context.Background(), "I want to pay")
	assert.Equal(t, QueryCheckout, reply.Kind)
	assert.True(t, reply.Success)
}
