package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cosmocart/cosmocart/pkg/models"
)

type fakeSearcher struct {
	products []models.Product
	err      error
	lastQ    string
}

func (f *fakeSearcher) SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	f.lastQ = query
	return f.products, f.err
}

func milk(id int64, brand string, price int) models.Product {
	return models.Product{
		ID: id, Name: brand + " Milk", Brand: brand,
		Price: price, PerUnitPrice: price,
		UnitType: models.UnitLitre, IsVeg: true,
	}
}

func TestResolve_FirstMatchWins(t *testing.T) {
	s := &fakeSearcher{products: []models.Product{milk(1, "Nandini", 50), milk(2, "Amul", 60)}}
	r := New(s)

	got, err := r.Resolve(context.Background(), "milk", "", models.DietAll)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.ID)
	assert.Equal(t, "milk", s.lastQ)
}

func TestResolve_BrandInQueryPreferred(t *testing.T) {
	s := &fakeSearcher{products: []models.Product{milk(1, "Nandini", 50), milk(2, "Amul", 60)}}
	r := New(s)

	got, err := r.Resolve(context.Background(), "amul milk", "", models.DietAll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)
}

func TestResolve_VegModeDropsNonVeg(t *testing.T) {
	egg := models.Product{ID: 3, Name: "Farm Eggs", Price: 90, UnitType: models.UnitPiece, IsVeg: false}
	s := &fakeSearcher{products: []models.Product{egg}}
	r := New(s)

	_, err := r.Resolve(context.Background(), "eggs", "", models.DietVeg)
	var noMatch *NoMatchError
	require.ErrorAs(t, err, &noMatch)
	assert.Equal(t, "eggs", noMatch.Query)
}

func TestResolve_EveryTokenMustMatchName(t *testing.T) {
	s := &fakeSearcher{products: []models.Product{
		{ID: 1, Name: "Brown Bread", Price: 40, UnitType: models.UnitPiece, IsVeg: true},
		{ID: 2, Name: "Brown Rice", Price: 80, UnitType: models.UnitKilogram, IsVeg: true},
	}}
	r := New(s)

	got, err := r.Resolve(context.Background(), "brown rice", "", models.DietAll)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID)
}

func TestResolve_WeightPricing(t *testing.T) {
	rice := models.Product{
		ID: 1, Name: "Basmati Rice", Price: 201, PerUnitPrice: 201,
		UnitType: models.UnitKilogram, IsVeg: true,
	}

	tests := []struct {
		weight    string
		wantPrice int
	}{
		{"500g", 110}, // floor(201 * 0.55)
		{"250g", 60},  // floor(201 * 0.30)
		{"1kg", 201},
	}
	for _, tt := range tests {
		t.Run(tt.weight, func(t *testing.T) {
			r := New(&fakeSearcher{products: []models.Product{rice}})
			got, err := r.Resolve(context.Background(), "rice", tt.weight, models.DietAll)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPrice, got.Price)
			assert.Equal(t, tt.weight, got.SelectedWeight)
		})
	}
}

func TestResolve_WeightIgnoredForPieceGoods(t *testing.T) {
	soap := models.Product{ID: 9, Name: "Bath Soap", Price: 35, PerUnitPrice: 35, UnitType: models.UnitPiece, IsVeg: true}
	r := New(&fakeSearcher{products: []models.Product{soap}})

	got, err := r.Resolve(context.Background(), "soap", "500g", models.DietAll)
	require.NoError(t, err)
	assert.Empty(t, got.SelectedWeight)
	assert.Equal(t, 35, got.Price)
}

func TestResolve_EmptyQuery(t *testing.T) {
	r := New(&fakeSearcher{})
	_, err := r.Resolve(context.Background(), "  ", "", models.DietAll)
	var noMatch *NoMatchError
	assert.ErrorAs(t, err, &noMatch)
}

func TestResolve_SearchErrorWrapped(t *testing.T) {
	boom := errors.New("backend down")
	r := New(&fakeSearcher{err: boom})
	_, err := r.Resolve(context.Background(), "milk", "", models.DietAll)
	assert.ErrorIs(t, err, boom)
}
