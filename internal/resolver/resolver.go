// Package resolver turns a cleaned search phrase into a single catalog
// product, applying the dietary filter, brand preference, and weight-based
// price adjustment.
package resolver

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// ProductSearcher is the catalog search surface the resolver queries.
type ProductSearcher interface {
	SearchProducts(ctx context.Context, query string) ([]models.Product, error)
}

// NoMatchError reports that no catalog product satisfied the query. The
// attempted query is kept so callers can surface it verbatim.
type NoMatchError struct {
	Query string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no product found for %q", e.Query)
}

// Resolver resolves cleaned phrases against a catalog searcher.
type Resolver struct {
	searcher ProductSearcher
}

func New(searcher ProductSearcher) *Resolver {
	return &Resolver{searcher: searcher}
}

// Resolve finds the best product for the cleaned phrase. When a weight was
// extracted and the product is sold by the kilogram or litre, the returned
// copy carries the selected weight and a price recomputed from the per-unit
// selling price.
func (r *Resolver) Resolve(ctx context.Context, query, weight string, diet models.DietMode) (models.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.Product{}, &NoMatchError{Query: query}
	}

	candidates, err := r.searcher.SearchProducts(ctx, query)
	if err != nil {
		return models.Product{}, fmt.Errorf("searching catalog for %q: %w", query, err)
	}

	candidates = filterTokenMatch(candidates, query)
	if diet == models.DietVeg {
		candidates = filterVeg(candidates)
	}
	if len(candidates) == 0 {
		return models.Product{}, &NoMatchError{Query: query}
	}

	chosen := pickPreferred(candidates, query)
	if weight != "" && chosen.UnitType.Weighted() {
		chosen = applyWeight(chosen, weight)
	}

	log.Debug().
		Str("query", query).
		Str("product", chosen.Name).
		Str("weight", chosen.SelectedWeight).
		Msg("resolved product")
	return chosen, nil
}

// filterTokenMatch keeps products whose name contains every query token,
// case-insensitive.
func filterTokenMatch(products []models.Product, query string) []models.Product {
	tokens := strings.Fields(strings.ToLower(query))
	var out []models.Product
	for _, p := range products {
		name := strings.ToLower(p.Name)
		ok := true
		for _, tok := range tokens {
			if !strings.Contains(name, tok) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, p)
		}
	}
	return out
}

func filterVeg(products []models.Product) []models.Product {
	var out []models.Product
	for _, p := range products {
		if p.IsVeg {
			out = append(out, p)
		}
	}
	return out
}

// pickPreferred takes the first candidate, unless a later one's brand name
// appears in the query itself. "add amul milk" should beat a generic milk
// match.
func pickPreferred(candidates []models.Product, query string) models.Product {
	lower := strings.ToLower(query)
	for _, p := range candidates {
		if p.Brand != "" && strings.Contains(lower, strings.ToLower(p.Brand)) {
			return p
		}
	}
	return candidates[0]
}

// applyWeight annotates the product with the selected weight and recomputes
// the price from the per-unit selling price. Tiers follow the weight prefix:
// a 500-gram or 500-millilitre pick costs 55% of the unit price, a 250 pick
// costs 30%, a full unit keeps it as is. Prices floor to whole rupees.
func applyWeight(p models.Product, weight string) models.Product {
	multiplier := 1.0
	switch {
	case strings.HasPrefix(weight, "500"):
		multiplier = 0.55
	case strings.HasPrefix(weight, "250"):
		multiplier = 0.30
	}
	p.SelectedWeight = weight
	p.Price = int(math.Floor(float64(p.PerUnitPrice) * multiplier))
	return p
}
