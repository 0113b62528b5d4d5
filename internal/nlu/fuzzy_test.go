package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("tomato", "tomato"))
	assert.Equal(t, 1.0, similarity("Tomato", " tomato "), "case and padding ignored")
	assert.Equal(t, 0.0, similarity("", "tomato"))
	assert.Greater(t, similarity("tomato", "tomatoes"), 0.8)
	assert.Less(t, similarity("tomato", "shampoo"), 0.5)
}

func TestMatchOrSuggest(t *testing.T) {
	products := []string{"Tomato", "Potato", "Shampoo", "Brown Bread"}

	matched, suggestion, _ := matchOrSuggest("tomato", products)
	assert.Equal(t, "Tomato", matched)
	assert.Empty(t, suggestion)

	// Close but not exact: only a suggestion.
	matched, suggestion, score := matchOrSuggest("tomatoe", products)
	assert.Empty(t, matched)
	assert.Equal(t, "Tomato", suggestion)
	assert.Greater(t, score, 0.6)

	// Nothing close.
	matched, suggestion, _ = matchOrSuggest("xyzzy", products)
	assert.Empty(t, matched)
	assert.Empty(t, suggestion)

	matched, suggestion, _ = matchOrSuggest("", products)
	assert.Empty(t, matched)
	assert.Empty(t, suggestion)
}

func TestSimilarProducts(t *testing.T) {
	products := []string{"Tomato", "Potato", "Tomato Ketchup", "Shampoo"}
	got := similarProducts("tomato", products, 2)
	assert.Len(t, got, 2)
	assert.Equal(t, "Tomato", got[0], "best match ranks first")
}
