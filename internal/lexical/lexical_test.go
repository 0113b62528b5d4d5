package lexical

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNumbers(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"word quantity", "add two milk", "add 2 milk"},
		{"article a", "add a milk and a dozen eggs", "add 1 milk and 1 dozen eggs"},
		{"article an", "get an apple", "get 1 apple"},
		{"case insensitive", "Add TWO milk", "Add 2 milk"},
		{"word boundary preserved", "banana bread", "banana bread"},
		{"no substring corruption", "ten tender tomatoes", "10 tender tomatoes"},
		{"mixed words", "one bread and ten eggs", "1 bread and 10 eggs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeNumbers(tt.input))
		})
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		quantity int
		weight   string
		query    string
	}{
		{"plain item", "add milk", 1, "", "milk"},
		{"with quantity", "add 2 milk", 2, "", "milk"},
		{"word quantity", "add two milk", 2, "", "milk"},
		{"weight only", "buy 500g sugar", 1, "500g", "sugar"},
		{"weight with space", "buy 500 g sugar", 1, "500g", "sugar"},
		{"quantity and weight", "add 2 500g sugar", 2, "500g", "sugar"},
		{"kilogram shorthand", "add 1kg rice", 1, "1kg", "rice"},
		{"kilos plural", "buy 2 kgs rice", 1, "2kg", "rice"},
		{"litre", "get 1 litre milk", 1, "1L", "milk"},
		{"millilitre", "need 250ml cream", 1, "250ml", "cream"},
		{"thousand grams folds to kg", "add 1000g atta", 1, "1kg", "atta"},
		{"thousand ml folds to litre", "add 1000ml oil", 1, "1L", "oil"},
		{"one l canonical case", "add 1l milk", 1, "1L", "milk"},
		{"stop words stripped", "i want 2 packets of chips please", 2, "", "chips"},
		{"filler verbs stripped", "get me some bread", 1, "", "me some bread"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Extract(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.quantity, cmd.Quantity, "quantity")
			assert.Equal(t, tt.weight, cmd.Weight, "weight")
			assert.Equal(t, tt.query, cmd.Query, "query")
		})
	}
}

func TestExtract_WeightLiteralIsNotQuantity(t *testing.T) {
	// The 500 in "500g" must never be read as an item count.
	cmd, err := Extract("buy 500g sugar")
	require.NoError(t, err)
	assert.Equal(t, 1, cmd.Quantity)
	assert.Equal(t, "500g", cmd.Weight)

	cmd, err = Extract("add 250 ml cream")
	require.NoError(t, err)
	assert.Equal(t, 1, cmd.Quantity)
	assert.Equal(t, "250ml", cmd.Weight)
}

func TestExtract_EmptyQuery(t *testing.T) {
	cmd, err := Extract("add 2")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Equal(t, 2, cmd.Quantity)
	assert.Empty(t, cmd.Query)

	_, err = Extract("please add")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
