package nlu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeReply_CartAddResolved(t *testing.T) {
	data := []byte(`{
		"success": true,
		"query_type": "CART_ADD",
		"message": "Adding 2 x Amul Milk to cart",
		"product": {"id": 7, "name": "Amul Milk", "brand": "Amul", "sale_price": 60, "unit_type": "l", "is_veg": true},
		"quantity": 2,
		"weight": "500ml"
	}`)

	reply, err := DecodeReply(data)
	require.NoError(t, err)
	assert.Equal(t, QueryCartAdd, reply.Kind)
	assert.True(t, reply.Success)
	require.NotNil(t, reply.CartAdd)
	require.NotNil(t, reply.CartAdd.Product)
	assert.Equal(t, "Amul Milk", reply.CartAdd.Product.Name)
	assert.Equal(t, 2, reply.CartAdd.Quantity)
	assert.Equal(t, "500ml", reply.CartAdd.Weight)
	assert.Nil(t, reply.Listing, "only the active variant is populated")
	assert.Nil(t, reply.Price)
}

func TestDecodeReply_CartAddDefaultsQuantity(t *testing.T) {
	data := []byte(`{"success": false, "query_type": "CART_ADD", "product_name": "jaggery"}`)
	reply, err := DecodeReply(data)
	require.NoError(t, err)
	require.NotNil(t, reply.CartAdd)
	assert.Equal(t, 1, reply.CartAdd.Quantity)
	assert.Equal(t, "jaggery", reply.CartAdd.ProductName)
	assert.Nil(t, reply.CartAdd.Product)
}

func TestDecodeReply_CartAddWithoutAnyProductIsInvalid(t *testing.T) {
	data := []byte(`{"success": true, "query_type": "CART_ADD"}`)
	reply, err := DecodeReply(data)
	assert.Error(t, err)
	assert.Equal(t, QueryUnknown, reply.Kind, "invalid payloads degrade to UNKNOWN")
}

func TestDecodeReply_PriceQueryRequiresProduct(t *testing.T) {
	data := []byte(`{"success": true, "query_type": "PRICE_QUERY", "message": "..."}`)
	reply, err := DecodeReply(data)
	assert.Error(t, err)
	assert.Equal(t, QueryUnknown, reply.Kind)
}

func TestDecodeReply_ListingKinds(t *testing.T) {
	for _, kind := range []string{"CATEGORY_FILTER", "PRODUCT_SEARCH", "PRICE_FILTER"} {
		data := []byte(`{"success": true, "query_type": "` + kind + `",
			"products": [{"id": 1, "name": "Rice", "sale_price": 80}, {"id": 2, "name": "Brown Rice", "sale_price": 120}]}`)
		reply, err := DecodeReply(data)
		require.NoError(t, err, kind)
		require.NotNil(t, reply.Listing, kind)
		assert.Len(t, reply.Listing.Products, 2, kind)
	}
}

func TestDecodeReply_UnrecognizedTypeFallsToUnknown(t *testing.T) {
	data := []byte(`{"success": false, "query_type": "banana", "message": "huh", "suggestions": ["show me rice"]}`)
	reply, err := DecodeReply(data)
	require.NoError(t, err)
	assert.Equal(t, QueryUnknown, reply.Kind)
	require.NotNil(t, reply.Unknown)
	assert.Equal(t, []string{"show me rice"}, reply.Unknown.Suggestions)
}

func TestDecodeReply_LowercaseTypeIsNormalized(t *testing.T) {
	data := []byte(`{"success": true, "query_type": "checkout", "message": "Starting checkout"}`)
	reply, err := DecodeReply(data)
	require.NoError(t, err)
	assert.Equal(t, QueryCheckout, reply.Kind)
}

func TestDecodeReply_Garbage(t *testing.T) {
	reply, err := DecodeReply([]byte(`not json at all`))
	assert.Error(t, err)
	assert.Equal(t, QueryUnknown, reply.Kind)
}

func TestReplyEncodeRoundTrip(t *testing.T) {
	original := Reply{
		Kind:    QueryCheckout,
		Success: true,
		Message: "Starting checkout",
	}
	data, err := original.Encode()
	require.NoError(t, err)

	decoded, err := DecodeReply(data)
	require.NoError(t, err)
	assert.Equal(t, original.Kind, decoded.Kind)
	assert.Equal(t, original.Message, decoded.Message)
}
