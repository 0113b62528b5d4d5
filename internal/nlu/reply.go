// Package nlu defines the natural-language-understanding contract between
// the chat engine and the backend: the typed reply union, its wire codec,
// and the LLM-backed intent classifier used on the server side.
package nlu

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// QueryType discriminates what the user's utterance asks for.
type QueryType string

const (
	QueryPrice          QueryType = "PRICE_QUERY"
	QueryCartAdd        QueryType = "CART_ADD"
	QueryCategoryFilter QueryType = "CATEGORY_FILTER"
	QueryProductSearch  QueryType = "PRODUCT_SEARCH"
	QueryPriceFilter    QueryType = "PRICE_FILTER"
	QueryCheckout       QueryType = "CHECKOUT"
	QueryUnknown        QueryType = "UNKNOWN"
)

// valid reports whether the query type is one the engine dispatches on.
func (q QueryType) valid() bool {
	switch q {
	case QueryPrice, QueryCartAdd, QueryCategoryFilter, QueryProductSearch,
		QueryPriceFilter, QueryCheckout, QueryUnknown:
		return true
	}
	return false
}

// listing reports whether the query type carries a product list payload.
func (q QueryType) listing() bool {
	return q == QueryCategoryFilter || q == QueryProductSearch || q == QueryPriceFilter
}

// Reply is the validated, discriminated form of a chat backend response.
// Exactly one variant pointer is set, selected by Kind; the engine never
// reaches into fields that do not belong to the active variant.
type Reply struct {
	Kind    QueryType
	Success bool
	Message string

	Price   *PricePayload   // Kind == QueryPrice
	CartAdd *CartAddPayload // Kind == QueryCartAdd
	Listing *ListingPayload // Kind.listing()
	Unknown *UnknownPayload // Kind == QueryUnknown
}

// PricePayload carries the single product a price question resolved to.
type PricePayload struct {
	Product models.Product
}

// CartAddPayload carries either a fully resolved product or, as a fallback,
// the name the model extracted for local resolution.
type CartAddPayload struct {
	Product     *models.Product
	ProductName string
	Quantity    int
	Weight      string
}

// ListingPayload carries product rows for the browse-style reply kinds.
type ListingPayload struct {
	Products []models.Product
}

// UnknownPayload carries optional follow-up suggestions.
type UnknownPayload struct {
	Suggestions []string
}

// wireReply is the backend's duck-typed JSON shape; which fields are
// populated depends on query_type. It exists only at this boundary.
type wireReply struct {
	Success     bool                `json:"success"`
	QueryType   string              `json:"query_type"`
	Message     string              `json:"message,omitempty"`
	Product     *models.ProductRow  `json:"product,omitempty"`
	Products    []models.ProductRow `json:"products,omitempty"`
	ProductName string              `json:"product_name,omitempty"`
	Quantity    int                 `json:"quantity,omitempty"`
	Weight      string              `json:"weight,omitempty"`
	Suggestions []string            `json:"suggestions,omitempty"`
}

// DecodeReply validates a raw backend response into the typed union. A
// malformed or unclassifiable payload yields an UNKNOWN reply along with the
// validation error so the caller can fall back to local rules.
func DecodeReply(data []byte) (Reply, error) {
	unknown := Reply{Kind: QueryUnknown, Unknown: &UnknownPayload{}}

	var w wireReply
	if err := json.Unmarshal(data, &w); err != nil {
		return unknown, fmt.Errorf("decode chat reply: %w", err)
	}

	kind := QueryType(strings.ToUpper(strings.TrimSpace(w.QueryType)))
	if !kind.valid() {
		kind = QueryUnknown
	}

	reply := Reply{Kind: kind, Success: w.Success, Message: w.Message}

	switch {
	case kind == QueryPrice:
		if w.Product == nil {
			unknown.Message = w.Message
			return unknown, fmt.Errorf("PRICE_QUERY reply missing product")
		}
		reply.Price = &PricePayload{Product: w.Product.Product()}

	case kind == QueryCartAdd:
		payload := &CartAddPayload{
			ProductName: w.ProductName,
			Quantity:    w.Quantity,
			Weight:      w.Weight,
		}
		if payload.Quantity <= 0 {
			payload.Quantity = 1
		}
		if w.Product != nil {
			p := w.Product.Product()
			payload.Product = &p
			if payload.ProductName == "" {
				payload.ProductName = p.Name
			}
		}
		if payload.Product == nil && payload.ProductName == "" {
			unknown.Message = w.Message
			return unknown, fmt.Errorf("CART_ADD reply has neither product nor product_name")
		}
		reply.CartAdd = payload

	case kind.listing():
		products := make([]models.Product, 0, len(w.Products))
		for _, row := range w.Products {
			products = append(products, row.Product())
		}
		reply.Listing = &ListingPayload{Products: products}

	case kind == QueryCheckout:
		// Message only.

	default:
		reply.Unknown = &UnknownPayload{Suggestions: w.Suggestions}
	}

	return reply, nil
}

// Encode renders the reply back into the backend wire shape.
func (r Reply) Encode() ([]byte, error) {
	w := wireReply{
		Success:   r.Success,
		QueryType: string(r.Kind),
		Message:   r.Message,
	}

	switch {
	case r.Price != nil:
		row := r.Price.Product.Row()
		w.Product = &row
	case r.CartAdd != nil:
		if r.CartAdd.Product != nil {
			row := r.CartAdd.Product.Row()
			w.Product = &row
		}
		w.ProductName = r.CartAdd.ProductName
		w.Quantity = r.CartAdd.Quantity
		w.Weight = r.CartAdd.Weight
	case r.Listing != nil:
		for _, p := range r.Listing.Products {
			w.Products = append(w.Products, p.Row())
		}
	case r.Unknown != nil:
		w.Suggestions = r.Unknown.Suggestions
	}

	return json.Marshal(w)
}
