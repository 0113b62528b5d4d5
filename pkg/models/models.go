package models

import (
	"fmt"
	"time"
)

// UnitType describes how a product is measured and sold.
type UnitType string

const (
	UnitKilogram UnitType = "kg"
	UnitLitre    UnitType = "l"
	UnitPiece    UnitType = "pc"
)

// Weighted reports whether the product supports package-size variants
// (only weight- and volume-based products do).
func (u UnitType) Weighted() bool {
	return u == UnitKilogram || u == UnitLitre
}

// DietMode filters which products the assistant is allowed to surface.
type DietMode string

const (
	DietAll DietMode = "all"
	DietVeg DietMode = "veg"
)

// Product is a catalog entry as served by the storefront backend. The chat
// engine reads and annotates copies (SelectedWeight, recomputed Price); the
// backend owns the canonical rows.
type Product struct {
	ID            int64    `json:"id" db:"id"`
	Name          string   `json:"name" db:"product"`
	Brand         string   `json:"brand,omitempty" db:"brand"`
	Category      string   `json:"category" db:"category"`
	SubCategory   string   `json:"sub_category,omitempty" db:"sub_category"`
	Price         int      `json:"price" db:"sale_price"`
	OriginalPrice int      `json:"original_price,omitempty" db:"market_price"`
	UnitType      UnitType `json:"unit_type" db:"unit_type"`
	IsVeg         bool     `json:"is_veg" db:"is_veg"`
	Rating        float64  `json:"rating,omitempty" db:"rating"`
	Description   string   `json:"description,omitempty" db:"description"`
	ImageURL      string   `json:"image_url,omitempty" db:"image_url"`

	// PerUnitPrice is the canonical selling price for one full unit (1kg/1L).
	// Variant prices are always recomputed from it, never stored.
	PerUnitPrice int `json:"per_unit_price,omitempty"`

	// SelectedWeight is a chat-session annotation such as "500g" or "1L".
	// Empty means the standard pack.
	SelectedWeight string `json:"selected_weight,omitempty"`
}

// VariantKey is the cart-line identity: product plus selected package size.
func (p Product) VariantKey() string {
	w := p.SelectedWeight
	if w == "" {
		w = "std"
	}
	return fmt.Sprintf("%d-%s", p.ID, w)
}

// DiscountPercent returns the rounded markdown from the original price.
func (p Product) DiscountPercent() int {
	if p.OriginalPrice <= p.Price || p.OriginalPrice == 0 {
		return 0
	}
	return int(float64(p.OriginalPrice-p.Price)/float64(p.OriginalPrice)*100 + 0.5)
}

// CartLine is one variant-keyed entry in a shopping cart.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Subtotal is the line contribution to the cart total.
func (l CartLine) Subtotal() int {
	return l.Product.Price * l.Quantity
}

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageType selects which interactive widget the UI renders for a message.
type MessageType string

const (
	MessageText         MessageType = "text"
	MessageError        MessageType = "error"
	MessageSuccess      MessageType = "success"
	MessageOptions      MessageType = "options"
	MessageGrid         MessageType = "grid"
	MessageCarousel     MessageType = "carousel"
	MessageSubCarousel  MessageType = "sub_carousel"
	MessageProductGrid  MessageType = "product_grid"
	MessageProductCard  MessageType = "product_card"
	MessageOrderPreview MessageType = "order_preview"
	MessageOrderSummary MessageType = "order_summary"
	MessageDeliveryForm MessageType = "delivery_form"
	MessageRecipeList   MessageType = "recipe_list"
)

// Message is one entry in the conversation transcript. The transcript is
// append-only; a message is never mutated once appended.
type Message struct {
	ID      string      `json:"id"`
	Sender  Sender      `json:"sender"`
	Content string      `json:"content,omitempty"`
	Type    MessageType `json:"type"`
	Data    interface{} `json:"data,omitempty"`
}

// UIAction is a structured button event from the chat UI. Actions bypass NLU
// entirely: the ID or Action field deterministically selects a branch.
type UIAction struct {
	ID            string           `json:"id"`
	Label         string           `json:"label"`
	Action        string           `json:"action,omitempty"`
	Command       string           `json:"command,omitempty"` // synthetic, e.g. "ShowSub Dairy|Milk"
	Delivery      *DeliveryDetails `json:"delivery,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
}

// DeliveryDetails is the delivery form payload submitted during checkout.
type DeliveryDetails struct {
	Name      string `json:"name"`
	Mobile    string `json:"mobile"`
	AltMobile string `json:"alt_mobile"`
	Address   string `json:"address"`
}

// OrderSummary is the widget payload for the final order manifest.
type OrderSummary struct {
	Mode    string     `json:"mode"`
	Details string     `json:"details"`
	Items   []CartLine `json:"items"`
	Total   int        `json:"total"`
}

// OrderItem is one purchased line inside an order.
type OrderItem struct {
	ProductID   int64  `json:"product_id" db:"product_id"`
	ProductName string `json:"product_name" db:"product_name"`
	Quantity    int    `json:"quantity" db:"quantity"`
	Price       int    `json:"price" db:"price"`
	Weight      string `json:"weight" db:"weight"`
	ImageURL    string `json:"image_url,omitempty" db:"image_url"`
}

// OrderPayload is what the engine submits when the user confirms an order.
type OrderPayload struct {
	UserID        string      `json:"user_id"`
	UserName      string      `json:"user_name"`
	TotalAmount   int         `json:"total_amount"`
	PaymentMethod string      `json:"payment_method"`
	Items         []OrderItem `json:"items"`
}

// Order is a persisted order as returned by the backend.
type Order struct {
	ID          int64       `json:"id" db:"id"`
	UserID      string      `json:"user_id" db:"user_id"`
	UserName    string      `json:"user_name" db:"user_name"`
	TotalAmount int         `json:"total_amount" db:"total_amount"`
	Status      string      `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	Items       []OrderItem `json:"items"`
}

// Category is a top-level browse department.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SubCategory is a section within a department, with a representative image.
type SubCategory struct {
	Name     string `json:"name"`
	ImageURL string `json:"image,omitempty"`
}

// Ingredient maps a recipe line to a catalog search term.
type Ingredient struct {
	SearchTerm    string  `json:"search_term"`
	QtyPerServing float64 `json:"qty_per_serving"`
}

// Recipe is a meal kit whose ingredients can be expanded into cart lines.
type Recipe struct {
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
}

// User is the shopper a chat session belongs to.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Mobile string `json:"mobile,omitempty"`
}
