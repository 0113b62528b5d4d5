package models

import "strings"

// nonVegKeywords backstops catalog rows whose is_veg flag was never
// populated during import.
var nonVegKeywords = []string{
	"chicken", "meat", "fish", "prawn", "shrimp", "crab", "egg",
	"mutton", "pork", "seafood", "beef", "duck",
}

// ProductRow is the backend wire/storage representation of a catalog row.
// Field names follow the backend's snake_case contract.
type ProductRow struct {
	ID          int64   `json:"id" db:"id"`
	Name        string  `json:"name" db:"product"`
	Brand       string  `json:"brand,omitempty" db:"brand"`
	Category    string  `json:"category" db:"category"`
	SubCategory string  `json:"sub_category,omitempty" db:"sub_category"`
	SalePrice   int     `json:"sale_price" db:"sale_price"`
	MarketPrice int     `json:"market_price,omitempty" db:"market_price"`
	UnitType    string  `json:"unit_type,omitempty" db:"unit_type"`
	IsVeg       *bool   `json:"is_veg,omitempty" db:"is_veg"`
	Rating      float64 `json:"rating,omitempty" db:"rating"`
	Description string  `json:"description,omitempty" db:"description"`
	ImageURL    string  `json:"image_url,omitempty" db:"image_url"`
}

// Product converts the wire row into the domain model. Rows without an
// explicit veg flag fall back to a keyword scan over category and name;
// rows without a rating get the catalog default.
func (r ProductRow) Product() Product {
	p := Product{
		ID:            r.ID,
		Name:          r.Name,
		Brand:         r.Brand,
		Category:      r.Category,
		SubCategory:   r.SubCategory,
		Price:         r.SalePrice,
		OriginalPrice: r.MarketPrice,
		PerUnitPrice:  r.SalePrice,
		UnitType:      UnitType(r.UnitType),
		Rating:        r.Rating,
		Description:   r.Description,
		ImageURL:      r.ImageURL,
	}

	switch {
	case r.IsVeg != nil:
		p.IsVeg = *r.IsVeg
	default:
		text := strings.ToLower(r.Category + " " + r.SubCategory + " " + r.Name)
		p.IsVeg = true
		for _, k := range nonVegKeywords {
			if strings.Contains(text, k) {
				p.IsVeg = false
				break
			}
		}
	}

	if p.Rating == 0 {
		p.Rating = 4.5
	}
	return p
}

// Row converts a domain product back to the wire representation.
func (p Product) Row() ProductRow {
	veg := p.IsVeg
	return ProductRow{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		SubCategory: p.SubCategory,
		SalePrice:   p.Price,
		MarketPrice: p.OriginalPrice,
		UnitType:    string(p.UnitType),
		IsVeg:       &veg,
		Rating:      p.Rating,
		Description: p.Description,
		ImageURL:    p.ImageURL,
	}
}
