package store

import (
	"context"
	"fmt"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// ProductByExactName finds a product by case-insensitive exact name,
// optionally narrowed by brand. A miss returns nil, not an error.
func (s *Store) ProductByExactName(ctx context.Context, name, brand string) (*models.Product, error) {
	sql := `SELECT ` + productColumns + ` FROM products WHERE lower(product) = lower($1)`
	args := []interface{}{name}
	if brand != "" {
		args = append(args, brand)
		sql += ` AND lower(brand) = lower($2)`
	}
	sql += ` LIMIT 1`

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("looking up product: %w", err)
	}
	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, nil
	}
	return &products[0], nil
}

// ProductsByNamePattern lists products whose name contains the given text,
// optionally narrowed by brand.
func (s *Store) ProductsByNamePattern(ctx context.Context, name, brand string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := `SELECT ` + productColumns + ` FROM products WHERE product ILIKE $1`
	args := []interface{}{"%" + name + "%"}
	if brand != "" {
		args = append(args, "%"+brand+"%")
		sql += ` AND brand ILIKE $2`
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("matching products: %w", err)
	}
	return scanProducts(rows)
}

// ProductsByCategoryPattern lists products whose category or sub-category
// contains the given text.
func (s *Store) ProductsByCategoryPattern(ctx context.Context, category string, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE category ILIKE $1 OR sub_category ILIKE $1
		 LIMIT $2`,
		"%"+category+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("matching category: %w", err)
	}
	return scanProducts(rows)
}

// ProductsByPriceRange lists products inside the given price bounds, both
// optional, optionally narrowed by name or category.
func (s *Store) ProductsByPriceRange(ctx context.Context, name, category string, minPrice, maxPrice *float64, limit int) ([]models.Product, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []interface{}
	if name != "" {
		args = append(args, "%"+name+"%")
		sql += fmt.Sprintf(` AND product ILIKE $%d`, len(args))
	}
	if category != "" {
		args = append(args, "%"+category+"%")
		sql += fmt.Sprintf(` AND (category ILIKE $%d OR sub_category ILIKE $%d)`, len(args), len(args))
	}
	if minPrice != nil {
		args = append(args, *minPrice)
		sql += fmt.Sprintf(` AND sale_price >= $%d`, len(args))
	}
	if maxPrice != nil {
		args = append(args, *maxPrice)
		sql += fmt.Sprintf(` AND sale_price <= $%d`, len(args))
	}
	args = append(args, limit)
	sql += fmt.Sprintf(` ORDER BY sale_price LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("filtering by price: %w", err)
	}
	return scanProducts(rows)
}
