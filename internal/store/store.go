// Package store is the Postgres persistence layer: catalog, orders, carts,
// and OTP login records.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// Store wraps a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and verifies the connection.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool exposes the underlying pool for collaborators that share it.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// Migrate creates the schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id BIGSERIAL PRIMARY KEY,
			product TEXT NOT NULL,
			brand TEXT,
			category TEXT NOT NULL,
			sub_category TEXT,
			sale_price INTEGER NOT NULL,
			market_price INTEGER,
			unit_type TEXT,
			is_veg BOOLEAN,
			rating DOUBLE PRECISION,
			description TEXT,
			image_url TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_products_product ON products (lower(product))`,
		`CREATE INDEX IF NOT EXISTS idx_products_category ON products (category)`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			mobile_number TEXT UNIQUE NOT NULL,
			name TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS otps (
			mobile_number TEXT PRIMARY KEY,
			otp_hash TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			user_name TEXT NOT NULL,
			total_amount INTEGER NOT NULL,
			status TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS order_items (
			id BIGSERIAL PRIMARY KEY,
			order_id BIGINT NOT NULL REFERENCES orders(id),
			product_id BIGINT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price INTEGER NOT NULL,
			weight TEXT NOT NULL DEFAULT 'std',
			image_url TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS cart_items (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			product_id BIGINT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price INTEGER NOT NULL,
			weight TEXT NOT NULL DEFAULT 'std',
			image_url TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cart_items_user ON cart_items (user_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("running migration: %w", err)
		}
	}
	return nil
}

const productColumns = `id, product, brand, category, sub_category, sale_price, market_price, unit_type, is_veg, rating, description, image_url`

func scanProducts(rows pgx.Rows) ([]models.Product, error) {
	defer rows.Close()
	var products []models.Product
	for rows.Next() {
		var r models.ProductRow
		var brand, subCategory, unitType, description, imageURL *string
		var marketPrice *int
		var rating *float64
		if err := rows.Scan(&r.ID, &r.Name, &brand, &r.Category, &subCategory,
			&r.SalePrice, &marketPrice, &unitType, &r.IsVeg, &rating, &description, &imageURL); err != nil {
			return nil, fmt.Errorf("scanning product row: %w", err)
		}
		if brand != nil {
			r.Brand = *brand
		}
		if subCategory != nil {
			r.SubCategory = *subCategory
		}
		if marketPrice != nil {
			r.MarketPrice = *marketPrice
		}
		if unitType != nil {
			r.UnitType = *unitType
		}
		if rating != nil {
			r.Rating = *rating
		}
		if description != nil {
			r.Description = *description
		}
		if imageURL != nil {
			r.ImageURL = *imageURL
		}
		products = append(products, r.Product())
	}
	return products, rows.Err()
}

// searchKeywords extracts the tokens worth matching: anything longer than
// two characters.
func searchKeywords(query string) []string {
	var keywords []string
	for _, k := range strings.Fields(query) {
		if len(k) > 2 {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// SearchProducts runs a multi-keyword name search. Any keyword can match;
// short queries fall back to a single substring match.
func (s *Store) SearchProducts(ctx context.Context, query string) ([]models.Product, error) {
	keywords := searchKeywords(query)

	var sql strings.Builder
	var args []interface{}
	sql.WriteString(`SELECT ` + productColumns + ` FROM products WHERE `)
	if len(keywords) > 0 {
		conditions := make([]string, len(keywords))
		for i, k := range keywords {
			args = append(args, "%"+k+"%")
			conditions[i] = fmt.Sprintf("product ILIKE $%d", len(args))
		}
		sql.WriteString("(" + strings.Join(conditions, " OR ") + ")")
	} else {
		args = append(args, "%"+query+"%")
		sql.WriteString("product ILIKE $1")
	}
	args = append(args, 50)
	sql.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))

	rows, err := s.pool.Query(ctx, sql.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching products: %w", err)
	}
	return scanProducts(rows)
}

// ProductsByCategory lists a department.
func (s *Store) ProductsByCategory(ctx context.Context, category string) ([]models.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE category = $1 LIMIT 500`, category)
	if err != nil {
		return nil, fmt.Errorf("listing category: %w", err)
	}
	return scanProducts(rows)
}

// ProductsBySubCategory lists one section of a department.
func (s *Store) ProductsBySubCategory(ctx context.Context, category, sub string) ([]models.Product, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE category = $1 AND sub_category = $2 LIMIT 500`,
		category, sub)
	if err != nil {
		return nil, fmt.Errorf("listing subcategory: %w", err)
	}
	return scanProducts(rows)
}

// CategoryNames returns the distinct department names.
func (s *Store) CategoryNames(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// SubCategories returns the distinct sections of a department, each with a
// representative product image.
func (s *Store) SubCategories(ctx context.Context, category string) ([]models.SubCategory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (sub_category) sub_category, COALESCE(image_url, '')
		FROM products
		WHERE category = $1 AND sub_category IS NOT NULL AND sub_category <> ''
		ORDER BY sub_category, id`, category)
	if err != nil {
		return nil, fmt.Errorf("listing subcategories: %w", err)
	}
	defer rows.Close()
	var subs []models.SubCategory
	for rows.Next() {
		var sub models.SubCategory
		if err := rows.Scan(&sub.Name, &sub.ImageURL); err != nil {
			return nil, fmt.Errorf("scanning subcategory: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// SampleProductNames returns catalog names for the classifier prompt.
func (s *Store) SampleProductNames(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT product FROM products LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("sampling products: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning product name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
