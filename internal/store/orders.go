package store

import (
	"context"
	"fmt"

	"github.com/cosmocart/cosmocart/pkg/models"
)

// CreateOrder persists an order with its items in one transaction. Orders
// start in Processing; the job queue moves them to Completed.
func (s *Store) CreateOrder(ctx context.Context, payload models.OrderPayload) (*models.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var order models.Order
	err = tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, user_name, total_amount, status)
		VALUES ($1, $2, $3, 'Processing')
		RETURNING id, user_id, user_name, total_amount, status, created_at`,
		payload.UserID, payload.UserName, payload.TotalAmount,
	).Scan(&order.ID, &order.UserID, &order.UserName, &order.TotalAmount, &order.Status, &order.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting order: %w", err)
	}

	for _, item := range payload.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, price, weight, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, item.ProductID, item.ProductName, item.Quantity, item.Price, item.Weight, item.ImageURL)
		if err != nil {
			return nil, fmt.Errorf("inserting order item: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing order: %w", err)
	}
	order.Items = payload.Items
	return &order, nil
}

// Orders returns the user's five most recent orders, newest first, with
// their items.
func (s *Store) Orders(ctx context.Context, userID string) ([]models.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, user_name, total_amount, status, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC LIMIT 5`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		var o models.Order
		if err := rows.Scan(&o.ID, &o.UserID, &o.UserName, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := s.orderItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

func (s *Store) orderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, product_name, quantity, price, weight, COALESCE(image_url, '')
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Weight, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CompleteOrder marks a processed order as completed.
func (s *Store) CompleteOrder(ctx context.Context, orderID int64) error {
	if _, err := s.pool.Exec(ctx, `UPDATE orders SET status = 'Completed' WHERE id = $1`, orderID); err != nil {
		return fmt.Errorf("completing order: %w", err)
	}
	return nil
}

// ClearCart drops the user's persisted cart lines.
func (s *Store) ClearCart(ctx context.Context, userID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

// FetchCart loads the user's persisted cart lines.
func (s *Store) FetchCart(ctx context.Context, userID string) ([]models.CartLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, product_name, quantity, price, weight, COALESCE(image_url, '')
		FROM cart_items WHERE user_id = $1 ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching cart: %w", err)
	}
	defer rows.Close()

	var lines []models.CartLine
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Quantity, &item.Price, &item.Weight, &item.ImageURL); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		p := models.Product{
			ID:           item.ProductID,
			Name:         item.ProductName,
			Price:        item.Price,
			PerUnitPrice: item.Price,
			ImageURL:     item.ImageURL,
		}
		if item.Weight != "" && item.Weight != "std" {
			p.SelectedWeight = item.Weight
		}
		lines = append(lines, models.CartLine{Product: p, Quantity: item.Quantity})
	}
	return lines, rows.Err()
}

// SaveCart replaces the user's persisted cart with the given snapshot.
// Last write wins across concurrent sessions.
func (s *Store) SaveCart(ctx context.Context, userID string, lines []models.CartLine) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	for _, l := range lines {
		weight := l.Product.SelectedWeight
		if weight == "" {
			weight = "std"
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO cart_items (user_id, product_id, product_name, quantity, price, weight, image_url)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			userID, l.Product.ID, l.Product.Name, l.Quantity, l.Product.Price, weight, l.Product.ImageURL)
		if err != nil {
			return fmt.Errorf("inserting cart item: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing cart: %w", err)
	}
	return nil
}
