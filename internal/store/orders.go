package store

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// OrderItem is one product line in an order.
type OrderItem struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// Order is a placed order. Products are stored as a JSON list.
type Order struct {
	ID          string      `json:"id"`
	UserID      int64       `json:"user_id"`
	Products    []OrderItem `json:"products"`
	TotalAmount float64     `json:"total_amount"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CreateOrder records an order and bumps the user's order counter in the
// same transaction. Returns the new order's id.
func (s *Store) CreateOrder(userID int64, products []OrderItem, total float64) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", storageErr("create order", err)
	}

	productsJSON, err := json.Marshal(products)
	if err != nil {
		return "", storageErr("create order", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", storageErr("create order", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(`
		INSERT INTO orders (id, user_id, products, total_amount, status, created_at)
		VALUES (?, ?, ?, ?, 'pending', ?)
	`, id.String(), userID, string(productsJSON), total, time.Now().UTC())
	if err != nil {
		return "", storageErr("create order", err)
	}

	_, err = tx.Exec(`UPDATE users SET orders_count = orders_count + 1 WHERE id = ?`, userID)
	if err != nil {
		return "", storageErr("create order", err)
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr("create order", err)
	}
	return id.String(), nil
}

// Orders returns a user's orders, most recent first.
func (s *Store) Orders(userID int64, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, products, total_amount, status, created_at
		FROM orders
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, storageErr("orders", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var o Order
		var productsJSON string
		if err := rows.Scan(&o.ID, &o.UserID, &productsJSON, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
			return nil, storageErr("orders", err)
		}
		if err := json.Unmarshal([]byte(productsJSON), &o.Products); err != nil {
			return nil, storageErr("orders", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("orders", err)
	}

	return orders, nil
}
