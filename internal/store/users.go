package store

import (
	"database/sql"
	"errors"
	"time"
)

// User is a bot user, created on first contact and refreshed on every
// subsequent one. Never deleted.
type User struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username,omitempty"`
	FirstName   string    `json:"first_name,omitempty"`
	LastName    string    `json:"last_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	OrdersCount int       `json:"orders_count"`
}

// UpsertUser creates the user on first contact or refreshes the display
// name fields on later ones. The order counter is never touched here.
func (s *Store) UpsertUser(id int64, username, firstName, lastName string) error {
	_, err := s.db.Exec(`
		INSERT INTO users (id, username, first_name, last_name, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name
	`, id, username, firstName, lastName, time.Now().UTC())
	return storageErr("upsert user", err)
}

// GetUser returns a user by id, or nil when unknown.
func (s *Store) GetUser(id int64) (*User, error) {
	var u User
	err := s.db.QueryRow(`
		SELECT id, username, first_name, last_name, created_at, orders_count
		FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Username, &u.FirstName, &u.LastName, &u.CreatedAt, &u.OrdersCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get user", err)
	}
	return &u, nil
}
