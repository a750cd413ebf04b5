package store

import (
	"time"

	"github.com/google/uuid"
)

// Conversation roles. A turn is either something the user said or
// something the assistant answered; there is no third kind in storage.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a user's conversation, immutable once written.
type Turn struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Append durably writes one turn to the user's conversation log.
// UUIDv7 row IDs keep insertion order recoverable even when two turns
// share a timestamp.
func (s *Store) Append(userID int64, role, text string) error {
	id, err := uuid.NewV7()
	if err != nil {
		return storageErr("append", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO turns (id, user_id, role, text, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id.String(), userID, role, text, time.Now().UTC())
	return storageErr("append", err)
}

// Recent returns up to limit most recent turns for a user, most recent
// first. Unknown users get an empty slice, never an error.
func (s *Store) Recent(userID int64, limit int) ([]Turn, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, role, text, created_at
		FROM turns
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, storageErr("recent", err)
	}
	defer rows.Close()

	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Text, &t.CreatedAt); err != nil {
			return nil, storageErr("recent", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("recent", err)
	}

	return turns, nil
}

// TurnCount returns the total number of turns stored for a user.
func (s *Store) TurnCount(userID int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM turns WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, storageErr("turn count", err)
	}
	return n, nil
}
