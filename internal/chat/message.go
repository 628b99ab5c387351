package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/notepid/gloop/internal/db"
)

// Limits applied to posted messages.
const (
	MaxLength      = 150
	MaxNameLength  = 50
	DefaultHistory = 50
	AnonymousName  = "Anonymous Glooper"
)

// ErrNotFound is returned when no message matches the id.
var ErrNotFound = errors.New("chat message not found")

// Message is a global chat message.
type Message struct {
	ID          string
	DisplayName string
	Body        string
	CreatedAt   time.Time
}

// Repo handles record store operations for global chat.
type Repo struct {
	db *db.DB
}

// NewRepo creates a new chat repository.
func NewRepo(database *db.DB) *Repo {
	return &Repo{db: database}
}

// Latest returns up to limit of the newest messages, oldest first.
func (r *Repo) Latest(ctx context.Context, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultHistory
	}
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT id, display_name, message, created_at
		FROM global_chat
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("query chat: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.DisplayName, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat: %w", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Insert stores a message as given.
func (r *Repo) Insert(ctx context.Context, name, body string, at time.Time) (*Message, error) {
	m := &Message{
		ID:          uuid.NewString(),
		DisplayName: name,
		Body:        body,
		CreatedAt:   at.UTC(),
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO global_chat (id, display_name, message, created_at) VALUES (?, ?, ?, ?)
	`), m.ID, m.DisplayName, m.Body, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}
	return m, nil
}

// Delete removes a message.
func (r *Repo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM global_chat WHERE id = ?"), id)
	if err != nil {
		return fmt.Errorf("delete chat message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete chat message: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
