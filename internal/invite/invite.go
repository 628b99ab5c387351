// Package invite issues invite links and redeems them for boost credits.
package invite

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notepid/gloop/internal/db"
	"github.com/notepid/gloop/internal/user"
)

const (
	// CodeLength is the number of base36 characters in an invite code.
	CodeLength = 22
	// BoostsPerRedemption is what the inviter earns each time a code is used.
	BoostsPerRedemption = 1

	codeAlphabet    = "0123456789abcdefghijklmnopqrstuvwxyz"
	maxCodeAttempts = 3
)

// ErrInvalidCode is returned when redeeming an unknown code.
var ErrInvalidCode = errors.New("invalid invite link")

// Link is an issued invite.
type Link struct {
	ID        string
	UserID    string
	Code      string
	Uses      int
	CreatedAt time.Time
}

// Repo handles record store operations for invite links.
type Repo struct {
	db    *db.DB
	users *user.Repo
}

// NewRepo creates a new invite repository.
func NewRepo(database *db.DB, users *user.Repo) *Repo {
	return &Repo{db: database, users: users}
}

// NewCode returns a random base36 code.
func NewCode() (string, error) {
	var b strings.Builder
	b.Grow(CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < CodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate invite code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

// Create issues a fresh invite link for userID.
func (r *Repo) Create(ctx context.Context, userID string, now time.Time) (*Link, error) {
	for attempt := 0; ; attempt++ {
		code, err := NewCode()
		if err != nil {
			return nil, err
		}
		l := &Link{
			ID:        uuid.NewString(),
			UserID:    userID,
			Code:      code,
			CreatedAt: now.UTC(),
		}
		_, err = r.db.ExecContext(ctx, r.db.Rebind(`
			INSERT INTO invite_links (id, user_id, code, uses, created_at) VALUES (?, ?, ?, 0, ?)
		`), l.ID, l.UserID, l.Code, l.CreatedAt)
		if err == nil {
			return l, nil
		}
		if db.IsUniqueViolation(err) && attempt+1 < maxCodeAttempts {
			continue
		}
		return nil, fmt.Errorf("create invite for %s: %w", userID, err)
	}
}

// Redeem records one use of code and grants the inviter a boost credit. It
// returns the inviter as stored after the grant.
func (r *Repo) Redeem(ctx context.Context, code string) (*user.Record, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrInvalidCode
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin redeem: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id, inviter string
	err = tx.QueryRowContext(ctx, r.db.Rebind(`SELECT id, user_id FROM invite_links WHERE code = ?`), code).Scan(&id, &inviter)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("find invite %s: %w", code, err)
	}

	if _, err := tx.ExecContext(ctx, r.db.Rebind(`UPDATE invite_links SET uses = uses + 1 WHERE id = ?`), id); err != nil {
		return nil, fmt.Errorf("count invite use %s: %w", code, err)
	}
	if err := r.users.GrantBoostsTx(ctx, tx, inviter, BoostsPerRedemption); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidCode
		}
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit redeem: %w", err)
	}

	return r.users.GetByID(ctx, inviter)
}

// List returns every invite link, newest first.
func (r *Repo) List(ctx context.Context) ([]Link, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, code, uses, created_at FROM invite_links
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		var created sql.NullTime
		if err := rows.Scan(&l.ID, &l.UserID, &l.Code, &l.Uses, &created); err != nil {
			return nil, fmt.Errorf("scan invite: %w", err)
		}
		if created.Valid {
			l.CreatedAt = created.Time
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// URL builds the shareable link for code.
func URL(baseURL, code string) string {
	return strings.TrimRight(baseURL, "/") + "/invite/" + code
}

// CodeFromURL extracts the code from a shareable link, or returns s
// unchanged when it is already a bare code.
func CodeFromURL(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "/invite/"); i >= 0 {
		s = s[i+len("/invite/"):]
	}
	return strings.Trim(s, "/")
}
