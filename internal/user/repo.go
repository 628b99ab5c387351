package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notepid/gloop/internal/db"
)

var (
	// ErrNotFound is returned when no user matches the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
)

// Repo handles record store operations for users.
type Repo struct {
	db *db.DB
}

// NewRepo creates a new user repository.
func NewRepo(database *db.DB) *Repo {
	return &Repo{db: database}
}

const selectColumns = `
	SELECT id, email, first_name, last_name, gloop_count, daily_gloop_count,
	       last_daily_reset, gloop_boosts, daily_boosts_used, last_boost_reset, created_at
	FROM users`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (Record, error) {
	var r Record
	var lastDaily, lastBoost, created sql.NullTime
	var used sql.NullInt64

	if err := s.Scan(&r.ID, &r.Email, &r.FirstName, &r.LastName, &r.TotalScore, &r.DailyScore,
		&lastDaily, &r.BoostCredits, &used, &lastBoost, &created); err != nil {
		return Record{}, err
	}

	if lastDaily.Valid {
		r.LastDailyReset = lastDaily.Time
	}
	if created.Valid {
		r.CreatedAt = created.Time
	}
	if used.Valid {
		t := Tracked{Used: int(used.Int64)}
		if lastBoost.Valid {
			t.LastReset = lastBoost.Time
		}
		r.Usage = t
	} else {
		r.Usage = Legacy{}
	}
	return r, nil
}

// Create inserts a new user. The email must already be normalized.
func (r *Repo) Create(ctx context.Context, email, firstName, lastName string, now time.Time) (*Record, error) {
	id := uuid.NewString()
	now = now.UTC()

	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO users (id, email, first_name, last_name, gloop_count, daily_gloop_count,
		                   last_daily_reset, gloop_boosts, daily_boosts_used, last_boost_reset, created_at)
		VALUES (?, ?, ?, ?, 0, 0, ?, 0, 0, ?, ?)
	`), id, email, firstName, lastName, now, now, now)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user %s: %w", email, err)
	}

	return r.GetByID(ctx, id)
}

// GetByID retrieves a user by id.
func (r *Repo) GetByID(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, r.db.Rebind(selectColumns+` WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &rec, nil
}

// GetByEmail retrieves a user by email, ignoring case.
func (r *Repo) GetByEmail(ctx context.Context, email string) (*Record, error) {
	email = NormalizeEmail(email)
	rec, err := scanRecord(r.db.QueryRowContext(ctx, r.db.Rebind(selectColumns+` WHERE email = ?`), email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", email, err)
	}
	return &rec, nil
}

// List returns every user ordered by total score, highest first.
func (r *Repo) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY gloop_count DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, rec)
	}
	return users, rows.Err()
}

// Patch applies a partial update to one user.
func (r *Repo) Patch(ctx context.Context, id string, p Patch) error {
	if p.IsEmpty() {
		return nil
	}

	var sets []string
	var args []any
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.TotalScore != nil {
		add("gloop_count", *p.TotalScore)
	}
	if p.DailyScore != nil {
		add("daily_gloop_count", *p.DailyScore)
	}
	if p.LastDailyReset != nil {
		add("last_daily_reset", p.LastDailyReset.UTC())
	}
	if p.BoostCredits != nil {
		add("gloop_boosts", *p.BoostCredits)
	}
	if p.DailyBoostsUsed != nil {
		add("daily_boosts_used", *p.DailyBoostsUsed)
	}
	if p.LastBoostReset != nil {
		add("last_boost_reset", p.LastBoostReset.UTC())
	}
	if p.FirstName != nil {
		add("first_name", *p.FirstName)
	}
	if p.LastName != nil {
		add("last_name", *p.LastName)
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`), args...)
	if err != nil {
		return fmt.Errorf("patch user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementScore atomically adds amount to both score counters.
func (r *Repo) IncrementScore(ctx context.Context, id string, amount int64) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`
		UPDATE users SET gloop_count = gloop_count + ?, daily_gloop_count = daily_gloop_count + ?
		WHERE id = ?
	`), amount, amount, id)
	if err != nil {
		return fmt.Errorf("increment user %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantBoosts atomically adds n boost credits.
func (r *Repo) GrantBoosts(ctx context.Context, id string, n int64) error {
	return grantBoosts(ctx, r.db, r.db.Rebind, id, n)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// grantBoosts is shared with invite redemption, which runs it inside a transaction.
func grantBoosts(ctx context.Context, ex execer, rebind func(string) string, id string, n int64) error {
	res, err := ex.ExecContext(ctx, rebind(`UPDATE users SET gloop_boosts = gloop_boosts + ? WHERE id = ?`), n, id)
	if err != nil {
		return fmt.Errorf("grant boosts to %s: %w", id, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantBoostsTx grants boost credits inside a caller-owned transaction.
func (r *Repo) GrantBoostsTx(ctx context.Context, tx *sql.Tx, id string, n int64) error {
	return grantBoosts(ctx, tx, r.db.Rebind, id, n)
}

// RecordGloop appends an entry to the activity log.
func (r *Repo) RecordGloop(ctx context.Context, userID string, amount int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO gloops (id, user_id, gloop_count, created_at) VALUES (?, ?, ?, ?)
	`), uuid.NewString(), userID, amount, at.UTC())
	if err != nil {
		return fmt.Errorf("record gloop for %s: %w", userID, err)
	}
	return nil
}

// Gloop is one entry in the activity log.
type Gloop struct {
	ID        string
	UserID    string
	Amount    int64
	CreatedAt time.Time
}

// RecentGloops returns the newest activity log entries for a user.
func (r *Repo) RecentGloops(ctx context.Context, userID string, limit int) ([]Gloop, error) {
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(`
		SELECT id, user_id, gloop_count, created_at FROM gloops
		WHERE user_id = ? ORDER BY created_at DESC LIMIT ?
	`), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list gloops for %s: %w", userID, err)
	}
	defer rows.Close()

	var out []Gloop
	for rows.Next() {
		var g Gloop
		var created sql.NullTime
		if err := rows.Scan(&g.ID, &g.UserID, &g.Amount, &created); err != nil {
			return nil, err
		}
		if created.Valid {
			g.CreatedAt = created.Time
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
