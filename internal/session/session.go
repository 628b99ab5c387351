// Package session owns the client-side leaderboard state: the merged users
// collection, the boost countdown, and the recent-activity list. It drives
// the poll loop and writes optimistic increments back to the record store.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/coder/quartz"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notepid/gloop/internal/boost"
	"github.com/notepid/gloop/internal/localstore"
	"github.com/notepid/gloop/internal/recent"
	"github.com/notepid/gloop/internal/reconcile"
	"github.com/notepid/gloop/internal/user"
)

const (
	// DefaultPollInterval is how often the users collection is refreshed.
	DefaultPollInterval = 5 * time.Second

	writeTimeout   = 10 * time.Second
	patchFanout    = 8
	countdownEvery = time.Second
)

var (
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
	// ErrUnknownUser is returned when incrementing an id that is not loaded.
	ErrUnknownUser = errors.New("unknown user")
	// ErrNotSignedIn is returned by operations that need a current user.
	ErrNotSignedIn = errors.New("not signed in")
)

// Store is the authoritative record store. *user.Repo implements it.
type Store interface {
	List(ctx context.Context) ([]user.Record, error)
	GetByID(ctx context.Context, id string) (*user.Record, error)
	Patch(ctx context.Context, id string, p user.Patch) error
	RecordGloop(ctx context.Context, userID string, amount int64, at time.Time) error
}

// Incrementer is implemented by stores with an atomic server-side increment.
// Without it increments fall back to read-then-write.
type Incrementer interface {
	IncrementScore(ctx context.Context, id string, amount int64) error
}

// Config configures a Session.
type Config struct {
	Store        Store
	Local        *localstore.Store // optional
	Policy       reconcile.Policy
	Boost        boost.Config
	Clock        quartz.Clock
	PollInterval time.Duration
	Log          *zap.Logger
}

// Session is the single owner of client state. All mutations are serialized
// behind mu and expressed as pure transitions in state.go.
type Session struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	users         []user.Record
	boost         boost.State
	recents       []recent.Entry
	currentID     string
	closed        bool
	activating    bool
	stopCountdown context.CancelFunc
	pending       map[string]int // increment writes in flight, by id

	changes   chan struct{}
	loops     sync.WaitGroup
	writes    sync.WaitGroup
	recentsMu sync.Mutex
}

// New creates a session. It does nothing until Start is called.
func New(ctx context.Context, cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Session{
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		changes: make(chan struct{}, 1),
		pending: make(map[string]int),
	}
}

// Start restores local state and launches the poll loop. The first poll runs
// immediately.
func (s *Session) Start() {
	s.restore(s.ctx)

	s.loops.Add(1)
	go func() {
		defer s.loops.Done()
		_ = s.Poll(s.ctx)
		w := s.cfg.Clock.TickerFunc(s.ctx, s.cfg.PollInterval, func() error {
			_ = s.Poll(s.ctx)
			return nil
		}, "session", "poll")
		_ = w.Wait()
	}()
}

func (s *Session) restore(ctx context.Context) {
	if s.cfg.Local == nil {
		return
	}
	id, ok, err := s.cfg.Local.Get(ctx, localstore.KeyUserID)
	if err != nil {
		s.cfg.Log.Warn("failed to read stored user id", zap.Error(err))
	}
	list, err := recent.Load(ctx, s.cfg.Local)
	if err != nil {
		s.cfg.Log.Warn("failed to read recent gloops", zap.Error(err))
	}

	s.mu.Lock()
	if ok {
		s.currentID = id
	}
	s.recents = list
	s.mu.Unlock()
	s.notify()
}

// Close stops both loops, waits for background writes and discards any
// results that arrive afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.loops.Wait()
	s.writes.Wait()
}

// Changes signals whenever visible state changed. Signals coalesce.
func (s *Session) Changes() <-chan struct{} {
	return s.changes
}

func (s *Session) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Session) now() time.Time {
	return s.cfg.Clock.Now()
}

// writeContext outlives Close so in-flight writes are not cut short.
func (s *Session) writeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(s.ctx), writeTimeout)
}

// Poll fetches the authoritative users, reconciles them with local state and
// sends the resulting patches. A failed fetch skips the cycle.
func (s *Session) Poll(ctx context.Context) error {
	server, err := s.cfg.Store.List(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.cfg.Log.Warn("failed to fetch users, skipping cycle", zap.Error(err))
		}
		return fmt.Errorf("fetch users: %w", err)
	}

	now := s.now()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	res := s.cfg.Policy.Reconcile(s.users, server, now)
	s.users = res.Users
	patches := withoutPendingScores(res.Patches, s.pending)
	s.mu.Unlock()
	s.notify()

	for _, inv := range res.Invalid {
		s.cfg.Log.Warn("dropping invalid user record",
			zap.Int("index", inv.Index),
			zap.String("id", inv.ID),
			zap.Error(inv.Err),
		)
	}

	s.dispatch(patches)
	return nil
}

// dispatch sends patches in parallel. Each failure is logged and dropped.
func (s *Session) dispatch(patches map[string]user.Patch) {
	if len(patches) == 0 {
		return
	}
	ctx, cancel := s.writeContext()
	defer cancel()

	var g errgroup.Group
	g.SetLimit(patchFanout)
	for id, p := range patches {
		g.Go(func() error {
			if err := s.cfg.Store.Patch(ctx, id, p); err != nil {
				s.cfg.Log.Warn("failed to send patch", zap.String("id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Increment applies an optimistic increment to id and writes it to the store
// in the background. The amount is multiplied while a boost is active.
func (s *Session) Increment(id string) (user.Record, error) {
	now := s.now()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return user.Record{}, ErrClosed
	}
	amount := s.boost.Multiplier(s.cfg.Boost)
	users, rec, rolled, ok := applyIncrement(s.users, id, amount, now, s.cfg.Policy.Rule)
	if !ok {
		s.mu.Unlock()
		return user.Record{}, ErrUnknownUser
	}
	s.users = users
	s.recents = recent.Push(s.recents, rec)
	s.pending[id]++
	s.writes.Add(1)
	s.mu.Unlock()
	s.notify()

	go func() {
		defer s.writes.Done()
		ctx, cancel := s.writeContext()
		defer cancel()

		s.saveRecents(ctx)
		err := s.writeIncrement(ctx, rec, amount, rolled, now)
		s.settle(id)
		if err != nil {
			s.cfg.Log.Warn("failed to write increment", zap.String("id", id), zap.Error(err))
		}
		if err := s.cfg.Store.RecordGloop(ctx, id, amount, now); err != nil {
			s.cfg.Log.Warn("failed to record gloop", zap.String("id", id), zap.Error(err))
		}
	}()
	return rec, nil
}

// settle marks one increment write for id as finished.
func (s *Session) settle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending[id]--; s.pending[id] <= 0 {
		delete(s.pending, id)
	}
}

func (s *Session) writeIncrement(ctx context.Context, rec user.Record, amount int64, rolled bool, now time.Time) error {
	if inc, ok := s.cfg.Store.(Incrementer); ok {
		if err := inc.IncrementScore(ctx, rec.ID, amount); err != nil {
			return err
		}
		if !rolled {
			return nil
		}
		return s.cfg.Store.Patch(ctx, rec.ID, user.Patch{
			DailyScore:     user.Ptr(rec.DailyScore),
			LastDailyReset: user.Ptr(rec.LastDailyReset),
		})
	}

	// Racy with other writers; the next poll repairs what it can.
	cur, err := s.cfg.Store.GetByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	next, _ := reconcile.RollDaily(*cur, now, s.cfg.Policy.Rule)
	return s.cfg.Store.Patch(ctx, rec.ID, user.Patch{
		TotalScore:     user.Ptr(next.TotalScore + amount),
		DailyScore:     user.Ptr(next.DailyScore + amount),
		LastDailyReset: user.Ptr(next.LastDailyReset),
	})
}

func (s *Session) saveRecents(ctx context.Context) {
	if s.cfg.Local == nil {
		return
	}
	s.recentsMu.Lock()
	defer s.recentsMu.Unlock()

	s.mu.Lock()
	list := slices.Clone(s.recents)
	s.mu.Unlock()

	if err := recent.Save(ctx, s.cfg.Local, list); err != nil {
		s.cfg.Log.Warn("failed to save recent gloops", zap.Error(err))
	}
}

// Users returns the merged users, highest total first.
func (s *Session) Users() []user.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users)
}

// Recents returns the recent-activity list, most recent first.
func (s *Session) Recents() []recent.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.recents)
}

// Boost returns the current boost countdown.
func (s *Session) Boost() boost.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boost
}

// BoostConfig returns the boost parameters in effect.
func (s *Session) BoostConfig() boost.Config {
	return s.cfg.Boost
}

// CurrentID returns the signed-in user id, or "".
func (s *Session) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// CurrentUser returns the signed-in user's merged record.
func (s *Session) CurrentUser() (user.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID == "" {
		return user.Record{}, false
	}
	return user.Find(s.users, s.currentID)
}

// SetCurrentUser remembers rec as the signed-in user and adds it to the
// collection if the poll has not seen it yet.
func (s *Session) SetCurrentUser(ctx context.Context, rec user.Record) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.currentID = rec.ID
	if _, ok := user.Find(s.users, rec.ID); !ok {
		s.users = append(slices.Clone(s.users), rec)
		user.SortByTotal(s.users)
	}
	s.mu.Unlock()
	s.notify()

	if s.cfg.Local == nil {
		return nil
	}
	if err := s.cfg.Local.Set(ctx, localstore.KeyUserID, rec.ID); err != nil {
		return fmt.Errorf("store user id: %w", err)
	}
	return nil
}

// ClearCache removes cached local keys and forgets the signed-in user and
// recent activity.
func (s *Session) ClearCache(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	s.currentID = ""
	s.recents = nil
	s.mu.Unlock()
	s.notify()

	if s.cfg.Local == nil {
		return nil, nil
	}
	s.recentsMu.Lock()
	defer s.recentsMu.Unlock()
	return s.cfg.Local.ClearCache(ctx)
}
