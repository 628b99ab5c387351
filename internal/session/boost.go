package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/notepid/gloop/internal/boost"
	"github.com/notepid/gloop/internal/localstore"
	"github.com/notepid/gloop/internal/user"
)

var errCountdownDone = errors.New("countdown finished")

// ActivateBoost spends one of the signed-in user's boost credits and starts
// the countdown. Denials wrap boost.ErrActivationDenied and leave all state
// unchanged.
func (s *Session) ActivateBoost(ctx context.Context) (boost.State, error) {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return boost.State{}, ErrClosed
	case s.currentID == "":
		s.mu.Unlock()
		return boost.State{}, ErrNotSignedIn
	case s.boost.Active || s.activating:
		st := s.boost
		s.mu.Unlock()
		return st, boost.ErrAlreadyActive
	}
	s.activating = true
	id := s.currentID
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.activating = false
		s.mu.Unlock()
	}()

	rec, err := s.cfg.Store.GetByID(ctx, id)
	if err != nil {
		return boost.State{}, fmt.Errorf("load user %s: %w", id, err)
	}
	now := s.now()
	rule := s.cfg.Policy.Rule

	legacyUsed, err := s.legacyUsage(ctx, *rec, now)
	if err != nil {
		return boost.State{}, err
	}
	state, next, err := boost.Activate(boost.State{}, allowanceOf(*rec, legacyUsed, now, rule), now, rule, s.cfg.Boost)
	if err != nil {
		return boost.State{}, err
	}

	patch := activationPatch(*rec, next)
	if err := s.cfg.Store.Patch(ctx, id, patch); err != nil {
		return boost.State{}, fmt.Errorf("spend boost credit: %w", err)
	}
	if _, tracked := rec.Usage.(user.Tracked); !tracked && s.cfg.Local != nil {
		key := localstore.BoostUsageKey(id, string(rule.Key(now)))
		if err := s.cfg.Local.Set(ctx, key, strconv.Itoa(next.Used)); err != nil {
			s.cfg.Log.Warn("failed to store legacy boost usage", zap.String("id", id), zap.Error(err))
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return boost.State{}, ErrClosed
	}
	if local, ok := user.Find(s.users, id); ok {
		s.users = replaceRecord(s.users, patch.Apply(local))
	}
	s.boost = state
	cdCtx, stop := context.WithCancel(s.ctx)
	if s.stopCountdown != nil {
		s.stopCountdown()
	}
	s.stopCountdown = stop
	s.mu.Unlock()
	s.notify()

	s.cfg.Clock.TickerFunc(cdCtx, countdownEvery, s.tick, "session", "countdown")
	return state, nil
}

// tick advances the countdown by one second and stops the ticker at zero.
func (s *Session) tick() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errCountdownDone
	}
	s.boost = s.boost.Tick()
	active := s.boost.Active
	if !active && s.stopCountdown != nil {
		s.stopCountdown()
		s.stopCountdown = nil
	}
	s.mu.Unlock()
	s.notify()

	if !active {
		return errCountdownDone
	}
	return nil
}

// legacyUsage reads the locally tracked activation count for any record that
// is not Tracked.
func (s *Session) legacyUsage(ctx context.Context, rec user.Record, now time.Time) (int, error) {
	if _, tracked := rec.Usage.(user.Tracked); tracked || s.cfg.Local == nil {
		return 0, nil
	}
	key := localstore.BoostUsageKey(rec.ID, string(s.cfg.Policy.Rule.Key(now)))
	v, ok, err := s.cfg.Local.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("read boost usage: %w", err)
	}
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		s.cfg.Log.Warn("ignoring corrupt boost usage", zap.String("key", key), zap.String("value", v))
		return 0, nil
	}
	return n, nil
}

// RemainingActivations reports how many more boosts the signed-in user may
// start in the current period, ignoring credits.
func (s *Session) RemainingActivations(ctx context.Context) (int, error) {
	rec, ok := s.CurrentUser()
	if !ok {
		return 0, ErrNotSignedIn
	}
	now := s.now()
	legacyUsed, err := s.legacyUsage(ctx, rec, now)
	if err != nil {
		return 0, err
	}
	a := allowanceOf(rec, legacyUsed, now, s.cfg.Policy.Rule)
	return a.Remaining(now, s.cfg.Policy.Rule, s.cfg.Boost), nil
}
