// Package boost implements the temporary score multiplier a user can spend
// boost credits on.
package boost

import (
	"errors"
	"time"

	"github.com/notepid/gloop/internal/period"
)

const (
	// DefaultDuration is how long one activation lasts.
	DefaultDuration = 60 * time.Second
	// DefaultMultiplier applies to increments while a boost is active.
	DefaultMultiplier = 10
	// DefaultDailyCap limits activations per reset period.
	DefaultDailyCap = 10
)

var (
	// ErrActivationDenied wraps every reason an activation can be refused.
	ErrActivationDenied = errors.New("boost activation denied")
	ErrNoCredits        = denied("no boost credits left")
	ErrDailyCapReached  = denied("daily boost limit reached")
	ErrAlreadyActive    = denied("a boost is already active")
)

type deniedError struct{ msg string }

func denied(msg string) error { return &deniedError{msg: msg} }

func (e *deniedError) Error() string { return e.msg }
func (e *deniedError) Unwrap() error { return ErrActivationDenied }

// Config holds the deployment-specific boost parameters.
type Config struct {
	Duration   time.Duration
	Multiplier int64
	DailyCap   int
}

// DefaultConfig returns the standard boost parameters.
func DefaultConfig() Config {
	return Config{Duration: DefaultDuration, Multiplier: DefaultMultiplier, DailyCap: DefaultDailyCap}
}

func (c Config) withDefaults() Config {
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	if c.Multiplier <= 0 {
		c.Multiplier = DefaultMultiplier
	}
	if c.DailyCap <= 0 {
		c.DailyCap = DefaultDailyCap
	}
	return c
}

// State is the process-local boost countdown.
type State struct {
	Active    bool
	Remaining int
}

// Multiplier returns the increment multiplier for the current state.
func (s State) Multiplier(c Config) int64 {
	if s.Active {
		return c.withDefaults().Multiplier
	}
	return 1
}

// Tick advances the countdown by one second.
func (s State) Tick() State {
	if !s.Active {
		return s
	}
	s.Remaining--
	if s.Remaining <= 0 {
		return State{}
	}
	return s
}

// Allowance is the persisted side of boosting: spendable credits and the
// number of activations in the period that began at PeriodStart.
type Allowance struct {
	Credits     int64
	Used        int
	PeriodStart time.Time
}

// UsedAt returns the activation count that applies at now.
func (a Allowance) UsedAt(now time.Time, rule period.Rule) int {
	if !rule.Same(a.PeriodStart, now) {
		return 0
	}
	return a.Used
}

// Remaining reports how many more activations the daily cap permits at now.
func (a Allowance) Remaining(now time.Time, rule period.Rule, c Config) int {
	left := c.withDefaults().DailyCap - a.UsedAt(now, rule)
	if left < 0 {
		return 0
	}
	return left
}

// Activate moves Idle to Active. On denial the inputs are returned unchanged
// together with an error wrapping ErrActivationDenied.
func Activate(s State, a Allowance, now time.Time, rule period.Rule, c Config) (State, Allowance, error) {
	c = c.withDefaults()
	if s.Active {
		return s, a, ErrAlreadyActive
	}
	if a.Credits <= 0 {
		return s, a, ErrNoCredits
	}
	used := a.UsedAt(now, rule)
	if used >= c.DailyCap {
		return s, a, ErrDailyCapReached
	}

	next := a
	next.Credits--
	next.Used = used + 1
	if used == 0 && !rule.Same(a.PeriodStart, now) {
		next.PeriodStart = now
	}
	return State{Active: true, Remaining: int(c.Duration / time.Second)}, next, nil
}
