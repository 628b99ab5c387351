// Package period decides which daily reset window a timestamp belongs to.
//
// A period is one calendar day in a fixed named timezone. The cutover can be
// shifted forward (for example to 02:00) by subtracting the cutover from the
// timestamp before taking its calendar date. The process timezone is never
// consulted.
package period

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is used when no timezone is configured.
const DefaultTimezone = "America/New_York"

// Key identifies a single reset period, formatted as YYYY-MM-DD.
type Key string

// Rule maps timestamps to reset periods.
type Rule struct {
	Location *time.Location
	Cutover  time.Duration
}

// NewRule loads the named timezone and builds a rule with the given cutover.
// A zero cutover means the period boundary is midnight.
func NewRule(timezone string, cutover time.Duration) (Rule, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	if cutover < 0 || cutover >= 24*time.Hour {
		return Rule{}, fmt.Errorf("cutover %s out of range [0, 24h)", cutover)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Rule{}, fmt.Errorf("load timezone %s: %w", timezone, err)
	}
	return Rule{Location: loc, Cutover: cutover}, nil
}

// MustRule is NewRule for static configuration; it panics on error.
func MustRule(timezone string, cutover time.Duration) Rule {
	r, err := NewRule(timezone, cutover)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rule) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// Key returns the period the timestamp falls in.
func (r Rule) Key(t time.Time) Key {
	return Key(t.Add(-r.Cutover).In(r.location()).Format(time.DateOnly))
}

// Same reports whether a and b fall in the same period. A zero timestamp
// never shares a period with anything, so records that were never reset are
// always rolled over.
func (r Rule) Same(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return a.IsZero() && b.IsZero()
	}
	return r.Key(a) == r.Key(b)
}

// Start returns the instant the period containing t began.
func (r Rule) Start(t time.Time) time.Time {
	local := t.Add(-r.Cutover).In(r.location())
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, r.location())
	return midnight.Add(r.Cutover)
}

// Next returns the instant the period following the one containing t begins.
func (r Rule) Next(t time.Time) time.Time {
	local := t.Add(-r.Cutover).In(r.location())
	midnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, r.location())
	return midnight.Add(r.Cutover)
}
