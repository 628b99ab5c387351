// Package reconcile merges optimistic local leaderboard counters with a
// freshly fetched authoritative snapshot.
//
// Reconcile is pure: it never performs I/O. The caller sends the returned
// patches back to the record store.
package reconcile

import (
	"fmt"
	"time"

	"github.com/notepid/gloop/internal/period"
	"github.com/notepid/gloop/internal/user"
)

// DefaultSlack is how far the server may run ahead of a local counter before
// the local value is treated as stale. It separates "server has not caught
// up with a burst of clicks" from "local state was reset". It is a heuristic.
const DefaultSlack = 100

// Policy holds the parameters of a reconciliation pass.
type Policy struct {
	Rule  period.Rule
	Slack int64
}

// Invalid is a server record dropped from the merge.
type Invalid struct {
	Index int
	ID    string
	Err   error
}

// Result is the outcome of one reconciliation pass.
type Result struct {
	Users   []user.Record
	Patches map[string]user.Patch
	Invalid []Invalid
}

// Validate reports why a record cannot take part in a merge.
func Validate(r user.Record) error {
	switch {
	case r.ID == "":
		return fmt.Errorf("missing id")
	case r.TotalScore < 0:
		return fmt.Errorf("negative total score %d", r.TotalScore)
	case r.DailyScore < 0:
		return fmt.Errorf("negative daily score %d", r.DailyScore)
	case r.BoostCredits < 0:
		return fmt.Errorf("negative boost credits %d", r.BoostCredits)
	case r.Usage == nil:
		return fmt.Errorf("missing boost usage")
	}
	if t, ok := r.Usage.(user.Tracked); ok && t.Used < 0 {
		return fmt.Errorf("negative boosts used %d", t.Used)
	}
	return nil
}

// RollDaily zeroes the daily score when it belongs to an earlier period than
// now. It reports whether the record changed.
func RollDaily(r user.Record, now time.Time, rule period.Rule) (user.Record, bool) {
	if rule.Same(r.LastDailyReset, now) {
		return r, false
	}
	r.DailyScore = 0
	r.LastDailyReset = now
	return r, true
}

// RollUsage zeroes tracked boost usage from an earlier period. Legacy
// records are returned unchanged.
func RollUsage(r user.Record, now time.Time, rule period.Rule) (user.Record, bool) {
	t, ok := r.Usage.(user.Tracked)
	if !ok || rule.Same(t.LastReset, now) {
		return r, false
	}
	r.Usage = user.Tracked{Used: 0, LastReset: now}
	return r, true
}

// Reconcile merges local with server as of now.
func (p Policy) Reconcile(local, server []user.Record, now time.Time) Result {
	slack := p.Slack
	if slack <= 0 {
		slack = DefaultSlack
	}

	res := Result{Patches: make(map[string]user.Patch)}
	queue := func(id string, patch user.Patch) {
		res.Patches[id] = res.Patches[id].Merge(patch)
	}

	localByID := make(map[string]user.Record, len(local))
	for _, r := range local {
		localByID[r.ID] = r
	}

	seen := make(map[string]bool, len(server))
	merged := make([]user.Record, 0, len(server)+len(local))

	for i, srv := range server {
		if err := Validate(srv); err != nil {
			res.Invalid = append(res.Invalid, Invalid{Index: i, ID: srv.ID, Err: err})
			continue
		}
		if seen[srv.ID] {
			res.Invalid = append(res.Invalid, Invalid{Index: i, ID: srv.ID, Err: fmt.Errorf("duplicate id")})
			continue
		}
		seen[srv.ID] = true

		var rolled bool
		if srv, rolled = RollDaily(srv, now, p.Rule); rolled {
			queue(srv.ID, user.Patch{DailyScore: user.Ptr[int64](0), LastDailyReset: user.Ptr(now)})
		}
		if srv, rolled = RollUsage(srv, now, p.Rule); rolled {
			t := srv.Usage.(user.Tracked)
			queue(srv.ID, user.Patch{DailyBoostsUsed: user.Ptr(t.Used), LastBoostReset: user.Ptr(t.LastReset)})
		}

		loc, ok := localByID[srv.ID]
		if !ok {
			merged = append(merged, srv)
			continue
		}

		// A local daily count from an earlier period is worth nothing now.
		localDaily := loc.DailyScore
		if !p.Rule.Same(loc.LastDailyReset, now) {
			localDaily = 0
		}

		out := srv
		switch {
		case loc.TotalScore > srv.TotalScore || localDaily > srv.DailyScore:
			out.TotalScore = loc.TotalScore
			out.DailyScore = localDaily
			queue(srv.ID, user.Patch{TotalScore: user.Ptr(loc.TotalScore), DailyScore: user.Ptr(localDaily)})
		case srv.TotalScore-loc.TotalScore > slack || srv.DailyScore-localDaily > slack:
			// Server values already in out.
		default:
			out.TotalScore = loc.TotalScore
			out.DailyScore = localDaily
		}
		merged = append(merged, out)
	}

	for _, r := range local {
		if !seen[r.ID] {
			merged = append(merged, r)
		}
	}

	user.SortByTotal(merged)
	res.Users = merged
	return res
}

// Rollover returns the patches that move every record into now's period,
// keyed by id. Records already in the period get no patch.
func Rollover(users []user.Record, now time.Time, rule period.Rule) map[string]user.Patch {
	patches := make(map[string]user.Patch)
	for _, r := range users {
		var p user.Patch
		if rolled, ok := RollDaily(r, now, rule); ok {
			p = p.Merge(user.Patch{DailyScore: user.Ptr(rolled.DailyScore), LastDailyReset: user.Ptr(now)})
		}
		if rolled, ok := RollUsage(r, now, rule); ok {
			t := rolled.Usage.(user.Tracked)
			p = p.Merge(user.Patch{DailyBoostsUsed: user.Ptr(t.Used), LastBoostReset: user.Ptr(t.LastReset)})
		}
		if !p.IsEmpty() {
			patches[r.ID] = p
		}
	}
	return patches
}
