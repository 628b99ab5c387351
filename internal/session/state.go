package session

import (
	"slices"
	"time"

	"github.com/notepid/gloop/internal/boost"
	"github.com/notepid/gloop/internal/period"
	"github.com/notepid/gloop/internal/reconcile"
	"github.com/notepid/gloop/internal/user"
)

// applyIncrement adds amount to both counters of the user with id, rolling
// the daily counter into now's period first. users is not modified. rolled
// reports whether the daily counter was reset on the way.
func applyIncrement(users []user.Record, id string, amount int64, now time.Time, rule period.Rule) (out []user.Record, rec user.Record, rolled, ok bool) {
	i := slices.IndexFunc(users, func(r user.Record) bool { return r.ID == id })
	if i < 0 {
		return users, user.Record{}, false, false
	}

	rec, rolled = reconcile.RollDaily(users[i], now, rule)
	rec.TotalScore += amount
	rec.DailyScore += amount

	out = slices.Clone(users)
	out[i] = rec
	user.SortByTotal(out)
	return out, rec, rolled, true
}

// replaceRecord swaps in rec for the entry with the same id. Unknown ids are
// ignored.
func replaceRecord(users []user.Record, rec user.Record) []user.Record {
	i := slices.IndexFunc(users, func(r user.Record) bool { return r.ID == rec.ID })
	if i < 0 {
		return users
	}
	out := slices.Clone(users)
	out[i] = rec
	user.SortByTotal(out)
	return out
}

// allowanceOf builds the boost allowance of a tracked record. legacyUsed is
// the locally stored activation count for now's period and only applies to
// legacy records.
func allowanceOf(r user.Record, legacyUsed int, now time.Time, rule period.Rule) boost.Allowance {
	a := boost.Allowance{Credits: r.BoostCredits}
	switch u := r.Usage.(type) {
	case user.Tracked:
		a.Used = u.Used
		a.PeriodStart = u.LastReset
	default:
		if legacyUsed > 0 {
			a.Used = legacyUsed
			a.PeriodStart = rule.Start(now)
		}
	}
	return a
}

// activationPatch is the store update for a successful activation.
func activationPatch(r user.Record, a boost.Allowance) user.Patch {
	p := user.Patch{BoostCredits: user.Ptr(a.Credits)}
	if _, ok := r.Usage.(user.Tracked); ok {
		p.DailyBoostsUsed = user.Ptr(a.Used)
		p.LastBoostReset = user.Ptr(a.PeriodStart)
	}
	return p
}

// withoutPendingScores drops the counter fields of patches for ids with an
// increment write in flight; the write itself carries those counts. A daily
// boundary fix stays as a plain reset.
func withoutPendingScores(patches map[string]user.Patch, pending map[string]int) map[string]user.Patch {
	if len(pending) == 0 {
		return patches
	}
	out := make(map[string]user.Patch, len(patches))
	for id, p := range patches {
		if pending[id] > 0 {
			p.TotalScore = nil
			p.DailyScore = nil
			if p.LastDailyReset != nil {
				p.DailyScore = user.Ptr[int64](0)
			}
		}
		if !p.IsEmpty() {
			out[id] = p
		}
	}
	return out
}
