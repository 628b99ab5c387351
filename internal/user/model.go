package user

import (
	"strings"
	"time"
)

// Record is one row of the users table as the leaderboard sees it.
type Record struct {
	ID             string
	Email          string
	FirstName      string
	LastName       string
	TotalScore     int64
	DailyScore     int64
	LastDailyReset time.Time
	BoostCredits   int64
	Usage          Usage
	CreatedAt      time.Time
}

// FullName returns "First Last".
func (r Record) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Usage describes how a record tracks its daily boost activations.
// It is either Tracked or Legacy.
type Usage interface {
	usage()
}

// Tracked is used by records that carry daily_boosts_used/last_boost_reset.
type Tracked struct {
	Used      int
	LastReset time.Time
}

// Legacy is used by records created before boost usage columns existed.
// Their usage is tracked in the local store instead.
type Legacy struct{}

func (Tracked) usage() {}
func (Legacy) usage()  {}

// Patch is a partial update of a user record. Nil fields are left untouched.
type Patch struct {
	TotalScore      *int64
	DailyScore      *int64
	LastDailyReset  *time.Time
	BoostCredits    *int64
	DailyBoostsUsed *int
	LastBoostReset  *time.Time
	FirstName       *string
	LastName        *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.TotalScore == nil && p.DailyScore == nil && p.LastDailyReset == nil &&
		p.BoostCredits == nil && p.DailyBoostsUsed == nil && p.LastBoostReset == nil &&
		p.FirstName == nil && p.LastName == nil
}

// Merge overlays the non-nil fields of o onto p.
func (p Patch) Merge(o Patch) Patch {
	if o.TotalScore != nil {
		p.TotalScore = o.TotalScore
	}
	if o.DailyScore != nil {
		p.DailyScore = o.DailyScore
	}
	if o.LastDailyReset != nil {
		p.LastDailyReset = o.LastDailyReset
	}
	if o.BoostCredits != nil {
		p.BoostCredits = o.BoostCredits
	}
	if o.DailyBoostsUsed != nil {
		p.DailyBoostsUsed = o.DailyBoostsUsed
	}
	if o.LastBoostReset != nil {
		p.LastBoostReset = o.LastBoostReset
	}
	if o.FirstName != nil {
		p.FirstName = o.FirstName
	}
	if o.LastName != nil {
		p.LastName = o.LastName
	}
	return p
}

// Apply returns a copy of r with the patch applied.
func (p Patch) Apply(r Record) Record {
	if p.TotalScore != nil {
		r.TotalScore = *p.TotalScore
	}
	if p.DailyScore != nil {
		r.DailyScore = *p.DailyScore
	}
	if p.LastDailyReset != nil {
		r.LastDailyReset = *p.LastDailyReset
	}
	if p.BoostCredits != nil {
		r.BoostCredits = *p.BoostCredits
	}
	if p.DailyBoostsUsed != nil || p.LastBoostReset != nil {
		t, _ := r.Usage.(Tracked)
		if p.DailyBoostsUsed != nil {
			t.Used = *p.DailyBoostsUsed
		}
		if p.LastBoostReset != nil {
			t.LastReset = *p.LastBoostReset
		}
		r.Usage = t
	}
	if p.FirstName != nil {
		r.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		r.LastName = *p.LastName
	}
	return r
}

// Ptr returns a pointer to v, for building patches.
func Ptr[T any](v T) *T {
	return &v
}
