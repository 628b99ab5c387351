// Package recent keeps the "recently glooped" list: the last users the local
// player incremented, most recent first, one entry per user. The list is
// advisory and never feeds back into scores.
package recent

import (
	"context"

	"github.com/notepid/gloop/internal/localstore"
	"github.com/notepid/gloop/internal/user"
)

// MaxEntries is the length of the list.
const MaxEntries = 10

// Entry is a snapshot of a user at the time they were incremented.
type Entry struct {
	ID           string `json:"id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	TotalScore   int64  `json:"gloop_count"`
	DailyScore   int64  `json:"daily_gloop_count"`
	BoostCredits int64  `json:"gloop_boosts"`
}

// FromRecord snapshots a user record.
func FromRecord(r user.Record) Entry {
	return Entry{
		ID:           r.ID,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		TotalScore:   r.TotalScore,
		DailyScore:   r.DailyScore,
		BoostCredits: r.BoostCredits,
	}
}

// Push moves r to the front of list, dropping any older entry for the same
// user and trimming to MaxEntries. list is not modified.
func Push(list []Entry, r user.Record) []Entry {
	out := make([]Entry, 0, min(len(list)+1, MaxEntries))
	out = append(out, FromRecord(r))
	for _, e := range list {
		if len(out) == MaxEntries {
			break
		}
		if e.ID != r.ID {
			out = append(out, e)
		}
	}
	return out
}

// Load reads the persisted list. A missing list yields nil.
func Load(ctx context.Context, s *localstore.Store) ([]Entry, error) {
	var list []Entry
	if _, err := s.GetJSON(ctx, localstore.KeyRecents, &list); err != nil {
		return nil, err
	}
	if len(list) > MaxEntries {
		list = list[:MaxEntries]
	}
	return list, nil
}

// Save persists the list.
func Save(ctx context.Context, s *localstore.Store, list []Entry) error {
	return s.SetJSON(ctx, localstore.KeyRecents, list)
}
