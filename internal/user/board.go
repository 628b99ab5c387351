package user

import (
	"slices"
	"strings"
	"time"

	"github.com/notepid/gloop/internal/period"
)

// MaxSearchResults caps the number of search matches.
const MaxSearchResults = 10

// SortByTotal stable-sorts records by total score, highest first.
func SortByTotal(users []Record) {
	slices.SortStableFunc(users, func(a, b Record) int {
		return compareDesc(a.TotalScore, b.TotalScore)
	})
}

// Daily returns the users whose daily score belongs to the period of now,
// ordered by daily score, highest first.
func Daily(users []Record, now time.Time, rule period.Rule) []Record {
	out := make([]Record, 0, len(users))
	for _, u := range users {
		if rule.Same(u.LastDailyReset, now) {
			out = append(out, u)
		}
	}
	slices.SortStableFunc(out, func(a, b Record) int {
		return compareDesc(a.DailyScore, b.DailyScore)
	})
	return out
}

// Search returns up to MaxSearchResults users whose full name contains term,
// ignoring case. A blank term matches nothing.
func Search(users []Record, term string) []Record {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil
	}
	var out []Record
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.FirstName+" "+u.LastName), term) {
			out = append(out, u)
			if len(out) == MaxSearchResults {
				break
			}
		}
	}
	return out
}

// Find returns the record with the given id.
func Find(users []Record, id string) (Record, bool) {
	for _, u := range users {
		if u.ID == id {
			return u, true
		}
	}
	return Record{}, false
}

func compareDesc(a, b int64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
