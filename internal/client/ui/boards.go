package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/notepid/gloop/internal/boost"
	"github.com/notepid/gloop/internal/period"
	"github.com/notepid/gloop/internal/recent"
	"github.com/notepid/gloop/internal/user"
)

type tab int

const (
	tabGlobal tab = iota
	tabDaily
	tabRecent
	tabSearch
	tabChat
	tabCount
)

var tabNames = [tabCount]string{"Gloopers", "Today", "Recent", "Search", "Chat"}

func (t tab) next() tab { return (t + 1) % tabCount }
func (t tab) prev() tab { return (t + tabCount - 1) % tabCount }

// row is one line of a leaderboard.
type row struct {
	ID    string
	Name  string
	Total int64
	Daily int64
}

func rowsOf(users []user.Record) []row {
	out := make([]row, 0, len(users))
	for _, u := range users {
		out = append(out, row{ID: u.ID, Name: u.FullName(), Total: u.TotalScore, Daily: u.DailyScore})
	}
	return out
}

// recentRows shows the live counts of recently glooped users where known,
// falling back to the stored snapshot.
func recentRows(entries []recent.Entry, users []user.Record) []row {
	out := make([]row, 0, len(entries))
	for _, e := range entries {
		r := row{ID: e.ID, Name: strings.TrimSpace(e.FirstName + " " + e.LastName), Total: e.TotalScore, Daily: e.DailyScore}
		if u, ok := user.Find(users, e.ID); ok {
			r.Total, r.Daily = u.TotalScore, u.DailyScore
		}
		out = append(out, r)
	}
	return out
}

// boardRows returns the rows for a leaderboard tab.
func boardRows(t tab, users []user.Record, entries []recent.Entry, term string, now time.Time, rule period.Rule) []row {
	switch t {
	case tabGlobal:
		return rowsOf(users)
	case tabDaily:
		return rowsOf(user.Daily(users, now, rule))
	case tabRecent:
		return recentRows(entries, users)
	case tabSearch:
		return rowsOf(user.Search(users, term))
	default:
		return nil
	}
}

// window returns the [start, end) slice of n rows that keeps cursor visible
// in height lines.
func window(n, cursor, height int) (int, int) {
	if height <= 0 || n <= height {
		return 0, n
	}
	start := cursor - height + 1
	if start < 0 {
		start = 0
	}
	return start, start + height
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func boostLabel(s boost.State, c boost.Config) string {
	if !s.Active {
		return ""
	}
	return fmt.Sprintf("%dx BOOST %ds", s.Multiplier(c), s.Remaining)
}

func formatCount(n int64) string {
	s := fmt.Sprint(n)
	if n < 0 || len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
