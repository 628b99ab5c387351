package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/notepid/gloop/internal/boost"
	"github.com/notepid/gloop/internal/period"
	"github.com/notepid/gloop/internal/recent"
	"github.com/notepid/gloop/internal/user"
)

func TestTabCycle(t *testing.T) {
	require.Equal(t, tabDaily, tabGlobal.next())
	require.Equal(t, tabGlobal, tabChat.next())
	require.Equal(t, tabChat, tabGlobal.prev())
}

func TestBoardRows(t *testing.T) {
	rule := period.MustRule(period.DefaultTimezone, 0)
	now := time.Date(2025, 6, 15, 16, 0, 0, 0, time.UTC)
	users := []user.Record{
		{ID: "a", FirstName: "Ada", LastName: "Lovelace", TotalScore: 30, DailyScore: 1, LastDailyReset: now},
		{ID: "b", FirstName: "Bob", LastName: "Stale", TotalScore: 20, DailyScore: 9, LastDailyReset: now.Add(-48 * time.Hour)},
		{ID: "c", FirstName: "Cy", LastName: "Today", TotalScore: 10, DailyScore: 5, LastDailyReset: now},
	}

	global := boardRows(tabGlobal, users, nil, "", now, rule)
	require.Len(t, global, 3)
	require.Equal(t, "Ada Lovelace", global[0].Name)

	daily := boardRows(tabDaily, users, nil, "", now, rule)
	require.Len(t, daily, 2)
	require.Equal(t, "c", daily[0].ID)

	search := boardRows(tabSearch, users, nil, "love", now, rule)
	require.Len(t, search, 1)

	entries := []recent.Entry{{ID: "b", FirstName: "Bob", LastName: "Stale", TotalScore: 1}, {ID: "gone", FirstName: "Gone", TotalScore: 7}}
	rec := boardRows(tabRecent, users, entries, "", now, rule)
	require.Len(t, rec, 2)
	require.EqualValues(t, 20, rec[0].Total)
	require.EqualValues(t, 7, rec[1].Total)

	require.Nil(t, boardRows(tabChat, users, entries, "", now, rule))
}

func TestWindow(t *testing.T) {
	start, end := window(5, 0, 10)
	require.Equal(t, [2]int{0, 5}, [2]int{start, end})

	start, end = window(50, 3, 10)
	require.Equal(t, [2]int{0, 10}, [2]int{start, end})

	start, end = window(50, 25, 10)
	require.Equal(t, [2]int{16, 26}, [2]int{start, end})
}

func TestFormatting(t *testing.T) {
	require.Equal(t, "999", formatCount(999))
	require.Equal(t, "1,000", formatCount(1000))
	require.Equal(t, "12,345,678", formatCount(12345678))

	cfg := boost.DefaultConfig()
	require.Empty(t, boostLabel(boost.State{}, cfg))
	require.Equal(t, "10x BOOST 42s", boostLabel(boost.State{Active: true, Remaining: 42}, cfg))
}
