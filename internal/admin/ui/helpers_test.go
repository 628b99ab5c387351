package ui

import (
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/notepid/gloop/internal/user"
)

func TestValidIntGreaterThan(t *testing.T) {
	v := validIntGreaterThan("credits", 0)
	require.NoError(t, v(" 3 "))
	require.EqualError(t, v("0"), "credits must be > 0")
	require.EqualError(t, v("lots"), "credits must be a number")
}

func TestNonEmpty(t *testing.T) {
	v := nonEmpty("first name")
	require.NoError(t, v("Ada"))
	require.EqualError(t, v("   "), "first name cannot be empty")
}

func TestDescribeUsage(t *testing.T) {
	at := time.Date(2025, 6, 15, 16, 0, 0, 0, time.UTC)
	require.Equal(t, "Boosts used: 2 (period of 2025-06-15)", describeUsage(user.Tracked{Used: 2, LastReset: at}))
	require.Contains(t, describeUsage(user.Legacy{}), "legacy")
}

type stubScreen struct {
	w, h int
	msgs int
	done bool
}

func (s *stubScreen) Update(msg tea.Msg) tea.Cmd {
	s.msgs++
	if km, ok := msg.(tea.KeyMsg); ok && km.Type == tea.KeyEsc {
		s.done = true
	}
	return nil
}

func (s *stubScreen) View() string     { return "stub" }
func (s *stubScreen) SetSize(w, h int) { s.w, s.h = w, h }
func (s *stubScreen) finished() bool   { return s.done }

func TestRootRoutesToScreenUntilFinished(t *testing.T) {
	stub := &stubScreen{}
	root := NewRootModel(nil).(*rootModel)
	root.current = stub

	_, _ = root.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	require.Equal(t, 80, stub.w)
	require.Equal(t, 24, stub.h)

	_, _ = root.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, 1, stub.msgs)
	require.Equal(t, "stub", root.View())

	_, _ = root.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.Nil(t, root.current)
	require.Contains(t, root.View(), "Gloop Admin")
}

func TestRenderErr(t *testing.T) {
	out := renderErr("Users", errors.New("boom"))
	require.Contains(t, out, "Users error: ")
	require.Contains(t, out, "boom")
}
