package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/notepid/gloop/internal/app"
)

// screenModel is one admin screen opened from the home menu.
type screenModel interface {
	Update(tea.Msg) tea.Cmd
	View() string
	SetSize(w, h int)
	finished() bool
}

type menuItem struct {
	title string
	desc  string
	open  func(*app.App) screenModel // nil quits
}

func (m menuItem) Title() string       { return m.title }
func (m menuItem) Description() string { return m.desc }
func (m menuItem) FilterValue() string { return m.title }

var errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

type rootModel struct {
	app *app.App

	width  int
	height int

	home    list.Model
	current screenModel
}

func NewRootModel(a *app.App) tea.Model {
	items := []list.Item{
		menuItem{title: "Users", desc: "Edit gloopers, grant boosts, reset daily scores",
			open: func(a *app.App) screenModel { return newUsersModel(a) }},
		menuItem{title: "Global Chat", desc: "Browse and delete chat messages",
			open: func(a *app.App) screenModel { return newChatModel(a) }},
		menuItem{title: "Invites", desc: "Issued invite links and their uses",
			open: func(a *app.App) screenModel { return newInvitesModel(a) }},
		menuItem{title: "Settings", desc: "Effective configuration and daily reset",
			open: func(a *app.App) screenModel { return newSettingsModel(a) }},
		menuItem{title: "Quit", desc: "Exit"},
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Gloop Admin"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)

	return &rootModel{app: a, home: l}
}

func (m *rootModel) Init() tea.Cmd {
	return nil
}

func (m *rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.home.SetSize(msg.Width, msg.Height-2)
		if m.current != nil {
			m.current.SetSize(msg.Width, msg.Height)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}

	if m.current != nil {
		cmd := m.current.Update(msg)
		if m.current.finished() {
			m.current = nil
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.home, cmd = m.home.Update(msg)
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "enter" {
		it, ok := m.home.SelectedItem().(menuItem)
		if !ok {
			return m, cmd
		}
		if it.open == nil {
			return m, tea.Quit
		}
		m.current = it.open(m.app)
		m.current.SetSize(m.width, m.height)
		return m, nil
	}
	return m, cmd
}

func (m *rootModel) View() string {
	if m.current == nil {
		return m.home.View()
	}
	return m.current.View()
}

// renderErr is the shared error view of every screen.
func renderErr(screen string, err error) string {
	return errStyle.Render(screen+" error: ") + err.Error() + "\n\nPress Enter/Esc to go back."
}
