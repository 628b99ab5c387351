package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"

	"github.com/notepid/gloop/internal/app"
	"github.com/notepid/gloop/internal/invite"
	"github.com/notepid/gloop/internal/user"
)

type invitesModel struct {
	app *app.App

	width  int
	height int

	Done bool

	list list.Model
	err  error
}

type inviteItem struct {
	title string
	desc  string
}

func (i inviteItem) Title() string       { return i.title }
func (i inviteItem) Description() string { return i.desc }
func (i inviteItem) FilterValue() string { return i.title }

func newInvitesModel(a *app.App) *invitesModel {
	m := &invitesModel{app: a}
	m.reload()
	return m
}

func (m *invitesModel) finished() bool { return m.Done }

func (m *invitesModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *invitesModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		if km, ok := msg.(tea.KeyMsg); ok {
			switch km.String() {
			case "esc", "q", "enter":
				m.Done = true
			}
		}
		return nil
	}

	if km, ok := msg.(tea.KeyMsg); ok && !m.list.SettingFilter() {
		switch km.String() {
		case "q", "esc":
			m.Done = true
			return nil
		case "r":
			m.reload()
			return nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return cmd
}

func (m *invitesModel) View() string {
	if m.err != nil {
		return renderErr("Invites", m.err)
	}
	return m.list.View() + "\n(r to refresh, q to go back)"
}

func (m *invitesModel) reload() {
	ctx := context.Background()
	links, err := m.app.Invites.List(ctx)
	if err != nil {
		m.err = err
		return
	}
	users, err := m.app.Users.List(ctx)
	if err != nil {
		m.err = err
		return
	}

	total := 0
	items := make([]list.Item, 0, len(links))
	for _, l := range links {
		name := l.UserID
		if u, ok := user.Find(users, l.UserID); ok {
			name = u.FullName()
		}
		total += l.Uses
		items = append(items, inviteItem{
			title: fmt.Sprintf("%s (%d uses)", name, l.Uses),
			desc:  invite.URL(m.app.Config.Invite.BaseURL, l.Code) + "  " + l.CreatedAt.Format("2006-01-02"),
		})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = fmt.Sprintf("Invites (%d links, %d redemptions)", len(links), total)
}
