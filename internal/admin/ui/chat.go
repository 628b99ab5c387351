package ui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/huh"

	"github.com/notepid/gloop/internal/app"
	"github.com/notepid/gloop/internal/chat"
)

type chatModel struct {
	app *app.App

	width  int
	height int

	Done bool

	state chatState
	list  list.Model
	err   error

	selected   *chat.Message
	form       *huh.Form
	deleteSave bool
}

type chatState int

const (
	chatStateList chatState = iota
	chatStateDelete
)

type chatItem struct {
	msg chat.Message
}

func (i chatItem) Title() string { return i.msg.DisplayName }
func (i chatItem) Description() string {
	return i.msg.CreatedAt.Format("01-02 15:04") + "  " + i.msg.Body
}
func (i chatItem) FilterValue() string { return i.msg.DisplayName + " " + i.msg.Body }

func newChatModel(a *app.App) *chatModel {
	m := &chatModel{app: a, state: chatStateList}
	m.reload()
	return m
}

func (m *chatModel) finished() bool { return m.Done }

func (m *chatModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *chatModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.err = nil
				m.state = chatStateList
				m.form = nil
				m.reload()
			}
		}
		return nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc":
			if m.state == chatStateList && !m.list.SettingFilter() {
				m.Done = true
				return nil
			}
			if msg.String() == "esc" && m.state == chatStateDelete {
				m.state = chatStateList
				m.form = nil
				return nil
			}
		case "r":
			if m.state == chatStateList && !m.list.SettingFilter() {
				m.reload()
				return nil
			}
		}
	}

	switch m.state {
	case chatStateList:
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "enter" {
			if it, ok := m.list.SelectedItem().(chatItem); ok {
				sel := it.msg
				m.selected = &sel
				m.startDelete()
				return nil
			}
		}
		return cmd
	case chatStateDelete:
		updated, cmd := m.form.Update(msg)
		f, ok := updated.(*huh.Form)
		if !ok {
			m.err = fmt.Errorf("internal error: unexpected form model type")
			return nil
		}
		m.form = f
		if m.form.State == huh.StateCompleted {
			if m.deleteSave && m.selected != nil {
				if err := m.app.Chat.Delete(context.Background(), m.selected.ID); err != nil {
					m.err = err
					return nil
				}
			}
			m.form = nil
			m.selected = nil
			m.state = chatStateList
			m.reload()
			return nil
		}
		return cmd
	}
	return nil
}

func (m *chatModel) startDelete() {
	m.state = chatStateDelete
	m.deleteSave = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title(m.selected.DisplayName).Description(m.selected.Body),
			huh.NewConfirm().Title("Delete this message?").Value(&m.deleteSave),
		),
	)
}

func (m *chatModel) View() string {
	if m.err != nil {
		return renderErr("Chat", m.err)
	}
	if m.state == chatStateDelete {
		return m.form.View() + "\n\n(esc to go back)"
	}
	return m.list.View() + "\n(enter to delete, r to refresh, q to go back)"
}

func (m *chatModel) reload() {
	msgs, err := m.app.Chat.Latest(context.Background(), m.app.Config.Chat.History)
	if err != nil {
		m.err = err
		return
	}

	// Newest first for moderation.
	items := make([]list.Item, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		items = append(items, chatItem{msg: msgs[i]})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = fmt.Sprintf("Global Chat (latest %d)", len(msgs))
}
