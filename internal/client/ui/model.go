// Package ui is the player terminal front-end. It renders session state and
// forwards key presses to the session; it holds no scoring policy itself.
package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"go.uber.org/zap"

	"github.com/notepid/gloop/internal/app"
	"github.com/notepid/gloop/internal/boost"
	"github.com/notepid/gloop/internal/chat"
	"github.com/notepid/gloop/internal/invite"
	"github.com/notepid/gloop/internal/localstore"
	"github.com/notepid/gloop/internal/moderation"
	"github.com/notepid/gloop/internal/session"
	"github.com/notepid/gloop/internal/user"
)

const opTimeout = 10 * time.Second

type formKind int

const (
	formNone formKind = iota
	formSignIn
	formSignUp
	formChatName
)

type (
	changedMsg struct{}
	chatMsg    []chat.Message
	noticeMsg  struct {
		text string
		err  error
	}
	signedInMsg struct {
		rec *user.Record
		err error
	}
	chatSentMsg struct {
		msg *chat.Message
		err error
	}
	boostsLeftMsg int
)

// Model is the root bubbletea model of the player client.
type Model struct {
	app   *app.App
	sess  *session.Session
	local *localstore.Store
	sub   *chat.Subscriber

	width  int
	height int

	tab    tab
	cursor int

	search  textinput.Model
	compose textinput.Model

	messages   []chat.Message
	chatName   string
	boostsLeft int

	form     *huh.Form
	formKind formKind
	email    string
	first    string
	last     string
	nameIn   string

	notice    string
	noticeErr bool
}

// New creates the player model. sub receives chat snapshots.
func New(a *app.App, sess *session.Session, local *localstore.Store, sub *chat.Subscriber) *Model {
	search := textinput.New()
	search.Placeholder = "Search gloopers"
	search.CharLimit = 2 * user.MaxNameLen

	compose := textinput.New()
	compose.Placeholder = "Say something"
	compose.CharLimit = chat.MaxLength

	m := &Model{
		app:     a,
		sess:    sess,
		local:   local,
		sub:     sub,
		search:  search,
		compose: compose,
	}
	if name, ok, err := local.Get(context.Background(), localstore.KeyChatName); err == nil && ok {
		m.chatName = name
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.waitForChat(), m.loadBoostsLeft())
}

func (m *Model) waitForChange() tea.Cmd {
	ch := m.sess.Changes()
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m *Model) waitForChat() tea.Cmd {
	ch := m.sub.Ch
	return func() tea.Msg {
		msgs, ok := <-ch
		if !ok {
			return nil
		}
		return chatMsg(msgs)
	}
}

func (m *Model) loadBoostsLeft() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		n, err := m.sess.RemainingActivations(ctx)
		if err != nil {
			return nil
		}
		return boostsLeftMsg(n)
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.search.Width = msg.Width - 4
		m.compose.Width = msg.Width - 4
		return m, nil
	case changedMsg:
		m.cursor = clamp(m.cursor, 0, max(len(m.rows())-1, 0))
		return m, tea.Batch(m.waitForChange(), m.loadBoostsLeft())
	case chatMsg:
		m.messages = msg
		return m, m.waitForChat()
	case boostsLeftMsg:
		m.boostsLeft = int(msg)
		return m, nil
	case noticeMsg:
		m.setNotice(msg.text, msg.err)
		return m, nil
	case signedInMsg:
		return m, m.handleSignedIn(msg)
	case chatSentMsg:
		m.handleChatSent(msg)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}

	if m.form != nil {
		return m, m.updateForm(msg)
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		return m, m.handleKey(km)
	}
	return m, nil
}

func (m *Model) handleKey(km tea.KeyMsg) tea.Cmd {
	switch km.String() {
	case "tab":
		m.switchTab(m.tab.next())
		return nil
	case "shift+tab":
		m.switchTab(m.tab.prev())
		return nil
	case "up":
		m.cursor = clamp(m.cursor-1, 0, max(len(m.rows())-1, 0))
		return nil
	case "down":
		m.cursor = clamp(m.cursor+1, 0, max(len(m.rows())-1, 0))
		return nil
	case "ctrl+b":
		return m.activateBoost()
	case "ctrl+n":
		return m.startChatNameForm()
	}

	switch m.tab {
	case tabSearch:
		if km.Type == tea.KeyEnter {
			m.gloopSelected()
			return nil
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(km)
		m.cursor = 0
		return cmd
	case tabChat:
		if km.Type == tea.KeyEnter {
			return m.sendChat()
		}
		var cmd tea.Cmd
		m.compose, cmd = m.compose.Update(km)
		return cmd
	}

	switch km.String() {
	case "q", "esc":
		return tea.Quit
	case "enter", " ", "g":
		m.gloopSelected()
	case "k":
		m.cursor = clamp(m.cursor-1, 0, max(len(m.rows())-1, 0))
	case "j":
		m.cursor = clamp(m.cursor+1, 0, max(len(m.rows())-1, 0))
	case "b":
		return m.activateBoost()
	case "i":
		return m.createInvite()
	case "s":
		return m.startSignInForm()
	case "u":
		return m.startSignUpForm()
	case "r":
		return m.refresh()
	case "x":
		return m.clearCache()
	}
	return nil
}

func (m *Model) switchTab(t tab) {
	m.tab = t
	m.cursor = 0
	m.search.Blur()
	m.compose.Blur()
	switch t {
	case tabSearch:
		m.search.Focus()
	case tabChat:
		m.compose.Focus()
	}
}

func (m *Model) rows() []row {
	return boardRows(m.tab, m.sess.Users(), m.sess.Recents(), m.search.Value(), m.app.Now(), m.app.Rule)
}

func (m *Model) setNotice(text string, err error) {
	if err != nil {
		m.notice = err.Error()
		m.noticeErr = true
		return
	}
	m.notice = text
	m.noticeErr = false
}

func (m *Model) gloopSelected() {
	rows := m.rows()
	if len(rows) == 0 {
		return
	}
	r := rows[clamp(m.cursor, 0, len(rows)-1)]
	rec, err := m.sess.Increment(r.ID)
	if err != nil {
		m.setNotice("", err)
		return
	}
	m.setNotice(fmt.Sprintf("Glooped %s! %s gloops", rec.FullName(), formatCount(rec.TotalScore)), nil)
}

func (m *Model) activateBoost() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		st, err := m.sess.ActivateBoost(ctx)
		switch {
		case errors.Is(err, session.ErrNotSignedIn):
			return noticeMsg{err: errors.New("sign in (s) to use boosts")}
		case errors.Is(err, boost.ErrNoCredits):
			return noticeMsg{err: errors.New("no boosts left: invite friends (i) to earn more")}
		case err != nil:
			return noticeMsg{err: err}
		}
		return noticeMsg{text: fmt.Sprintf("Boost active: %dx gloops for %ds!", st.Multiplier(m.sess.BoostConfig()), st.Remaining)}
	}
}

func (m *Model) createInvite() tea.Cmd {
	id := m.sess.CurrentID()
	if id == "" {
		m.setNotice("", errors.New("sign in (s) to create invite links"))
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		link, err := m.app.Invites.Create(ctx, id, m.app.Now())
		if err != nil {
			return noticeMsg{err: err}
		}
		url := invite.URL(m.app.Config.Invite.BaseURL, link.Code)
		return noticeMsg{text: "Share this link, each friend who opens it gives you a boost: " + url}
	}
}

func (m *Model) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		if err := m.sess.Poll(ctx); err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: "Refreshed."}
	}
}

func (m *Model) clearCache() tea.Cmd {
	m.chatName = ""
	m.boostsLeft = 0
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		removed, err := m.sess.ClearCache(ctx)
		if err != nil {
			return noticeMsg{err: err}
		}
		return noticeMsg{text: fmt.Sprintf("Signed out and cleared %d cached item(s).", len(removed))}
	}
}

func (m *Model) sendChat() tea.Cmd {
	body := m.compose.Value()
	signedIn := ""
	if u, ok := m.sess.CurrentUser(); ok {
		signedIn = u.FullName()
	}
	sender := chat.SenderName(signedIn, m.chatName)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
		defer cancel()
		msg, err := m.app.Posts.Post(ctx, sender, body)
		return chatSentMsg{msg: msg, err: err}
	}
}

func (m *Model) handleChatSent(msg chatSentMsg) {
	ctx := context.Background()
	if msg.err != nil {
		if errors.Is(msg.err, moderation.ErrBannedName) && m.sess.CurrentID() == "" {
			m.chatName = ""
			if err := m.local.Delete(ctx, localstore.KeyChatName); err != nil {
				m.app.Log.Warn("failed to clear chat name", zap.Error(err))
			}
		}
		m.setNotice("", msg.err)
		return
	}
	m.compose.Reset()
	m.messages = append(m.messages, *msg.msg)
	if len(m.messages) > m.app.Config.Chat.History {
		m.messages = m.messages[len(m.messages)-m.app.Config.Chat.History:]
	}
	if m.sess.CurrentID() == "" {
		m.chatName = msg.msg.DisplayName
		if err := m.local.Set(ctx, localstore.KeyChatName, m.chatName); err != nil {
			m.app.Log.Warn("failed to store chat name", zap.Error(err))
		}
	}
	m.setNotice("", nil)
}

func (m *Model) handleSignedIn(msg signedInMsg) tea.Cmd {
	if msg.err != nil {
		m.setNotice("", msg.err)
		return nil
	}
	if err := m.sess.SetCurrentUser(context.Background(), *msg.rec); err != nil {
		m.setNotice("", err)
		return nil
	}
	m.setNotice("Welcome, "+msg.rec.FullName()+"!", nil)
	return m.loadBoostsLeft()
}
