package ui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/notepid/gloop/internal/chat"
	"github.com/notepid/gloop/internal/localstore"
	"github.com/notepid/gloop/internal/user"
)

func (m *Model) startSignInForm() tea.Cmd {
	m.formKind = formSignIn
	m.email = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(&m.email).CharLimit(user.MaxEmailLen).Validate(user.ValidateEmail),
		).Title("Sign in"),
	)
	return m.form.Init()
}

func (m *Model) startSignUpForm() tea.Cmd {
	m.formKind = formSignUp
	m.email, m.first, m.last = "", "", ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(&m.email).CharLimit(user.MaxEmailLen).Validate(user.ValidateEmail),
			huh.NewInput().Title("First name").Value(&m.first).CharLimit(user.MaxNameLen).Validate(nonEmpty("first name")),
			huh.NewInput().Title("Last name").Value(&m.last).CharLimit(user.MaxNameLen).Validate(nonEmpty("last name")),
		).Title("Become a glooper"),
	)
	return m.form.Init()
}

func (m *Model) startChatNameForm() tea.Cmd {
	if m.sess.CurrentID() != "" {
		m.setNotice("Signed-in gloopers chat under their own name.", nil)
		return nil
	}
	m.formKind = formChatName
	m.nameIn = m.chatName
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Chat name").Value(&m.nameIn).CharLimit(chat.MaxNameLength),
		),
	)
	return m.form.Init()
}

func (m *Model) updateForm(msg tea.Msg) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		m.form = nil
		m.formKind = formNone
		return nil
	}

	updated, cmd := m.form.Update(msg)
	f, ok := updated.(*huh.Form)
	if !ok {
		m.form = nil
		m.setNotice("", fmt.Errorf("internal error: unexpected form model type"))
		return nil
	}
	m.form = f

	switch m.form.State {
	case huh.StateAborted:
		m.form = nil
		m.formKind = formNone
		return nil
	case huh.StateCompleted:
	default:
		return cmd
	}

	kind := m.formKind
	m.form = nil
	m.formKind = formNone

	switch kind {
	case formSignIn:
		email := m.email
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			rec, err := m.app.Accounts.SignIn(ctx, email)
			return signedInMsg{rec: rec, err: err}
		}
	case formSignUp:
		email, first, last := m.email, m.first, m.last
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
			defer cancel()
			rec, err := m.app.Accounts.SignUp(ctx, email, first, last)
			return signedInMsg{rec: rec, err: err}
		}
	case formChatName:
		name := chat.Clip(strings.TrimSpace(m.nameIn), chat.MaxNameLength)
		ctx := context.Background()
		var err error
		if name == "" {
			err = m.local.Delete(ctx, localstore.KeyChatName)
		} else {
			err = m.local.Set(ctx, localstore.KeyChatName, name)
		}
		m.chatName = name
		m.setNotice("", err)
	}
	return nil
}

func nonEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}
