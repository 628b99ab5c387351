package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"go.uber.org/zap"

	"github.com/notepid/gloop/internal/app"
	"github.com/notepid/gloop/internal/reconcile"
)

type settingsModel struct {
	app *app.App

	width  int
	height int

	Done bool

	form *huh.Form
	err  error

	runReset bool
	result   string
}

func newSettingsModel(a *app.App) *settingsModel {
	m := &settingsModel{app: a}
	m.form = buildSettingsForm(m.summary(), &m.runReset)
	return m
}

func buildSettingsForm(summary string, runReset *bool) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewNote().Title("Effective configuration").Description(summary),
			huh.NewConfirm().
				Title("Roll every stale daily score into today now?").
				Description("Normally clients do this on their next poll.").
				Value(runReset),
		),
	)
}

func (m *settingsModel) summary() string {
	cfg := m.app.Config
	now := m.app.Now()
	var b strings.Builder
	fmt.Fprintf(&b, "Store: %s\n", cfg.Store.Driver)
	fmt.Fprintf(&b, "Period: %s, cutover %s (today is %s, next reset %s)\n",
		cfg.Period.Timezone, cfg.Period.Cutover, m.app.Rule.Key(now),
		m.app.Rule.Next(now).In(m.app.Rule.Location).Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Boost: %dx for %s, %d per day\n", cfg.Boost.Multiplier, cfg.Boost.Duration, cfg.Boost.DailyCap)
	fmt.Fprintf(&b, "Polling: users %s, chat %s\n", cfg.Poll.Users, cfg.Poll.Chat)
	fmt.Fprintf(&b, "Reconcile slack: %d\n", cfg.Reconcile.Slack)
	fmt.Fprintf(&b, "Invite base URL: %s", cfg.Invite.BaseURL)
	return b.String()
}

func (m *settingsModel) finished() bool { return m.Done }

func (m *settingsModel) SetSize(w, h int) {
	m.width, m.height = w, h
}

func (m *settingsModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil || m.result != "" {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.Done = true
			}
		}
		return nil
	}

	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
		m.Done = true
		return nil
	}

	var cmd tea.Cmd
	updated, cmd := m.form.Update(msg)
	f, ok := updated.(*huh.Form)
	if !ok {
		m.err = fmt.Errorf("internal error: unexpected form model type")
		return nil
	}
	m.form = f

	if m.form.State == huh.StateCompleted {
		if !m.runReset {
			m.Done = true
			return nil
		}
		n, err := m.rollover()
		if err != nil {
			m.err = err
			return nil
		}
		m.result = "Rolled " + strconv.Itoa(n) + " user(s) into " + string(m.app.Rule.Key(m.app.Now())) + "."
		return nil
	}

	return cmd
}

func (m *settingsModel) rollover() (int, error) {
	ctx := context.Background()
	users, err := m.app.Users.List(ctx)
	if err != nil {
		return 0, err
	}
	patches := reconcile.Rollover(users, m.app.Now(), m.app.Rule)
	n := 0
	for id, p := range patches {
		if err := m.app.Users.Patch(ctx, id, p); err != nil {
			m.app.Log.Warn("daily rollover failed", zap.String("id", id), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

func (m *settingsModel) View() string {
	if m.err != nil {
		return renderErr("Settings", m.err)
	}
	if m.result != "" {
		return m.result + "\n\nPress Enter/Esc to go back."
	}
	return m.form.View() + "\n\n(esc to go back)"
}

func nonEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}

func validIntGreaterThan(field string, min int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a number", field)
		}
		if v <= min {
			return fmt.Errorf("%s must be > %d", field, min)
		}
		return nil
	}
}
