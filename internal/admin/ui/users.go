package ui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/huh"

	"github.com/notepid/gloop/internal/app"
	"github.com/notepid/gloop/internal/user"
)

type usersModel struct {
	app *app.App

	width  int
	height int

	Done bool

	state usersState

	list list.Model
	err  error

	selected *user.Record
	gloops   []user.Gloop

	form *huh.Form

	createEmail string
	createFirst string
	createLast  string
	createSave  bool

	editFirst string
	editLast  string
	editSave  bool

	grantAmount string
	grantSave   bool

	resetSave bool
}

const recentGloopsShown = 5

type usersState int

const (
	usersStateList usersState = iota
	usersStateDetail
	usersStateCreate
	usersStateEditProfile
	usersStateGrantBoosts
	usersStateResetDaily
)

type userItem struct {
	id    string
	title string
	desc  string
	kind  string
}

func (i userItem) Title() string       { return i.title }
func (i userItem) Description() string { return i.desc }
func (i userItem) FilterValue() string { return i.title }

func newUsersModel(a *app.App) *usersModel {
	m := &usersModel{app: a, state: usersStateList}
	m.reloadList()
	return m
}

func (m *usersModel) finished() bool { return m.Done }

func (m *usersModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *usersModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.err = nil
				m.state = usersStateList
				m.form = nil
				m.selected = nil
				m.reloadList()
			}
		}
		return nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			if m.state == usersStateList {
				m.Done = true
				return nil
			}
		case "esc":
			m.back()
			return nil
		}
	}

	switch m.state {
	case usersStateList:
		return m.updateList(msg)
	case usersStateDetail:
		return m.updateDetail(msg)
	case usersStateCreate, usersStateEditProfile, usersStateGrantBoosts, usersStateResetDaily:
		return m.updateForm(msg)
	default:
		return nil
	}
}

func (m *usersModel) updateList(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			it, ok := m.list.SelectedItem().(userItem)
			if !ok {
				return cmd
			}
			if it.kind == "create" {
				m.startCreate()
				return nil
			}

			u, err := m.app.Users.GetByID(context.Background(), it.id)
			if err != nil {
				m.err = err
				return nil
			}
			m.selected = u
			m.loadGloops()
			m.state = usersStateDetail
			m.list = newActionList(m.width, m.height)
			return nil
		}
	}

	return cmd
}

func (m *usersModel) updateDetail(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			it, ok := m.list.SelectedItem().(userItem)
			if !ok {
				return cmd
			}
			switch it.kind {
			case "edit_profile":
				m.startEditProfile()
			case "grant_boosts":
				m.startGrantBoosts()
			case "reset_daily":
				m.startResetDaily()
			case "back":
				m.back()
			}
			return nil
		}
	}

	return cmd
}

func (m *usersModel) updateForm(msg tea.Msg) tea.Cmd {
	if m.form == nil {
		m.err = fmt.Errorf("internal error: form not initialized")
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
	if m.form.State != huh.StateCompleted {
		return cmd
	}

	ctx := context.Background()
	switch m.state {
	case usersStateCreate:
		if m.createSave {
			if _, err := m.app.Accounts.SignUp(ctx, m.createEmail, m.createFirst, m.createLast); err != nil {
				m.err = err
				return nil
			}
		}
		m.form = nil
		m.state = usersStateList
		m.reloadList()
		return nil
	case usersStateEditProfile:
		if m.editSave && m.selected != nil {
			first, last := strings.TrimSpace(m.editFirst), strings.TrimSpace(m.editLast)
			if err := m.app.Users.Patch(ctx, m.selected.ID, user.Patch{FirstName: &first, LastName: &last}); err != nil {
				m.err = err
				return nil
			}
		}
	case usersStateGrantBoosts:
		if m.grantSave && m.selected != nil {
			n, _ := strconv.ParseInt(strings.TrimSpace(m.grantAmount), 10, 64)
			if err := m.app.Users.GrantBoosts(ctx, m.selected.ID, n); err != nil {
				m.err = err
				return nil
			}
		}
	case usersStateResetDaily:
		if m.resetSave && m.selected != nil {
			now := m.app.Now()
			if err := m.app.Users.Patch(ctx, m.selected.ID, user.Patch{DailyScore: user.Ptr[int64](0), LastDailyReset: &now}); err != nil {
				m.err = err
				return nil
			}
		}
	}
	m.refreshSelected()
	m.form = nil
	m.state = usersStateDetail
	m.list = newActionList(m.width, m.height)
	return nil
}

func (m *usersModel) View() string {
	if m.err != nil {
		return renderErr("Users", m.err)
	}

	switch m.state {
	case usersStateList:
		m.list.Title = "Users"
		return m.list.View() + "\n(q to quit, enter to select)"
	case usersStateDetail:
		if m.selected == nil {
			return "No user selected\n\n(esc to go back)"
		}
		u := m.selected
		header := fmt.Sprintf("User: %s <%s>\n", u.FullName(), u.Email)
		meta := fmt.Sprintf("Gloops: %d\nToday: %d (since %s)\nBoost credits: %d\n%s\nJoined: %s\n\n",
			u.TotalScore, u.DailyScore, m.app.Rule.Key(u.LastDailyReset), u.BoostCredits,
			describeUsage(u.Usage), u.CreatedAt.Format("2006-01-02 15:04"),
		)
		m.list.Title = "Actions"
		return header + meta + m.activityView() + m.list.View() + "\n(esc to go back)"
	default:
		return m.form.View() + "\n\n(esc to go back)"
	}
}

func (m *usersModel) activityView() string {
	if len(m.gloops) == 0 {
		return "No gloops received yet.\n\n"
	}
	var b strings.Builder
	b.WriteString("Latest gloops:\n")
	for _, g := range m.gloops {
		fmt.Fprintf(&b, "  %s  +%d\n", g.CreatedAt.Format("2006-01-02 15:04:05"), g.Amount)
	}
	b.WriteString("\n")
	return b.String()
}

func (m *usersModel) loadGloops() {
	m.gloops = nil
	if m.selected == nil {
		return
	}
	gloops, err := m.app.Users.RecentGloops(context.Background(), m.selected.ID, recentGloopsShown)
	if err != nil {
		m.err = err
		return
	}
	m.gloops = gloops
}

func describeUsage(u user.Usage) string {
	switch v := u.(type) {
	case user.Tracked:
		return fmt.Sprintf("Boosts used: %d (period of %s)", v.Used, v.LastReset.Format("2006-01-02"))
	default:
		return "Boosts used: tracked on the client (legacy record)"
	}
}

func (m *usersModel) reloadList() {
	users, err := m.app.Users.List(context.Background())
	if err != nil {
		m.err = err
		return
	}

	items := make([]list.Item, 0, len(users)+1)
	items = append(items, userItem{title: "+ Create new user", desc: "Sign someone up", kind: "create"})
	for _, u := range users {
		desc := fmt.Sprintf("%d gloops • %d today • %d boosts", u.TotalScore, u.DailyScore, u.BoostCredits)
		items = append(items, userItem{id: u.ID, title: u.FullName(), desc: desc, kind: "user"})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = "Users"
}

func newActionList(w, h int) list.Model {
	items := []list.Item{
		userItem{title: "Edit profile", desc: "First and last name", kind: "edit_profile"},
		userItem{title: "Grant boosts", desc: "Add boost credits", kind: "grant_boosts"},
		userItem{title: "Reset daily score", desc: "Zero today's gloops", kind: "reset_daily"},
		userItem{title: "Back", desc: "Return to users list", kind: "back"},
	}
	l := list.New(items, list.NewDefaultDelegate(), w, h-10-recentGloopsShown)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)
	return l
}

func (m *usersModel) startCreate() {
	m.state = usersStateCreate
	m.createEmail = ""
	m.createFirst = ""
	m.createLast = ""
	m.createSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Email").Value(&m.createEmail).Validate(user.ValidateEmail),
			huh.NewInput().Title("First name").Value(&m.createFirst).CharLimit(user.MaxNameLen).Validate(nonEmpty("first name")),
			huh.NewInput().Title("Last name").Value(&m.createLast).CharLimit(user.MaxNameLen).Validate(nonEmpty("last name")),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Create user?").Value(&m.createSave),
		),
	)
}

func (m *usersModel) startEditProfile() {
	m.state = usersStateEditProfile
	m.editFirst = m.selected.FirstName
	m.editLast = m.selected.LastName
	m.editSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("First name").Value(&m.editFirst).CharLimit(user.MaxNameLen).Validate(nonEmpty("first name")),
			huh.NewInput().Title("Last name").Value(&m.editLast).CharLimit(user.MaxNameLen).Validate(nonEmpty("last name")),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Save changes?").Value(&m.editSave),
		),
	)
}

func (m *usersModel) startGrantBoosts() {
	m.state = usersStateGrantBoosts
	m.grantAmount = "1"
	m.grantSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Boost credits to grant").Value(&m.grantAmount).Validate(validIntGreaterThan("credits", 0)),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Grant boosts?").Value(&m.grantSave),
		),
	)
}

func (m *usersModel) startResetDaily() {
	m.state = usersStateResetDaily
	m.resetSave = false
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().Title(fmt.Sprintf("Reset %s's daily score of %d?", m.selected.FullName(), m.selected.DailyScore)).Value(&m.resetSave),
		),
	)
}

func (m *usersModel) back() {
	switch m.state {
	case usersStateList:
		m.Done = true
	case usersStateDetail:
		m.state = usersStateList
		m.selected = nil
		m.gloops = nil
		m.form = nil
		m.reloadList()
	default:
		m.state = usersStateDetail
		m.form = nil
		m.list = newActionList(m.width, m.height)
	}
}

func (m *usersModel) refreshSelected() {
	if m.selected == nil {
		return
	}
	u, err := m.app.Users.GetByID(context.Background(), m.selected.ID)
	if errors.Is(err, user.ErrNotFound) {
		m.selected = nil
		return
	}
	if err == nil {
		m.selected = u
		m.loadGloops()
	}
}
