package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/notepid/gloop/internal/chat"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	tabStyle       = lipgloss.NewStyle().Padding(0, 1)
	activeTabStyle = tabStyle.Bold(true).Reverse(true)
	selectedStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	meStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	boostStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13")).Blink(true)
	dimStyle       = lipgloss.NewStyle().Faint(true)
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.tabs())
	b.WriteString("\n\n")

	if m.form != nil {
		b.WriteString(m.form.View())
		b.WriteString("\n" + dimStyle.Render("(esc to cancel)"))
		return b.String()
	}

	body := m.height - 8
	switch m.tab {
	case tabChat:
		b.WriteString(m.chatView(body - 2))
	case tabSearch:
		b.WriteString(m.search.View() + "\n\n")
		b.WriteString(m.boardView(body - 2))
	default:
		b.WriteString(m.boardView(body))
	}

	b.WriteString("\n")
	b.WriteString(m.footer())
	return b.String()
}

func (m *Model) header() string {
	title := titleStyle.Render("GLOOPERBOARD")
	me, ok := m.sess.CurrentUser()
	if !ok {
		return title + "  " + dimStyle.Render("not signed in: s to sign in, u to sign up")
	}
	info := fmt.Sprintf("%s  %s gloops  %d today  %d boosts (%d left today)",
		me.FullName(), formatCount(me.TotalScore), me.DailyScore, me.BoostCredits, m.boostsLeft)
	if label := boostLabel(m.sess.Boost(), m.sess.BoostConfig()); label != "" {
		info += "  " + boostStyle.Render(label)
	}
	return title + "  " + meStyle.Render(info)
}

func (m *Model) tabs() string {
	parts := make([]string, 0, tabCount)
	for t := tab(0); t < tabCount; t++ {
		style := tabStyle
		if t == m.tab {
			style = activeTabStyle
		}
		parts = append(parts, style.Render(tabNames[t]))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) boardView(height int) string {
	rows := m.rows()
	if len(rows) == 0 {
		switch m.tab {
		case tabRecent:
			return dimStyle.Render("Nobody glooped yet.")
		case tabSearch:
			return dimStyle.Render("No matches.")
		default:
			return dimStyle.Render("No gloopers yet.")
		}
	}

	meID := m.sess.CurrentID()
	start, end := window(len(rows), m.cursor, height)
	var b strings.Builder
	for i := start; i < end; i++ {
		r := rows[i]
		count := r.Total
		if m.tab == tabDaily {
			count = r.Daily
		}
		line := fmt.Sprintf("%4d. %-40s %12s", i+1, r.Name, formatCount(count))
		switch {
		case i == m.cursor:
			line = selectedStyle.Render("> " + line)
		case r.ID == meID:
			line = meStyle.Render("  " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m *Model) chatView(height int) string {
	var lines []string
	for _, msg := range m.messages {
		lines = append(lines, fmt.Sprintf("%s %s: %s",
			dimStyle.Render(msg.CreatedAt.Local().Format("15:04")), selectedStyle.Render(msg.DisplayName), msg.Body))
	}
	if len(lines) == 0 {
		lines = append(lines, dimStyle.Render("No messages yet. Say hi!"))
	}
	if height > 0 && len(lines) > height {
		lines = lines[len(lines)-height:]
	}

	sender := m.chatName
	if u, ok := m.sess.CurrentUser(); ok {
		sender = u.FullName()
	}
	sender = chat.SenderName(sender, "")

	return strings.Join(lines, "\n") + "\n\n" +
		dimStyle.Render("as "+sender+" ") + m.compose.View()
}

func (m *Model) footer() string {
	var help string
	switch m.tab {
	case tabChat:
		help = "tab switch • enter send • ctrl+n chat name • ctrl+b boost • ctrl+c quit"
	case tabSearch:
		help = "tab switch • ↑/↓ select • enter gloop • ctrl+b boost • ctrl+c quit"
	default:
		help = "tab switch • ↑/↓ select • enter gloop • b boost • i invite • s sign in • u sign up • r refresh • x sign out • q quit"
	}
	out := dimStyle.Render(help)
	if m.notice != "" {
		style := noticeStyle
		if m.noticeErr {
			style = errStyle
		}
		out = style.Render(m.notice) + "\n" + out
	}
	return out
}
