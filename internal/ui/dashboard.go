package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) handleDashboardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.snapshot.Executions
	if m.moveSelection(msg, len(items)) {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Refresh):
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
	case key.Matches(msg, m.keys.Open):
		if len(items) > 0 {
			sel := clampIndex(m.view(pageDashboard).Int(attrSelected, 0), len(items))
			return m.openAssessment(items[sel].ID)
		}
	}
	return m, nil
}

func (m Model) renderDashboard() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	if !snap.HasDashboard {
		switch {
		case snap.NeedsLogin():
			return styles.DangerText.Render("Not signed in. Run `checklist login` or set CHECKLIST_TOKEN.")
		case snap.LastError != nil:
			return styles.WarningText.Render("Waiting for the backend: " + classifyConnectionError(snap.LastError))
		}
		return styles.MutedText.Render("Loading dashboard...")
	}

	d := snap.Dashboard
	cards := []string{
		m.statCard("MOPs", fmt.Sprintf("%d", d.TotalMOPs), styles.Text),
		m.statCard("Pending review", fmt.Sprintf("%d", d.PendingReview), ternaryStyle(d.PendingReview > 0, styles.WarningText, styles.Text)),
		m.statCard("Approved", fmt.Sprintf("%d", d.ApprovedMOPs), styles.SuccessText),
		m.statCard("Servers", fmt.Sprintf("%d/%d", d.ActiveServers, d.TotalServers), styles.Text),
		m.statCard("Success rate", fmt.Sprintf("%.0f%%", d.SuccessRate), successStyle(styles, d.SuccessRate)),
	}
	if m.width >= LayoutCompactWidth {
		last := "never"
		if t := d.ParsedLastExecution(); !t.IsZero() {
			last = humanizeAgo(time.Since(t))
		}
		cards = append(cards, m.statCard("Last run", last, styles.InfoText))
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Bold(true).Render("Recent executions"))
	b.WriteString("\n")

	rows := executionRows(snap.Executions)
	selected := clampIndex(m.view(pageDashboard).Int(attrSelected, 0), len(rows))
	b.WriteString(m.renderTable(executionColumns, rows, selected, m.contentHeight()-6))
	return b.String()
}

func (m Model) statCard(label, value string, valueStyle lipgloss.Style) string {
	styles := m.theme.Styles()
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		Padding(0, 1).
		Width(18)
	return box.Render(styles.MutedText.Render(label) + "\n" + valueStyle.Bold(true).Render(value))
}

func successStyle(styles Styles, rate float64) lipgloss.Style {
	switch {
	case rate >= 90:
		return styles.SuccessText
	case rate >= 70:
		return styles.WarningText
	}
	return styles.DangerText
}

func ternaryStyle(cond bool, a, b lipgloss.Style) lipgloss.Style {
	if cond {
		return a
	}
	return b
}
