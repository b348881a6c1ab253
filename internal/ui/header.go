package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/checklist/internal/checklist"
)

// renderHeader renders the logo, connection state and page tabs.
func (m Model) renderHeader() string {
	// Header uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBarStyle(m.theme.Surface)
	sep := bg.gap(2)

	parts := []string{bg.text("checklist", styles.Logo)}
	parts = append(parts, m.connectionStatus(styles, bg))

	tabs := make([]string, 0, len(pageOrder))
	for i, p := range pageOrder {
		label := fmt.Sprintf("%d %s", i+1, p.Title())
		if m.width < LayoutCompactWidth {
			label = fmt.Sprintf("%d", i+1)
			if p == m.page {
				label += " " + p.Title()
			}
		}
		if p == m.page {
			tabs = append(tabs, bg.text(label, styles.AccentText.Bold(true).Underline(true)))
		} else {
			tabs = append(tabs, bg.text(label, styles.MutedText))
		}
	}
	parts = append(parts, strings.Join(tabs, bg.gap(2)))

	if ts := m.formatTimestamp(); ts != "" {
		parts = append(parts, bg.text(ts, styles.FaintText))
	}

	return lipgloss.NewStyle().
		Background(lipgloss.Color(m.theme.Surface)).
		Foreground(lipgloss.Color(m.theme.Text)).
		Width(m.width).
		Render(strings.Join(parts, sep))
}

// connectionStatus summarizes backend reachability from the shared snapshot.
func (m Model) connectionStatus(styles Styles, bg barStyle) string {
	snap := m.snapshot
	switch {
	case snap.NeedsLogin():
		return bg.text("● SIGNED OUT", styles.DangerText)
	case snap.IsOffline():
		return bg.text("● "+classifyConnectionError(snap.LastError), styles.DangerText) +
			bg.gap(1) + bg.text("Retrying...", styles.WarningText.Bold(true))
	case snap.LastError != nil:
		return bg.text("● DEGRADED", styles.WarningText.Bold(true))
	case snap.HasDashboard:
		return bg.text("● ONLINE", styles.SuccessText)
	}
	return bg.text("Connecting...", styles.WarningText.Bold(true))
}

// formatTimestamp formats the last update time with relative indicator.
func (m Model) formatTimestamp() string {
	if m.lastUpdated.IsZero() {
		return ""
	}
	since := time.Since(m.lastUpdated)
	ts := m.lastUpdated.Local().Format("15:04:05")
	if since >= time.Minute {
		ts += " (" + humanizeAgo(since) + ")"
	}
	return ts
}

// classifyConnectionError returns a short description of the connection error.
func classifyConnectionError(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *checklist.APIError
	if errors.As(err, &apiErr) {
		if errors.Is(err, checklist.ErrUnauthorized) {
			return "UNAUTHORIZED"
		}
		if apiErr.Message != "" {
			return fmt.Sprintf("HTTP %d %s", apiErr.Status, truncate(apiErr.Message, 40))
		}
		return fmt.Sprintf("HTTP %d", apiErr.Status)
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	case errors.Is(err, errNoServers):
		return "NO ACTIVE SERVERS"
	default:
		return "ERROR"
	}
}

// renderCommandBar renders the command hints for the active page.
func (m Model) renderCommandBar() string {
	// Command bar uses Surface background
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := newBarStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	ps := m.view(m.page)
	switch m.page {
	case pageMOPs:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"enter", "Run"},
			{"a/x", "Approve/Reject"},
			{"f", "Status"},
			{"/", "Search"},
			{"n/p", "Page"},
		}
	case pageAssessments:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"f", "Filter"},
			{"s", "Sort"},
			{"S", ternary(ps.Bool(attrSortDesc), "Asc", "Desc")},
			{"/", "Search"},
			{"n/p", "Page"},
		}
	case pageHistory:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"enter", "Open"},
			{"f", "Status"},
			{"n/p", "Page"},
		}
	case pageLogs:
		commands = []cmd{
			{"Space", ternary(followLogs(ps), "Pause", "Follow")},
			{"f", "Level"},
			{"/", "Search"},
			{"g/G", "Top/Tail"},
		}
	default:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"enter", "Open run"},
			{"r", "Refresh"},
		}
	}
	commands = append(commands, cmd{"Tab", "Page"}, cmd{"?", "More"})

	colon := bg.sep(":")
	segments := make([]string, 0, len(commands)+1)
	for _, c := range commands {
		segments = append(segments,
			bg.text(c.key, styles.AccentText)+colon+bg.text(c.desc, styles.MutedText))
	}

	// Add theme indicator
	segments = append(segments,
		bg.text("T", styles.AccentText)+colon+bg.text(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, bg.gap(2)))
}

// renderFooter shows the search prompt while typing, otherwise the last
// action result.
func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.view(m.page).Bool(attrSearching) {
		return m.search.View()
	}
	if m.flash == "" {
		return ""
	}
	if m.failed {
		return styles.DangerText.Render(m.flash)
	}
	return styles.SuccessText.Render(m.flash)
}
