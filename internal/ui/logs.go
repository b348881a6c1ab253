package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap/zapcore"

	"github.com/five82/checklist/internal/logtail"
	"github.com/five82/checklist/internal/pagestate"
)

// logLevelFilters is the cycle order for the minimum level shown.
var logLevelFilters = []string{"", "info", "warn", "error"}

// followLogs reports whether the Logs page tails the file. It defaults to on.
func followLogs(ps pagestate.PageState) bool {
	follow, ok := ps[attrFollow].(bool)
	return !ok || follow
}

func (m Model) readLogs() tea.Cmd {
	path := m.logPath
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, LogBufferLimit)
		return logLinesMsg{lines: lines, err: err}
	}
}

func (m Model) logEntries(ps pagestate.PageState) []logtail.Entry {
	minLevel := zapcore.DebugLevel
	if name := ps.String(attrFilter, ""); name != "" {
		if lvl, err := zapcore.ParseLevel(name); err == nil {
			minLevel = lvl
		}
	}
	return logtail.Filter(logtail.ParseAll(m.logLines), minLevel, ps.String(attrSearch, ""))
}

// logWindow returns the index of the first visible entry. Following pins
// the window to the end; otherwise attrSelected is the scroll offset.
func (m Model) logWindow(ps pagestate.PageState, total int) int {
	height := m.contentHeight() - 1
	maxStart := total - height
	if maxStart < 0 {
		maxStart = 0
	}
	if followLogs(ps) {
		return maxStart
	}
	start := ps.Int(attrSelected, maxStart)
	if start > maxStart {
		return maxStart
	}
	if start < 0 {
		return 0
	}
	return start
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ps := m.view(pageLogs)
	total := len(m.logEntries(ps))
	start := m.logWindow(ps, total)

	switch {
	case key.Matches(msg, m.keys.Follow):
		follow := !followLogs(ps)
		m.set(map[string]any{attrFollow: follow, attrSelected: start})
		if follow {
			return m, m.readLogs()
		}
	case key.Matches(msg, m.keys.Up):
		m.set(map[string]any{attrFollow: false, attrSelected: start - 1})
	case key.Matches(msg, m.keys.Down):
		m.set(map[string]any{attrFollow: false, attrSelected: start + 1})
	case key.Matches(msg, m.keys.Top):
		m.set(map[string]any{attrFollow: false, attrSelected: 0})
	case key.Matches(msg, m.keys.Bottom):
		m.set(map[string]any{attrFollow: true})
		return m, m.readLogs()
	case key.Matches(msg, m.keys.Filter):
		m.set(map[string]any{attrFilter: cycleValue(logLevelFilters, ps.String(attrFilter, ""))})
	case key.Matches(msg, m.keys.Search):
		return m.startSearch()
	case key.Matches(msg, m.keys.Refresh):
		return m, m.readLogs()
	}
	return m, nil
}

func (m Model) renderLogs() string {
	styles := m.theme.Styles()
	if m.logPath == "" {
		return styles.MutedText.Render("Logging to stderr; set log_file to view logs here.")
	}

	ps := m.view(pageLogs)
	entries := m.logEntries(ps)
	start := m.logWindow(ps, len(entries))
	end := start + m.contentHeight() - 1
	if end > len(entries) {
		end = len(entries)
	}

	level := ps.String(attrFilter, "")
	summary := []string{
		truncate(m.logPath, 60),
		"level: " + ternary(level == "", "all", level+"+"),
		ternary(followLogs(ps), "following", "paused"),
	}
	if search := ps.String(attrSearch, ""); search != "" {
		summary = append(summary, "/"+search)
	}

	var b strings.Builder
	b.WriteString(styles.MutedText.Render(strings.Join(summary, "  •  ")))
	for _, e := range entries[start:end] {
		b.WriteString("\n")
		b.WriteString(m.renderLogEntry(e))
	}
	if len(entries) == 0 {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("  no log entries"))
	}
	return b.String()
}

func (m Model) renderLogEntry(e logtail.Entry) string {
	styles := m.theme.Styles()

	var levelStyle lipgloss.Style
	switch {
	case e.Level >= zapcore.ErrorLevel:
		levelStyle = styles.DangerText
	case e.Level == zapcore.WarnLevel:
		levelStyle = styles.WarningText.Bold(true)
	case e.Level == zapcore.DebugLevel:
		levelStyle = styles.InfoText
	default:
		levelStyle = styles.SuccessText
	}

	ts := "        "
	if !e.Time.IsZero() {
		ts = e.Time.Local().Format("15:04:05")
	}
	parts := []string{
		styles.FaintText.Render(ts),
		levelStyle.Render(padRight(strings.ToUpper(e.Level.String()), 5)),
	}
	if e.Logger != "" {
		parts = append(parts, styles.AccentText.Render("["+e.Logger+"]"))
	}
	parts = append(parts, styles.Text.Render(e.Message))
	if fields := e.FieldString(); fields != "" {
		parts = append(parts, styles.MutedText.Render(fields))
	}
	return truncateANSI(strings.Join(parts, " "), m.width)
}

// truncateANSI limits a styled line to width terminal cells.
func truncateANSI(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}
