package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/checklist/internal/checklist"
)

// historyStatusFilters is the cycle order for the History status filter.
var historyStatusFilters = []string{"", "running", "completed", "failed", "cancelled"}

func (m Model) fetchHistory() tea.Cmd {
	if m.api == nil {
		return nil
	}
	ps := m.view(pageHistory)
	api := m.api
	query := checklist.HistoryQuery{
		Status:   ps.String(attrFilter, ""),
		Page:     ps.Int(attrPage, 1),
		PageSize: ListPageSize,
	}
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		page, err := api.ListExecutions(ctx, query)
		return historyMsg{page: page, err: err}
	}
}

// openAssessment shows the results of run id on the Assessments page.
func (m Model) openAssessment(id int64) (tea.Model, tea.Cmd) {
	if id <= 0 {
		return m, nil
	}
	m.setOn(pageAssessments, map[string]any{
		attrAssessment: id,
		attrSelected:   0,
		attrPage:       1,
	})
	m.progress = checklist.AssessmentStatus{}
	m.results = checklist.AssessmentResults{}
	m.switchTo(pageAssessments)
	return m, m.loadPage()
}

func (m Model) handleHistoryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := m.history.Items
	if m.moveSelection(msg, len(items)) {
		return m, nil
	}
	ps := m.view(pageHistory)
	switch {
	case key.Matches(msg, m.keys.Filter):
		m.set(map[string]any{
			attrFilter:   cycleValue(historyStatusFilters, ps.String(attrFilter, "")),
			attrPage:     1,
			attrSelected: 0,
		})
		return m, m.fetchHistory()
	case key.Matches(msg, m.keys.NextPage):
		if m.turnPage(1, totalPages(m.history.Total, ListPageSize)) {
			return m, m.fetchHistory()
		}
	case key.Matches(msg, m.keys.PrevPage):
		if m.turnPage(-1, 0) {
			return m, m.fetchHistory()
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchHistory()
	case key.Matches(msg, m.keys.Open):
		if len(items) > 0 {
			return m.openAssessment(items[clampIndex(ps.Int(attrSelected, 0), len(items))].ID)
		}
	}
	return m, nil
}

// executionRows formats executions for the history and dashboard tables.
func executionRows(items []checklist.Execution) [][]string {
	rows := make([][]string, len(items))
	for i, e := range items {
		started := ""
		if t := e.ParsedStartedAt(); !t.IsZero() {
			started = t.Local().Format("2006-01-02 15:04")
		}
		rows[i] = []string{
			fmt.Sprintf("%d", e.ID),
			e.MOPTitle,
			e.Status,
			fmt.Sprintf("%d/%d", e.PassCount, e.PassCount+e.FailCount),
			fmt.Sprintf("%d", e.ServerCount),
			started,
			formatDuration(e.Elapsed()),
		}
	}
	return rows
}

var executionColumns = []column{
	{title: "ID", width: 6},
	{title: "MOP"},
	{title: "Status", width: 10, status: true},
	{title: "Passed", width: 7},
	{title: "Servers", width: 7},
	{title: "Started", width: 16},
	{title: "Took", width: 8},
}

func (m Model) renderHistory() string {
	styles := m.theme.Styles()
	ps := m.view(pageHistory)

	filter := ps.String(attrFilter, "")
	summary := []string{
		fmt.Sprintf("%d runs", m.history.Total),
		"status: " + ternary(filter == "", "all", titleCase(filter)),
		fmt.Sprintf("page %d/%d", ps.Int(attrPage, 1), totalPages(m.history.Total, ListPageSize)),
	}

	rows := executionRows(m.history.Items)
	var b strings.Builder
	b.WriteString(styles.MutedText.Render(strings.Join(summary, "  •  ")))
	b.WriteString("\n")
	selected := clampIndex(ps.Int(attrSelected, 0), len(rows))
	b.WriteString(m.renderTable(executionColumns, rows, selected, m.contentHeight()-1))
	return b.String()
}
