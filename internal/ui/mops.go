package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/checklist/internal/checklist"
)

// mopStatusFilters is the cycle order for the MOPs status filter.
var mopStatusFilters = []string{"", "pending_review", "approved", "draft", "rejected"}

func (m Model) mopQuery() checklist.MOPQuery {
	ps := m.view(pageMOPs)
	return checklist.MOPQuery{
		Status:   ps.String(attrFilter, ""),
		Search:   ps.String(attrSearch, ""),
		Page:     ps.Int(attrPage, 1),
		PageSize: ListPageSize,
	}
}

func (m Model) fetchMOPs() tea.Cmd {
	if m.api == nil {
		return nil
	}
	api, query := m.api, m.mopQuery()
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		list, err := api.ListMOPs(ctx, query)
		return mopsMsg{list: list, err: err}
	}
}

func (m Model) selectedMOP() (checklist.MOP, bool) {
	items := m.mops.Items
	if len(items) == 0 {
		return checklist.MOP{}, false
	}
	return items[clampIndex(m.view(pageMOPs).Int(attrSelected, 0), len(items))], true
}

func totalPages(total, size int) int {
	if size <= 0 || total <= 0 {
		return 1
	}
	return (total + size - 1) / size
}

func (m Model) handleMOPsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.moveSelection(msg, len(m.mops.Items)) {
		return m, nil
	}
	ps := m.view(pageMOPs)
	switch {
	case key.Matches(msg, m.keys.Filter):
		m.set(map[string]any{
			attrFilter:   cycleValue(mopStatusFilters, ps.String(attrFilter, "")),
			attrPage:     1,
			attrSelected: 0,
		})
		return m, m.fetchMOPs()
	case key.Matches(msg, m.keys.Search):
		return m.startSearch()
	case key.Matches(msg, m.keys.NextPage):
		if m.turnPage(1, totalPages(m.mops.Total, ListPageSize)) {
			return m, m.fetchMOPs()
		}
	case key.Matches(msg, m.keys.PrevPage):
		if m.turnPage(-1, 0) {
			return m, m.fetchMOPs()
		}
	case key.Matches(msg, m.keys.Refresh):
		return m, m.fetchMOPs()
	case key.Matches(msg, m.keys.Open):
		if mop, ok := m.selectedMOP(); ok {
			m.openConfirm(actionRun, mop.ID, mop.Title)
		}
	case key.Matches(msg, m.keys.Approve):
		if mop, ok := m.selectedMOP(); ok && mop.NeedsReview() {
			m.openConfirm(actionApprove, mop.ID, mop.Title)
		}
	case key.Matches(msg, m.keys.Reject):
		if mop, ok := m.selectedMOP(); ok && mop.NeedsReview() {
			m.openConfirm(actionReject, mop.ID, mop.Title)
		}
	}
	return m, nil
}

func (m Model) renderMOPs() string {
	styles := m.theme.Styles()
	ps := m.view(pageMOPs)

	filter := ps.String(attrFilter, "")
	summary := []string{
		fmt.Sprintf("%d MOPs", m.mops.Total),
		"status: " + ternary(filter == "", "all", titleCase(filter)),
	}
	if search := ps.String(attrSearch, ""); search != "" {
		summary = append(summary, fmt.Sprintf("search: %q", search))
	}
	summary = append(summary, fmt.Sprintf("page %d/%d", ps.Int(attrPage, 1), totalPages(m.mops.Total, ListPageSize)))

	cols := []column{
		{title: "ID", width: 6},
		{title: "Title"},
		{title: "Category", width: 14},
		{title: "Status", width: 15, status: true},
		{title: "Steps", width: 5},
		{title: "Author", width: 12},
	}
	if m.width >= LayoutWideWidth {
		cols = append(cols, column{title: "Updated", width: 16})
	}

	rows := make([][]string, len(m.mops.Items))
	for i, mop := range m.mops.Items {
		rows[i] = []string{
			fmt.Sprintf("%d", mop.ID),
			mop.Title,
			mop.Category,
			mop.Status,
			fmt.Sprintf("%d", len(mop.Commands)),
			mop.Author,
		}
		if m.width >= LayoutWideWidth {
			updated := ""
			if t := mop.ParsedUpdatedAt(); !t.IsZero() {
				updated = t.Local().Format("2006-01-02 15:04")
			}
			rows[i] = append(rows[i], updated)
		}
	}

	var b strings.Builder
	b.WriteString(styles.MutedText.Render(strings.Join(summary, "  •  ")))
	b.WriteString("\n")
	selected := clampIndex(ps.Int(attrSelected, 0), len(rows))
	b.WriteString(m.renderTable(cols, rows, selected, m.contentHeight()-1))
	return b.String()
}
