package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/checklist/internal/assessment"
	"github.com/five82/checklist/internal/checklist"
	"github.com/five82/checklist/internal/pagestate"
)

var errNoServers = errors.New("no active servers")

// Confirmable actions.
const (
	actionApprove = "approve"
	actionReject  = "reject"
	actionRun     = "run"
)

// openConfirm asks the user to confirm action on target. The request is
// remembered with the page so the dialog reopens where it was left.
func (m Model) openConfirm(action string, target int64, label string) {
	m.set(map[string]any{
		attrShowConfirm:   true,
		attrConfirmAction: action,
		attrConfirmTarget: target,
		attrConfirmLabel:  label,
	})
}

func (m Model) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ps := m.view(m.page)
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.set(map[string]any{attrShowConfirm: false})
		return m, m.confirmed(ps.String(attrConfirmAction, ""), int64(ps.Int(attrConfirmTarget, 0)))
	case key.Matches(msg, m.keys.Cancel):
		m.set(map[string]any{attrShowConfirm: false})
	}
	return m, nil
}

func (m Model) confirmed(action string, target int64) tea.Cmd {
	if m.api == nil || target <= 0 {
		return nil
	}
	switch action {
	case actionApprove:
		return m.reviewCmd(target, checklist.DecisionApprove)
	case actionReject:
		return m.reviewCmd(target, checklist.DecisionReject)
	case actionRun:
		return m.runCmd(target)
	}
	return nil
}

func (m Model) reviewCmd(id int64, decision string) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		err := api.ReviewMOP(ctx, id, decision, "")
		verb := "Approved"
		if decision == checklist.DecisionReject {
			verb = "Rejected"
		}
		if err != nil {
			return actionMsg{text: "review MOP", err: err}
		}
		return actionMsg{text: fmt.Sprintf("%s MOP #%d", verb, id)}
	}
}

// runCmd starts an assessment of MOP id on every active server.
func (m Model) runCmd(id int64) tea.Cmd {
	api := m.api
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()
		servers, err := api.ListServers(ctx)
		if err != nil {
			return actionMsg{text: "list servers", err: err}
		}
		ids := activeServerIDs(servers)
		if len(ids) == 0 {
			return actionMsg{text: "run MOP", err: errNoServers}
		}
		assessmentID, err := api.StartAssessment(ctx, checklist.AssessmentRequest{MOPID: id, ServerIDs: ids})
		if err != nil {
			return actionMsg{text: "run MOP", err: err}
		}
		return actionMsg{
			text:         fmt.Sprintf("Started assessment #%d on %d servers", assessmentID, len(ids)),
			assessmentID: assessmentID,
		}
	}
}

func activeServerIDs(servers []checklist.Server) []int64 {
	var ids []int64
	for _, s := range servers {
		switch strings.ToLower(strings.TrimSpace(s.Status)) {
		case "", "active", "online":
			ids = append(ids, s.ID)
		}
	}
	return ids
}

func (m Model) renderConfirm(ps pagestate.PageState) string {
	styles := m.theme.Styles()
	action := ps.String(attrConfirmAction, "")
	label := ps.String(attrConfirmLabel, fmt.Sprintf("#%d", ps.Int(attrConfirmTarget, 0)))

	var title string
	switch action {
	case actionApprove:
		title = "Approve MOP?"
	case actionReject:
		title = "Reject MOP?"
	default:
		title = "Run MOP on all active servers?"
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(title))
	b.WriteString("\n\n")
	b.WriteString(styles.AccentText.Render(truncate(label, 44)))
	b.WriteString("\n\n")
	b.WriteString(styles.WarningText.Render("enter/y"))
	b.WriteString(styles.MutedText.Render(" confirm   "))
	b.WriteString(styles.WarningText.Render("esc/n"))
	b.WriteString(styles.MutedText.Render(" cancel"))
	return m.renderModal(b.String(), 50)
}

// Result filter dialog (Assessments page).

func (m Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel, m.keys.Filter) || msg.Type == tea.KeyEnter {
		m.set(map[string]any{attrShowFilter: false, attrPage: 1, attrSelected: 0})
		return m, nil
	}
	selected := parseStatusFilter(m.view(m.page).String(attrFilter, ""))
	switch s := msg.String(); s {
	case "c":
		selected = nil
	default:
		if len(s) != 1 || s[0] < '1' || int(s[0]-'1') >= len(assessment.Statuses) {
			return m, nil
		}
		status := assessment.Statuses[s[0]-'1']
		if selected[status] {
			delete(selected, status)
		} else {
			if selected == nil {
				selected = make(map[assessment.Status]bool)
			}
			selected[status] = true
		}
	}
	m.set(map[string]any{attrFilter: formatStatusFilter(selected)})
	return m, nil
}

func (m Model) renderFilterModal(ps pagestate.PageState) string {
	styles := m.theme.Styles()
	selected := parseStatusFilter(ps.String(attrFilter, ""))

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Filter results by status"))
	b.WriteString("\n\n")
	for i, status := range assessment.Statuses {
		mark := "[ ]"
		if selected[status] {
			mark = "[x]"
		}
		b.WriteString(styles.WarningText.Render(fmt.Sprintf("%d ", i+1)))
		b.WriteString(styles.Text.Render(mark + " "))
		b.WriteString(m.statusText(string(status)).Render(titleCase(string(status))))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(styles.MutedText.Render("c clear   enter/esc close"))
	return m.renderModal(b.String(), 40)
}

// parseStatusFilter reads the comma-separated status list kept in page state.
func parseStatusFilter(raw string) map[assessment.Status]bool {
	var out map[assessment.Status]bool
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if out == nil {
			out = make(map[assessment.Status]bool)
		}
		out[assessment.Status(part)] = true
	}
	return out
}

// formatStatusFilter writes selected statuses in display order.
func formatStatusFilter(selected map[assessment.Status]bool) string {
	parts := make([]string, 0, len(selected))
	for _, s := range assessment.Statuses {
		if selected[s] {
			parts = append(parts, string(s))
		}
	}
	return strings.Join(parts, ",")
}

// renderModal centres content in a bordered box over the whole screen.
func (m Model) renderModal(content string, width int) string {
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(width)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(content),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
