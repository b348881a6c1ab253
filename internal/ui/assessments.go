package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/five82/checklist/internal/assessment"
	"github.com/five82/checklist/internal/checklist"
	"github.com/five82/checklist/internal/pagestate"
)

// fetchAssessment loads progress and results for one assessment in
// parallel.
func (m Model) fetchAssessment(id int64) tea.Cmd {
	if m.api == nil || id <= 0 {
		return nil
	}
	api := m.api
	return func() tea.Msg {
		ctx, cancel := m.requestContext()
		defer cancel()

		var msg assessmentMsg
		msg.id = id
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			status, err := api.AssessmentStatus(gctx, id)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			msg.status = status
			return nil
		})
		g.Go(func() error {
			results, err := api.AssessmentResults(gctx, id)
			if err != nil {
				return fmt.Errorf("results: %w", err)
			}
			msg.results = results
			return nil
		})
		msg.err = g.Wait()
		return msg
	}
}

// resultView applies the page's filter, search and sort to the loaded
// results.
func resultView(results []checklist.AssessmentResult, ps pagestate.PageState) []assessment.Row {
	server, text := splitSearch(ps.String(attrSearch, ""))
	filter := assessment.Filter{
		Statuses: parseStatusFilter(ps.String(attrFilter, "")),
		Server:   server,
		Text:     text,
	}
	rows := filter.Apply(assessment.Rows(results))
	sortKey := assessment.SortKey(ps.String(attrSort, string(assessment.SortStatus)))
	return assessment.Sort(rows, sortKey, ps.Bool(attrSortDesc))
}

// splitSearch pulls "@name" terms out of a search string as a server filter.
func splitSearch(raw string) (server, text string) {
	var servers, words []string
	for _, field := range strings.Fields(raw) {
		if strings.HasPrefix(field, "@") && len(field) > 1 {
			servers = append(servers, field[1:])
			continue
		}
		words = append(words, field)
	}
	return strings.Join(servers, " "), strings.Join(words, " ")
}

// resultsPerPage is how many result rows fit under the summary lines.
func (m Model) resultsPerPage() int {
	n := m.contentHeight() - 4
	if n < 1 {
		return 1
	}
	return n
}

func (m Model) handleAssessmentsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ps := m.view(pageAssessments)
	rows := resultView(m.results.Results, ps)
	pg := assessment.Paginate(rows, ps.Int(attrPage, 1)-1, m.resultsPerPage())

	if m.moveSelection(msg, len(pg.Rows)) {
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Filter):
		m.set(map[string]any{attrShowFilter: true})
	case key.Matches(msg, m.keys.Sort):
		current := assessment.SortKey(ps.String(attrSort, string(assessment.SortStatus)))
		m.set(map[string]any{attrSort: string(assessment.NextSortKey(current)), attrSelected: 0})
	case key.Matches(msg, m.keys.SortDesc):
		m.set(map[string]any{attrSortDesc: !ps.Bool(attrSortDesc), attrSelected: 0})
	case key.Matches(msg, m.keys.Search):
		return m.startSearch()
	case key.Matches(msg, m.keys.NextPage):
		m.turnPage(1, pg.TotalPages)
	case key.Matches(msg, m.keys.PrevPage):
		m.turnPage(-1, 0)
	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadPage()
	}
	return m, nil
}

func (m Model) renderAssessments() string {
	styles := m.theme.Styles()
	ps := m.view(pageAssessments)
	id := ps.Int(attrAssessment, 0)
	if id == 0 {
		return styles.MutedText.Render("No assessment selected. Run a MOP from the MOPs page (enter) or open one from History.")
	}

	all := assessment.Rows(m.results.Results)
	rows := resultView(m.results.Results, ps)
	pg := assessment.Paginate(rows, ps.Int(attrPage, 1)-1, m.resultsPerPage())
	stats := assessment.Summarize(all)

	var b strings.Builder

	title := fmt.Sprintf("Assessment #%d", id)
	if m.results.MOPTitle != "" {
		title += "  " + m.results.MOPTitle
	}
	b.WriteString(styles.AccentText.Bold(true).Render(title))
	if m.progress.Status != "" {
		b.WriteString("  ")
		b.WriteString(styles.StatusStyle(m.progress.Status).Render(m.progress.Status))
		if !m.progress.Done() && m.progress.Total > 0 {
			b.WriteString(styles.MutedText.Render(fmt.Sprintf("  %d/%d commands", m.progress.Completed, m.progress.Total)))
		}
	}
	b.WriteString("\n")

	counts := make([]string, 0, len(assessment.Statuses)+2)
	for _, s := range assessment.Statuses {
		counts = append(counts, m.statusText(string(s)).Render(fmt.Sprintf("%s %d", titleCase(string(s)), stats.ByStatus[s])))
	}
	counts = append(counts, styles.Text.Render(fmt.Sprintf("pass rate %.0f%%", stats.PassRate())))
	counts = append(counts, styles.MutedText.Render("total "+formatDuration(stats.TotalTime)))
	b.WriteString(strings.Join(counts, "  "))
	b.WriteString("\n")

	view := []string{
		fmt.Sprintf("%d of %d rows", len(rows), len(all)),
		"sort: " + ps.String(attrSort, string(assessment.SortStatus)) + ternary(ps.Bool(attrSortDesc), " ↓", " ↑"),
	}
	if f := ps.String(attrFilter, ""); f != "" {
		view = append(view, "status: "+f)
	}
	if search := ps.String(attrSearch, ""); search != "" {
		view = append(view, fmt.Sprintf("search: %q", search))
	}
	view = append(view, fmt.Sprintf("page %d/%d", pg.Index+1, pg.TotalPages))
	b.WriteString(styles.MutedText.Render(strings.Join(view, "  •  ")))
	b.WriteString("\n")

	cols := []column{
		{title: "Server", width: 16},
		{title: "Command"},
		{title: "Status", width: 9, status: true},
		{title: "Exit", width: 4},
		{title: "Time", width: 8},
	}
	if m.width >= LayoutWideWidth {
		cols = append(cols, column{title: "Output", width: 40})
	}
	cells := make([][]string, len(pg.Rows))
	for i, r := range pg.Rows {
		exit := "-"
		if r.ExitCode != nil {
			exit = fmt.Sprintf("%d", *r.ExitCode)
		}
		command := r.Title
		if command == "" {
			command = r.Command
		}
		cells[i] = []string{r.ServerName, command, string(r.Status), exit, formatDuration(r.Duration())}
		if m.width >= LayoutWideWidth {
			out := r.Output
			if r.Error != "" {
				out = r.Error
			}
			cells[i] = append(cells[i], strings.ReplaceAll(out, "\n", " "))
		}
	}
	selected := clampIndex(ps.Int(attrSelected, 0), len(cells))
	b.WriteString(m.renderTable(cols, cells, selected, m.contentHeight()-3))
	return b.String()
}
