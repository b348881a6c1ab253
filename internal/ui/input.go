package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// handleKey routes keyboard input. Open dialogs take every key first, then
// global bindings, then the active page.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	ps := m.view(m.page)
	switch {
	case ps.Bool(attrSearching):
		return m.handleSearchKey(msg)
	case ps.Bool(attrShowHelp):
		// Any key closes help
		m.set(map[string]any{attrShowHelp: false})
		return m, nil
	case ps.Bool(attrShowConfirm):
		return m.handleConfirmKey(msg)
	case ps.Bool(attrShowFilter):
		return m.handleFilterKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.set(map[string]any{attrShowHelp: true})
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		return m, nil
	case key.Matches(msg, m.keys.Tab):
		return m.goTo(nextPage(m.page, 1))
	case key.Matches(msg, m.keys.ShiftTab):
		return m.goTo(nextPage(m.page, -1))
	case key.Matches(msg, m.keys.Escape):
		return m.goTo(pageDashboard)
	case key.Matches(msg, m.keys.Dashboard):
		return m.goTo(pageDashboard)
	case key.Matches(msg, m.keys.MOPs):
		return m.goTo(pageMOPs)
	case key.Matches(msg, m.keys.Assessments):
		return m.goTo(pageAssessments)
	case key.Matches(msg, m.keys.History):
		return m.goTo(pageHistory)
	case key.Matches(msg, m.keys.Logs):
		return m.goTo(pageLogs)
	case key.Matches(msg, m.keys.ClearState):
		if m.pages != nil {
			m.pages.ClearPageState(m.page.Key())
		}
		m.flash, m.failed = "Forgot "+m.page.Title()+" state", false
		return m, m.loadPage()
	}

	switch m.page {
	case pageMOPs:
		return m.handleMOPsKey(msg)
	case pageAssessments:
		return m.handleAssessmentsKey(msg)
	case pageHistory:
		return m.handleHistoryKey(msg)
	case pageLogs:
		return m.handleLogsKey(msg)
	default:
		return m.handleDashboardKey(msg)
	}
}

func (m Model) goTo(p page) (tea.Model, tea.Cmd) {
	if p == m.page {
		return m, nil
	}
	m.switchTo(p)
	return m, m.loadPage()
}

// moveSelection applies the shared list navigation keys. It reports
// whether msg was one of them.
func (m Model) moveSelection(msg tea.KeyMsg, count int) bool {
	stored := m.view(m.page).Int(attrSelected, 0)
	next := clampIndex(stored, count)
	switch {
	case key.Matches(msg, m.keys.Up):
		next--
	case key.Matches(msg, m.keys.Down):
		next++
	case key.Matches(msg, m.keys.Top):
		next = 0
	case key.Matches(msg, m.keys.Bottom):
		next = count - 1
	default:
		return false
	}
	next = clampIndex(next, count)
	if next != stored {
		m.set(map[string]any{attrSelected: next})
	}
	return true
}

// turnPage moves the 1-based page number by step, bounded by total pages.
// It reports whether the page changed.
func (m Model) turnPage(step, totalPages int) bool {
	current := m.view(m.page).Int(attrPage, 1)
	next := current + step
	if next < 1 || (totalPages > 0 && next > totalPages) {
		return false
	}
	m.set(map[string]any{attrPage: next, attrSelected: 0})
	return true
}

func (m Model) startSearch() (tea.Model, tea.Cmd) {
	m.search.SetValue(m.view(m.page).String(attrSearch, ""))
	m.search.CursorEnd()
	m.set(map[string]any{attrSearching: true})
	return m, m.search.Focus()
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.search.Blur()
		m.set(map[string]any{
			attrSearching: false,
			attrSearch:    strings.TrimSpace(m.search.Value()),
			attrPage:      1,
			attrSelected:  0,
		})
		return m, m.loadPage()
	case tea.KeyEsc:
		m.search.Blur()
		m.set(map[string]any{attrSearching: false})
		return m, nil
	}
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

// cycleValue returns the entry after current in values, wrapping around.
func cycleValue(values []string, current string) string {
	for i, v := range values {
		if v == current {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
