package ui

import (
	"github.com/five82/checklist/internal/pagestate"
)

// page identifies one top-level screen.
type page int

const (
	pageDashboard page = iota
	pageMOPs
	pageAssessments
	pageHistory
	pageLogs
)

var pageOrder = []page{pageDashboard, pageMOPs, pageAssessments, pageHistory, pageLogs}

// Key returns the route-like key under which the page's state is cached.
func (p page) Key() string {
	switch p {
	case pageMOPs:
		return "/mops"
	case pageAssessments:
		return "/assessments"
	case pageHistory:
		return "/history"
	case pageLogs:
		return "/logs"
	}
	return "/dashboard"
}

// Title returns the label shown in the header tabs.
func (p page) Title() string {
	switch p {
	case pageMOPs:
		return "MOPs"
	case pageAssessments:
		return "Assessments"
	case pageHistory:
		return "History"
	case pageLogs:
		return "Logs"
	}
	return "Dashboard"
}

func pageFromKey(key string) (page, bool) {
	for _, p := range pageOrder {
		if p.Key() == key {
			return p, true
		}
	}
	return pageDashboard, false
}

func nextPage(p page, step int) page {
	n := len(pageOrder)
	return pageOrder[((int(p)+step)%n+n)%n]
}

// Attribute names remembered per page.
const (
	attrSelected      = "selected"
	attrFilter        = "filter"
	attrSort          = "sort"
	attrSortDesc      = "sortDesc"
	attrPage          = "page"
	attrSearch        = "search"
	attrFollow        = "follow"
	attrAssessment    = "assessmentId"
	attrShowHelp      = "showHelp"
	attrShowFilter    = "showFilterModal"
	attrShowConfirm   = "showConfirmModal"
	attrConfirmAction = "confirmAction"
	attrConfirmTarget = "confirmTarget"
	attrConfirmLabel  = "confirmLabel"

	// attrSearching does not match the naming heuristic, so it is
	// registered explicitly.
	attrSearching = "searching"
)

// VisibilityFlags lists the UI attributes that are dialog toggles without
// matching the naming heuristic, per page key. Pass it in
// pagestate.Options so the repair at Start already covers them.
func VisibilityFlags() map[string][]string {
	flags := make(map[string][]string, len(pageOrder))
	for _, p := range pageOrder {
		flags[p.Key()] = []string{attrSearching}
	}
	return flags
}

// RegisterFlags adds VisibilityFlags to a manager that is already running,
// so Navigate and the repair at Close treat them as dialog flags.
func RegisterFlags(pages *pagestate.Manager) {
	for key, names := range VisibilityFlags() {
		pages.RegisterVisibilityFlags(key, names...)
	}
}

// view reads the page state for p. The returned value is a copy.
func (m Model) view(p page) pagestate.PageState {
	if m.pages == nil {
		return pagestate.PageState{}
	}
	return m.pages.GetPageState(p.Key())
}

// set merges attributes into the current page's state.
func (m Model) set(attrs map[string]any) {
	m.setOn(m.page, attrs)
}

func (m Model) setOn(p page, attrs map[string]any) {
	if m.pages == nil {
		return
	}
	m.pages.SetPageState(p.Key(), attrs)
}

// overlay reports whether any dialog is open on the current page.
func (m Model) overlay() bool {
	ps := m.view(m.page)
	return ps.Bool(attrShowHelp) || ps.Bool(attrShowFilter) ||
		ps.Bool(attrShowConfirm) || ps.Bool(attrSearching)
}
