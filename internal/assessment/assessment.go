// Package assessment turns raw command results from an assessment run into
// what the results page shows: a status per row, filtering, sorting,
// statistics and pagination. Everything here is pure and works on copies.
package assessment

import (
	"sort"
	"strings"
	"time"

	"github.com/five82/checklist/internal/checklist"
)

// Status is the normalized outcome of one command on one server.
type Status string

const (
	Pass    Status = "pass"
	Fail    Status = "fail"
	Warning Status = "warning"
	Skipped Status = "skipped"
	Unknown Status = "unknown"
)

// Statuses lists every status in display order.
var Statuses = []Status{Pass, Fail, Warning, Skipped, Unknown}

// Row is a result with its classified status.
type Row struct {
	checklist.AssessmentResult
	Status Status
}

// Classify decides the status of a result. An explicit status from the
// backend wins; then a non-zero exit code fails; then the output is checked
// for the expected text.
func Classify(r checklist.AssessmentResult) Status {
	switch strings.ToLower(strings.TrimSpace(r.Status)) {
	case "passed", "pass", "ok", "success":
		return Pass
	case "failed", "fail", "error":
		return Fail
	case "warning", "warn":
		return Warning
	case "skipped", "skip":
		return Skipped
	}

	if r.ExitCode != nil && *r.ExitCode != 0 {
		return Fail
	}

	expected := strings.ToLower(strings.TrimSpace(r.ExpectedOutput))
	if expected != "" {
		if strings.Contains(strings.ToLower(r.Output), expected) {
			return Pass
		}
		return Fail
	}
	if r.ExitCode != nil {
		return Pass
	}
	return Unknown
}

// Rows classifies every result.
func Rows(results []checklist.AssessmentResult) []Row {
	rows := make([]Row, len(results))
	for i, r := range results {
		rows[i] = Row{AssessmentResult: r, Status: Classify(r)}
	}
	return rows
}

// Filter selects rows. Zero values match everything.
type Filter struct {
	Statuses map[Status]bool
	Server   string
	Text     string
}

// Active reports whether the filter narrows anything.
func (f Filter) Active() bool {
	return len(f.Statuses) > 0 || strings.TrimSpace(f.Server) != "" || strings.TrimSpace(f.Text) != ""
}

// Match reports whether a row passes the filter.
func (f Filter) Match(r Row) bool {
	if len(f.Statuses) > 0 && !f.Statuses[r.Status] {
		return false
	}
	if server := strings.ToLower(strings.TrimSpace(f.Server)); server != "" {
		if !strings.Contains(strings.ToLower(r.ServerName), server) &&
			!strings.Contains(strings.ToLower(r.Host), server) {
			return false
		}
	}
	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" {
		haystack := strings.ToLower(r.Command + "\n" + r.Title + "\n" + r.Output + "\n" + r.Error)
		if !strings.Contains(haystack, text) {
			return false
		}
	}
	return true
}

// Apply returns the rows that match, in their original order.
func (f Filter) Apply(rows []Row) []Row {
	if !f.Active() {
		return append([]Row(nil), rows...)
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

// SortKey names a sortable column.
type SortKey string

const (
	SortServer   SortKey = "server"
	SortCommand  SortKey = "command"
	SortStatus   SortKey = "status"
	SortDuration SortKey = "duration"
)

// SortKeys lists the columns in the order the UI cycles through them.
var SortKeys = []SortKey{SortServer, SortCommand, SortStatus, SortDuration}

// NextSortKey returns the column after k, wrapping around.
func NextSortKey(k SortKey) SortKey {
	for i, key := range SortKeys {
		if key == k {
			return SortKeys[(i+1)%len(SortKeys)]
		}
	}
	return SortKeys[0]
}

// Sort returns a sorted copy. Equal rows keep their relative order. Unknown
// keys sort by server.
func Sort(rows []Row, key SortKey, descending bool) []Row {
	out := append([]Row(nil), rows...)
	less := lessFunc(key)
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

func lessFunc(key SortKey) func(a, b Row) bool {
	switch key {
	case SortCommand:
		return func(a, b Row) bool { return strings.ToLower(a.Command) < strings.ToLower(b.Command) }
	case SortStatus:
		return func(a, b Row) bool { return statusRank(a.Status) < statusRank(b.Status) }
	case SortDuration:
		return func(a, b Row) bool { return a.DurationMS < b.DurationMS }
	default:
		return func(a, b Row) bool { return strings.ToLower(a.ServerName) < strings.ToLower(b.ServerName) }
	}
}

// statusRank puts failures first so an ascending status sort surfaces them.
func statusRank(s Status) int {
	switch s {
	case Fail:
		return 0
	case Warning:
		return 1
	case Unknown:
		return 2
	case Skipped:
		return 3
	case Pass:
		return 4
	}
	return 5
}

// Stats summarizes a set of rows.
type Stats struct {
	Total     int
	ByStatus  map[Status]int
	ByServer  map[string]int
	FailedBy  map[string]int
	TotalTime time.Duration
}

// PassRate returns the percentage of executed rows that passed. Skipped rows
// are not counted as executed.
func (s Stats) PassRate() float64 {
	executed := s.Total - s.ByStatus[Skipped]
	if executed <= 0 {
		return 0
	}
	return float64(s.ByStatus[Pass]) * 100 / float64(executed)
}

// Summarize counts rows per status and per server.
func Summarize(rows []Row) Stats {
	st := Stats{
		Total:    len(rows),
		ByStatus: make(map[Status]int, len(Statuses)),
		ByServer: make(map[string]int),
		FailedBy: make(map[string]int),
	}
	for _, r := range rows {
		st.ByStatus[r.Status]++
		st.ByServer[r.ServerName]++
		if r.Status == Fail {
			st.FailedBy[r.ServerName]++
		}
		st.TotalTime += r.Duration()
	}
	return st
}

// Page is one slice of a paginated list.
type Page struct {
	Rows       []Row
	Index      int // zero-based, clamped to the valid range
	TotalPages int
}

// Paginate returns page index of rows, clamping index into range. A
// non-positive size puts everything on one page.
func Paginate(rows []Row, index, size int) Page {
	if size <= 0 {
		size = len(rows)
		if size == 0 {
			size = 1
		}
	}
	pages := (len(rows) + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if index < 0 {
		index = 0
	}
	if index >= pages {
		index = pages - 1
	}
	start := index * size
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return Page{Rows: rows[start:end], Index: index, TotalPages: pages}
}
