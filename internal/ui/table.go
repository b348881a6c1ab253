package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// column describes one table column. A zero width takes whatever space the
// fixed columns leave.
type column struct {
	title  string
	width  int
	status bool
}

// renderTable draws a header plus the rows that fit in height, scrolled so
// the selected row stays visible.
func (m Model) renderTable(cols []column, rows [][]string, selected, height int) string {
	styles := m.theme.Styles()
	widths := m.columnWidths(cols)

	var b strings.Builder
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = fit(strings.ToUpper(c.title), widths[i])
	}
	b.WriteString(styles.MutedText.Bold(true).Render(strings.Join(header, " ")))

	if len(rows) == 0 {
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("  nothing to show"))
		return b.String()
	}

	visible := height - 1
	if visible < 1 {
		visible = 1
	}
	start := 0
	if selected >= visible {
		start = selected - visible + 1
	}
	end := start + visible
	if end > len(rows) {
		end = len(rows)
	}

	for i := start; i < end; i++ {
		b.WriteString("\n")
		cells := make([]string, len(cols))
		for j, c := range cols {
			value := ""
			if j < len(rows[i]) {
				value = rows[i][j]
			}
			cell := fit(value, widths[j])
			if c.status && i != selected {
				cell = m.statusText(value).Render(cell)
			}
			cells[j] = cell
		}
		line := strings.Join(cells, " ")
		if i == selected {
			line = styles.Selected.Render(line)
		}
		b.WriteString(line)
	}
	return b.String()
}

func (m Model) columnWidths(cols []column) []int {
	widths := make([]int, len(cols))
	fixed, flex := len(cols)-1, 0
	for i, c := range cols {
		widths[i] = c.width
		if c.width == 0 {
			flex++
		}
		fixed += c.width
	}
	if flex == 0 {
		return widths
	}
	share := (m.width - fixed) / flex
	if share < 10 {
		share = 10
	}
	for i := range widths {
		if widths[i] == 0 {
			widths[i] = share
		}
	}
	return widths
}

// statusText colours a status value without a badge background.
func (m Model) statusText(status string) lipgloss.Style {
	color := m.theme.StatusColors[strings.ToLower(strings.TrimSpace(status))]
	if color == "" {
		color = m.theme.Muted
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// clampIndex keeps i inside [0, n).
func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
