package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// barStyle renders segments of the header and command bar on one solid
// background. lipgloss resets the background after every styled segment, so
// the gaps between segments and the spaces inside them are painted too.
type barStyle struct {
	bg   lipgloss.Color
	fill lipgloss.Style
}

func newBarStyle(color string) barStyle {
	bg := lipgloss.Color(color)
	return barStyle{bg: bg, fill: lipgloss.NewStyle().Background(bg)}
}

// text renders s with style on the bar background, word by word.
func (b barStyle) text(s string, style lipgloss.Style) string {
	if s == "" {
		return ""
	}
	style = style.Background(b.bg)
	words := strings.Split(s, " ")
	for i, w := range words {
		if w != "" {
			words[i] = style.Render(w)
		}
	}
	return strings.Join(words, b.gap(1))
}

// gap returns n painted spaces.
func (b barStyle) gap(n int) string {
	return b.fill.Render(strings.Repeat(" ", n))
}

// sep renders a separator on the bar background.
func (b barStyle) sep(s string) string {
	return b.fill.Render(s)
}
