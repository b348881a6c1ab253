package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	want := []string{"Nightfox", "Kanagawa", "Slate"}
	if len(names) != len(want) {
		t.Fatalf("ThemeNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("ThemeNames() = %v, want %v", names, want)
		}
	}
}

func TestNextTheme(t *testing.T) {
	cases := map[string]string{
		"Nightfox": "Kanagawa",
		"Kanagawa": "Slate",
		"Slate":    "Nightfox",
		"Unknown":  "Nightfox",
	}
	for in, want := range cases {
		if got := NextTheme(in); got != want {
			t.Fatalf("NextTheme(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetTheme_FallsBackToNightfox(t *testing.T) {
	if got := GetTheme("Slate").Name; got != "Slate" {
		t.Fatalf("GetTheme(Slate).Name = %q", got)
	}
	if got := GetTheme("Dracula").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Dracula).Name = %q, want Nightfox fallback", got)
	}
}

func TestThemesCoverEveryStatus(t *testing.T) {
	statuses := []string{
		"pass", "fail", "warning", "skipped", "unknown",
		"draft", "pending_review", "approved", "rejected",
		"running", "completed", "failed", "cancelled",
	}
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, status := range statuses {
			if th.StatusColors[status] == "" {
				t.Fatalf("theme %s has no color for %q", name, status)
			}
		}
	}
}

func TestStatusStyle_NormalizesAndFallsBack(t *testing.T) {
	th := GetTheme("Nightfox")
	styles := th.Styles()

	got := styles.StatusStyle("  FAIL ").GetBackground()
	if got != lipgloss.Color(th.StatusColors["fail"]) {
		t.Fatalf("StatusStyle(FAIL) background = %v, want %v", got, th.StatusColors["fail"])
	}
	got = styles.StatusStyle("mystery").GetBackground()
	if got != lipgloss.Color(th.Muted) {
		t.Fatalf("StatusStyle(mystery) background = %v, want muted %v", got, th.Muted)
	}

	withBg := styles.WithBackground(th.Surface)
	if withBg.StatusStyle("mystery").GetBackground() != lipgloss.Color(th.Muted) {
		t.Fatalf("WithBackground dropped the muted fallback")
	}
}
