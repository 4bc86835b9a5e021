package view

import (
	"strings"

	"github.com/charmbracelet/x/ansi"
)

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return ansi.Truncate(s, width, "…")
}

func visibleLen(s string) int {
	return ansi.StringWidth(s)
}

// wrap word-wraps s to width, breaking long words when it has to.
func wrap(s string, width int) []string {
	if width <= 0 {
		return []string{s}
	}
	wrapped := ansi.Wrap(strings.TrimSpace(s), width, "")
	return strings.Split(wrapped, "\n")
}

func padRight(s string, width int) string {
	if gap := width - visibleLen(s); gap > 0 {
		return s + strings.Repeat(" ", gap)
	}
	return s
}
