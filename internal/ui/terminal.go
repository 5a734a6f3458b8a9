package ui

import (
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

// DefaultWidth is assumed when stdout is not a terminal.
const DefaultWidth = 100

// ShouldUseColor returns true when ANSI colors should be used on stdout.
// It respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY detection.
func ShouldUseColor() bool {
	// https://no-color.org: any non-empty value disables color.
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	// CLICOLOR_FORCE=1 forces color even without a TTY.
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	// CLICOLOR=0 explicitly disables color.
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	// Default: color if stdout is a terminal.
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Width returns the column count of the stdout terminal, or DefaultWidth
// when stdout is not a terminal.
func Width() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return DefaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return DefaultWidth
	}
	return w
}

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max <= 3 {
		return string([]rune(s)[:max])
	}
	return string([]rune(s)[:max-3]) + "..."
}
