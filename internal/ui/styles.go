package ui

import "fmt"

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorWarn   = 179 // amber
	colorError  = 203 // red
)

var noColor bool

func render(code int, s string) string {
	if noColor || s == "" {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string { return render(colorAccent, s) }

// RenderMuted returns s in the muted (gray) color. Unset values and column
// headers use it.
func RenderMuted(s string) string { return render(colorMuted, s) }

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string { return render(colorCmd, s) }

// RenderWarn returns s in the warning (amber) color.
func RenderWarn(s string) string { return render(colorWarn, s) }

// RenderError returns s in the error (red) color.
func RenderError(s string) string { return render(colorError, s) }

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
