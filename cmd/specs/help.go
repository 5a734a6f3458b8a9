package main

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/ui"
)

// helpRule styles one capture group of every match of re.
type helpRule struct {
	re    *regexp.Regexp
	group int
	style func(string) string
}

// helpRules colorize Cobra's default help output, applied in order.
var helpRules = []helpRule{
	// Group headers such as "Values:" and "Flags:". Usage stays plain.
	{regexp.MustCompile(`(?m)^([A-Z][^\n]*:)[ \t]*$`), 1, ui.RenderAccent},
	// Command names: two-space indent, a word, then the description.
	{regexp.MustCompile(`(?m)^(  )(\S+)(  )`), 2, ui.RenderCommand},
	// Flag value types, e.g. "--spec string".
	{regexp.MustCompile(`(--?\S+\s+)(string|int|duration|stringArray)\b`), 2, ui.RenderMuted},
	// Quoted defaults, e.g. (default "sqlite://specs.db").
	{regexp.MustCompile(`(\(default "[^"]*"\))`), 1, ui.RenderMuted},
}

// colorizedHelpFunc returns a Cobra help function that post-processes the
// default help text with ANSI colors when the terminal supports it.
func colorizedHelpFunc() func(*cobra.Command, []string) {
	return func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if !ui.ShouldUseColor() {
			_ = cmd.Usage()
			return
		}

		var buf bytes.Buffer
		cmd.SetOut(&buf)
		_ = cmd.Usage()
		cmd.SetOut(out)
		fmt.Fprint(out, colorizeHelpOutput(buf.String()))
	}
}

// colorizeHelpOutput applies helpRules to plain help text.
func colorizeHelpOutput(s string) string {
	for _, rule := range helpRules {
		s = rule.re.ReplaceAllStringFunc(s, func(match string) string {
			loc := rule.re.FindStringSubmatchIndex(match)
			start, end := loc[2*rule.group], loc[2*rule.group+1]
			if start < 0 {
				return match
			}
			return match[:start] + rule.style(match[start:end]) + match[end:]
		})
	}
	return s
}
