package ui

import "testing"

func TestShouldUseColor_Env(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	t.Setenv("CLICOLOR_FORCE", "1")
	if ShouldUseColor() {
		t.Error("NO_COLOR should win over CLICOLOR_FORCE")
	}

	t.Setenv("NO_COLOR", "")
	if !ShouldUseColor() {
		t.Error("CLICOLOR_FORCE=1 should force color")
	}

	t.Setenv("CLICOLOR_FORCE", "")
	t.Setenv("CLICOLOR", "0")
	if ShouldUseColor() {
		t.Error("CLICOLOR=0 should disable color")
	}
}

func TestRender(t *testing.T) {
	saved := noColor
	t.Cleanup(func() { noColor = saved })

	noColor = false
	if got, want := RenderWarn("shadowed"), "\x1b[38;5;179mshadowed\x1b[0m"; got != want {
		t.Errorf("RenderWarn = %q, want %q", got, want)
	}
	if got := RenderMuted(""); got != "" {
		t.Errorf("empty input should stay empty, got %q", got)
	}

	ForceNoColor()
	if got := RenderAccent("Items"); got != "Items" {
		t.Errorf("RenderAccent with no color = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Purple", 10, "Purple"},
		{"Double Plum Pie", 10, "Double ..."},
		{"Crème brûlée", 8, "Crème..."},
		{"abcdef", 2, "ab"},
		{"abc", 0, "abc"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
