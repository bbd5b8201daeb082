package styles

import (
	"strings"
	"testing"
)

func TestParseTheme(t *testing.T) {
	for _, name := range []string{"dark", "charm"} {
		if _, err := ParseTheme(name); err != nil {
			t.Errorf("ParseTheme(%q): %v", name, err)
		}
	}
	if _, err := ParseTheme("light"); err == nil {
		t.Error("ParseTheme(light) succeeded")
	}
}

func TestGetMarkdownRenderer(t *testing.T) {
	for _, theme := range []Theme{ThemeDark, ThemeCharm} {
		r, err := GetMarkdownRenderer(theme, 80)
		if err != nil {
			t.Fatalf("GetMarkdownRenderer(%s): %v", theme, err)
		}
		out, err := r.Render("# Gadgets\n\n```\n00000000  0e 00  return-void\n```\n")
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if !strings.Contains(out, "return-void") || !strings.Contains(out, "Gadgets") {
			t.Errorf("%s rendering lost content: %q", theme, out)
		}
	}
}

func TestSummary(t *testing.T) {
	if out := Summary("3 gadgets"); !strings.Contains(out, "3 gadgets") {
		t.Errorf("Summary = %q", out)
	}
}
