package styles

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/exp/charmtone"
)

// Helper functions for style pointers
func boolPtr(b bool) *bool       { return &b }
func stringPtr(s string) *string { return &s }
func uintPtr(u uint) *uint       { return &u }

// Theme names a markdown palette.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeCharm Theme = "charm"
)

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	switch t := Theme(s); t {
	case ThemeDark, ThemeCharm:
		return t, nil
	}
	return "", fmt.Errorf("unknown theme %q (want %s or %s)", s, ThemeDark, ThemeCharm)
}

// GetMarkdownRenderer returns a glamour TermRenderer for gadget reports.
func GetMarkdownRenderer(theme Theme, width int) (*glamour.TermRenderer, error) {
	style := GetDarkStyle()
	if theme == ThemeCharm {
		style = GetMarkdownStyle()
	}
	return glamour.NewTermRenderer(
		glamour.WithStyles(style),
		// Code blocks are preserved by glamour
		glamour.WithWordWrap(width),
	)
}

// Summary styles the one-line run summary printed after a listing.
func Summary(s string) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(charmtone.Malibu.Hex())).
		Bold(true).
		Render(s)
}

// fg returns a primitive with a foreground color.
func fg(hex string, bold bool) ansi.StylePrimitive {
	p := ansi.StylePrimitive{Color: stringPtr(hex)}
	if bold {
		p.Bold = boolPtr(true)
	}
	return p
}

// GetMarkdownStyle returns the charmtone style for gadget reports: the
// title on a banner, anchors in pink, gadget names in green and listings
// dimmed.
func GetMarkdownStyle() ansi.StyleConfig {
	title := fg(charmtone.Zest.Hex(), true)
	title.Prefix, title.Suffix = " ", " "
	title.BackgroundColor = stringPtr(charmtone.Charple.Hex())

	anchor := fg(charmtone.Cheeky.Hex(), true)
	anchor.Prefix = "## "
	gadget := fg(charmtone.Guac.Hex(), false)
	gadget.Prefix = "### "
	heading := fg(charmtone.Malibu.Hex(), true)
	heading.BlockSuffix = "\n"

	return ansi.StyleConfig{
		Document:  ansi.StyleBlock{StylePrimitive: fg(charmtone.Smoke.Hex(), false)},
		Heading:   ansi.StyleBlock{StylePrimitive: heading},
		H1:        ansi.StyleBlock{StylePrimitive: title},
		H2:        ansi.StyleBlock{StylePrimitive: anchor},
		H3:        ansi.StyleBlock{StylePrimitive: gadget},
		Strong:    ansi.StylePrimitive{Bold: boolPtr(true)},
		Code:      ansi.StyleBlock{StylePrimitive: fg(charmtone.Zinc.Hex(), false)},
		CodeBlock: ansi.StyleCodeBlock{StyleBlock: ansi.StyleBlock{StylePrimitive: fg(charmtone.Squid.Hex(), false), Margin: uintPtr(2)}},
		Table: ansi.StyleTable{
			StyleBlock:      ansi.StyleBlock{StylePrimitive: ansi.StylePrimitive{}},
			CenterSeparator: stringPtr("┼"),
			ColumnSeparator: stringPtr("│"),
			RowSeparator:    stringPtr("─"),
		},
		Text: ansi.StylePrimitive{},
	}
}
