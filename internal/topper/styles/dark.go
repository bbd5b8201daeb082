package styles

import (
	"github.com/charmbracelet/glamour/ansi"
)

// Dark palette colors
const (
	DarkForeground = "#D4D4D4"
	DarkInlineCode = "#EACD53"
	DarkHeading    = "#569CD6"
	DarkTable      = "#9CDCFE"
	DarkRule       = "#858585"
)

// GetDarkStyle returns the default report style: blue headings, golden
// inline addresses, plain code blocks.
func GetDarkStyle() ansi.StyleConfig {
	heading := func(prefix string) ansi.StyleBlock {
		return ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Prefix: prefix,
				Color:  stringPtr(DarkHeading),
				Bold:   boolPtr(true),
			},
		}
	}
	return ansi.StyleConfig{
		Document: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr(DarkForeground),
			},
		},
		Heading: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				BlockSuffix: "\n",
				Color:       stringPtr(DarkHeading),
				Bold:        boolPtr(true),
			},
		},
		H1: heading("# "),
		H2: heading("## "),
		H3: heading("### "),
		Strong: ansi.StylePrimitive{
			Bold:  boolPtr(true),
			Color: stringPtr(DarkForeground),
		},
		HorizontalRule: ansi.StylePrimitive{
			Color:  stringPtr(DarkRule),
			Format: "\n────────────────────────────────────────\n",
		},
		Code: ansi.StyleBlock{
			StylePrimitive: ansi.StylePrimitive{
				Color: stringPtr(DarkInlineCode),
			},
		},
		CodeBlock: ansi.StyleCodeBlock{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr(DarkForeground),
				},
				Margin: uintPtr(1),
			},
		},
		Table: ansi.StyleTable{
			StyleBlock: ansi.StyleBlock{
				StylePrimitive: ansi.StylePrimitive{
					Color: stringPtr(DarkTable),
				},
			},
		},
		Text: ansi.StylePrimitive{
			Color: stringPtr(DarkForeground),
		},
	}
}
