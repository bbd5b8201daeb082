package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

// DisasmDark is the listing palette, registered as "disasm-dark".
var DisasmDark = styles.Register(chroma.MustNewStyle("disasm-dark", chroma.StyleEntries{
	chroma.Text:       "#FFFFFF",
	chroma.Background: "bg:#1e1e1e",
	chroma.Comment:    "#4F4F4F", // encoded bytes

	chroma.GenericHeading: "bold #569CD6",
	chroma.NameLabel:      "#7F7F7F", // addresses

	chroma.Keyword:      "#FFFFFF", // mnemonics
	chroma.NameBuiltin:  "#C586C0", // unresolved reference kinds
	chroma.NameVariable: "#7C9C9D", // registers
	chroma.Name:         "#DCDCAA",
	chroma.KeywordType:  "#4EC9B0", // type descriptors

	chroma.LiteralNumberHex:     "#FF5F87",
	chroma.LiteralNumberInteger: "#FF5F87",

	chroma.Operator:    "#FFFFFF",
	chroma.Punctuation: "#FFFFFF",

	chroma.String: "#EACD53",
}))
