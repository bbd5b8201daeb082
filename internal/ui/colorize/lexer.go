package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
)

// Dalvik tokenizes gadget listings: address, encoded bytes, then a smali
// style instruction.
var Dalvik = lexers.Register(chroma.MustNewLexer(
	&chroma.Config{
		Name:      "Dalvik",
		Aliases:   []string{"dalvik", "smali"},
		Filenames: []string{"*.smali"},
	},
	func() chroma.Rules {
		return chroma.Rules{
			"root": {
				{Pattern: `\n`, Type: chroma.Text},
				{Pattern: `[ \t]+`, Type: chroma.Text},
				{Pattern: `gadget\b[^\n]*`, Type: chroma.GenericHeading},
				{Pattern: `[0-9a-f]{8}(?=  )`, Type: chroma.NameLabel},
				{Pattern: `"(\\.|[^"\\])*"`, Type: chroma.String},
				{Pattern: `L[^;\s,]+;`, Type: chroma.KeywordType},
				{Pattern: `->`, Type: chroma.Operator},
				{Pattern: `-?0x[0-9a-f]+`, Type: chroma.LiteralNumberHex},
				{Pattern: `#-?[0-9]+`, Type: chroma.LiteralNumberInteger},
				{Pattern: `\b[0-9a-f]{2}\b`, Type: chroma.Comment},
				{Pattern: `\.\.`, Type: chroma.Comment},
				{Pattern: `v[0-9]+\b`, Type: chroma.NameVariable},
				{Pattern: `[a-z][a-z0-9/-]*(?=@)`, Type: chroma.NameBuiltin},
				{Pattern: `[a-z][a-z0-9/-]*`, Type: chroma.Keyword},
				{Pattern: `[A-Za-z_$<>][\w$<>]*`, Type: chroma.Name},
				{Pattern: `[{}\[\](),:@+=;]`, Type: chroma.Punctuation},
				{Pattern: `.`, Type: chroma.Text},
			},
		}
	},
))
