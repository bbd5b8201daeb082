// Package render turns pipeline results into listings, JSON reports,
// markdown and Graphviz DOT.
package render

import (
	"fmt"
	"io"
	"strings"

	"topper/internal/analysis"
	"topper/internal/pipeline"
)

// Header is the one-line summary printed above a gadget listing.
func Header(g *analysis.Gadget, base int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "gadget %08x-%08x anchor %08x len %d", base+g.Offset(), base+g.Sequence.End(), base+g.Anchor, g.Len())
	if len(g.Tags) > 0 {
		fmt.Fprintf(&b, " [%s]", strings.Join(g.Tags, ", "))
	}
	return b.String()
}

// Text writes every gadget as a header and an offset-hex-mnemonic
// listing, separated by blank lines. Colorize, when set, is applied to
// each listing.
func Text(w io.Writer, res *pipeline.Result, colorize func(string) string) error {
	for i, g := range res.Gadgets {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		listing := g.Sequence.Listing(res.EntryOffset)
		if colorize != nil {
			listing = colorize(listing)
		}
		if _, err := fmt.Fprintf(w, "%s\n%s", Header(g, res.EntryOffset), listing); err != nil {
			return err
		}
	}
	return nil
}
