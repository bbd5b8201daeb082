package render

import (
	"fmt"
	"strings"

	"topper/internal/analysis"
	"topper/internal/pipeline"
)

// Markdown renders a summary table followed by one section per anchor.
func Markdown(res *pipeline.Result, title string) string {
	var b strings.Builder
	base := res.EntryOffset
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "%d gadgets over %d anchors.\n\n", len(res.Gadgets), len(res.Anchors))
	if len(res.Gadgets) == 0 {
		return b.String()
	}

	b.WriteString("| Address | Anchor | Instructions | Blocks | Tags |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, g := range res.Gadgets {
		fmt.Fprintf(&b, "| `%08x` | `%08x` | %d | %s | %s |\n",
			base+g.Offset(), base+g.Anchor, g.Len(), blockCount(g), strings.Join(g.Tags, ", "))
	}

	for _, a := range res.Anchors {
		fmt.Fprintf(&b, "\n## Anchor %08x\n", base+a.Anchor)
		for _, g := range a.Gadgets {
			fmt.Fprintf(&b, "\n### %s\n\n```\n%s```\n", GadgetName(g, base), g.Sequence.Listing(base))
		}
	}
	return b.String()
}

func blockCount(g *analysis.Gadget) string {
	if g.CFG == nil {
		return "-"
	}
	return fmt.Sprint(len(g.CFG.Blocks))
}
