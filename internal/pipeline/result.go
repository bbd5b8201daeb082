package pipeline

import (
	"topper/internal/analysis"
)

// AnchorGadgets groups the gadgets ending at one pivot.
type AnchorGadgets struct {
	Anchor  int
	Gadgets []*analysis.Gadget
}

// Result is the outcome of a run.
type Result struct {
	EntryOffset int
	// Gadgets is the output of the last gadget-producing stage that ran:
	// semantic if present, static otherwise.
	Gadgets []*analysis.Gadget
	// Anchors groups Gadgets by pivot, ordered by anchor offset.
	Anchors []AnchorGadgets
	// Skipped lists pivot hits that did not decode to the pivot.
	Skipped  []SkippedAnchor
	Registry *Registry
}

func newResult(inv *Invocation) *Result {
	r := &Result{EntryOffset: inv.Args.EntryOffset, Skipped: inv.Registry.Skipped(), Registry: inv.Registry}
	switch {
	case inv.Registry.Has(StageSemantic):
		r.Gadgets = inv.Registry.semantic.val
	case inv.Registry.Has(StageStatic):
		r.Gadgets = inv.Registry.gadgets.val
	}
	for _, g := range r.Gadgets {
		if n := len(r.Anchors); n > 0 && r.Anchors[n-1].Anchor == g.Anchor {
			r.Anchors[n-1].Gadgets = append(r.Anchors[n-1].Gadgets, g)
			continue
		}
		r.Anchors = append(r.Anchors, AnchorGadgets{Anchor: g.Anchor, Gadgets: []*analysis.Gadget{g}})
	}
	return r
}
