package analysis

import (
	"slices"

	"topper/internal/disasm"
)

// Candidate is one swept sequence awaiting static analysis.
type Candidate struct {
	Anchor   int
	Sequence disasm.Stream
}

// Gadget is a candidate sequence ending in the pivot, with its optional
// graphs. CFG is nil when control-flow extraction is disabled.
type Gadget struct {
	Anchor   int
	Sequence disasm.Stream
	CFG      *ControlFlowGraph
	DFG      *DataFlowGraph
	Tags     []string
}

func newGadget(c Candidate) *Gadget {
	return &Gadget{Anchor: c.Anchor, Sequence: slices.Clone(c.Sequence)}
}

// Offset returns the offset of the first instruction.
func (g *Gadget) Offset() int { return g.Sequence.Offset() }

// Size returns the byte size of the sequence.
func (g *Gadget) Size() int { return g.Sequence.Size() }

// Len returns the instruction count.
func (g *Gadget) Len() int { return len(g.Sequence) }

// Pivot returns the closing instruction.
func (g *Gadget) Pivot() disasm.Inst { return g.Sequence.Last() }

// Tag records an annotation once.
func (g *Gadget) Tag(tag string) {
	if !slices.Contains(g.Tags, tag) {
		g.Tags = append(g.Tags, tag)
	}
}

// HasTag reports whether tag was recorded.
func (g *Gadget) HasTag(tag string) bool { return slices.Contains(g.Tags, tag) }
