package render

import (
	"fmt"

	"github.com/zboralski/lattice"
	latticerender "github.com/zboralski/lattice/render"

	"topper/internal/analysis"
	"topper/internal/disasm"
	"topper/internal/pipeline"
)

// GadgetName names a gadget by its address, e.g. "gadget_00000400".
func GadgetName(g *analysis.Gadget, base int) string {
	return fmt.Sprintf("gadget_%08x", base+g.Offset())
}

// FuncCFG maps a gadget CFG to a lattice function CFG. Block ranges are
// instruction indices; member references appear as call sites. It returns
// nil for gadgets without a CFG.
func FuncCFG(g *analysis.Gadget, base int) *lattice.FuncCFG {
	if g.CFG == nil {
		return nil
	}
	f := &lattice.FuncCFG{Name: GadgetName(g, base)}
	for _, blk := range g.CFG.Blocks {
		lb := &lattice.BasicBlock{
			ID:    blk.ID,
			Start: blk.Start,
			End:   blk.End,
			Term:  blk.Type == analysis.BlockReturn || blk.Type == analysis.BlockThrow,
		}
		for _, e := range g.CFG.Successors(blk.ID) {
			lb.Succs = append(lb.Succs, lattice.Successor{BlockID: e.To, Cond: edgeCond(e.Kind)})
		}
		for i, in := range blk.Insts() {
			if c, ok := callee(in); ok {
				lb.Calls = append(lb.Calls, lattice.CallSite{Offset: blk.Start + i, Callee: c})
			}
		}
		for _, x := range blk.Exits {
			lb.Calls = append(lb.Calls, lattice.CallSite{Offset: blk.End - 1, Callee: fmt.Sprintf("exit %08x", base+x)})
		}
		f.Blocks = append(f.Blocks, lb)
	}
	return f
}

func edgeCond(k analysis.EdgeKind) string {
	switch k {
	case analysis.EdgeTaken:
		return "T"
	case analysis.EdgeFallthrough:
		return "F"
	case analysis.EdgeCase:
		return "case"
	}
	return ""
}

// callee returns the member an instruction invokes or links to.
func callee(in disasm.Inst) (string, bool) {
	if in.Ref == nil {
		return "", false
	}
	switch in.Ref.Kind {
	case disasm.RefMethod, disasm.RefCallSite, disasm.RefMethodHandle:
		return in.Ref.String(), true
	}
	return "", false
}

// CFGGraph collects the CFG of every gadget that has one.
func CFGGraph(res *pipeline.Result) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, g := range res.Gadgets {
		if f := FuncCFG(g, res.EntryOffset); f != nil {
			cg.Funcs = append(cg.Funcs, f)
		}
	}
	return cg
}

// CallGraph links every gadget to the members it references.
func CallGraph(res *pipeline.Result) *lattice.Graph {
	g := &lattice.Graph{}
	for _, gd := range res.Gadgets {
		name := GadgetName(gd, res.EntryOffset)
		g.Nodes = append(g.Nodes, name)
		for _, in := range gd.Sequence {
			if c, ok := callee(in); ok {
				g.Edges = append(g.Edges, lattice.Edge{Caller: name, Callee: c})
			}
		}
	}
	g.Dedup()
	return g
}

// GadgetDOT renders the CFG of a single gadget. It reports false for
// gadgets without a CFG.
func GadgetDOT(g *analysis.Gadget, base int) (string, bool) {
	f := FuncCFG(g, base)
	if f == nil {
		return "", false
	}
	return latticerender.DOTCFG(&lattice.CFGGraph{Funcs: []*lattice.FuncCFG{f}}, f.Name), true
}

// DOTCFG renders the gadget CFGs as one Graphviz document.
func DOTCFG(res *pipeline.Result, title string) string {
	return latticerender.DOTCFG(CFGGraph(res), title)
}

// DOTCallGraph renders the gadget reference graph.
func DOTCallGraph(res *pipeline.Result, title string) string {
	return latticerender.DOT(CallGraph(res), title)
}
