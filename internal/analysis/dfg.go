package analysis

import "topper/internal/disasm"

// DataFlowGraph is reserved for register data-flow results.
type DataFlowGraph struct{}

// DFGAnalyser builds a data-flow graph for one sequence.
type DFGAnalyser interface {
	BuildDFG(seq disasm.Stream, cfg *ControlFlowGraph) (*DataFlowGraph, error)
}

// NopDFG performs no analysis and always returns a nil graph.
type NopDFG struct{}

func (NopDFG) BuildDFG(disasm.Stream, *ControlFlowGraph) (*DataFlowGraph, error) { return nil, nil }
