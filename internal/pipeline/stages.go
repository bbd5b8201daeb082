package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"topper/internal/analysis"
	"topper/internal/disasm"
)

// Stage is one step of a pipeline run. A stage reads its dependencies from
// the registry and registers its own result exactly once.
type Stage interface {
	ID() StageID
	Run(ctx context.Context, inv *Invocation) error
}

// SeekStage finds pivot offsets.
type SeekStage struct{}

func (SeekStage) ID() StageID { return StageSeek }

func (SeekStage) Run(_ context.Context, inv *Invocation) error {
	pivots := analysis.SeekPivots(inv.Args.Buffer, inv.Pivot)
	slog.Debug("Pivots found", "pivot", inv.Pivot.String(), "count", len(pivots))
	return inv.Registry.PutPivots(pivots)
}

// SweepStage sweeps backwards from every pivot. Anchors whose bytes do not
// decode to the pivot are skipped, since the seeker never decodes, and
// recorded in the registry. This and tolerant decoding are the only
// places a decode failure does not end the run.
type SweepStage struct{}

func (SweepStage) ID() StageID { return StageSweep }

func (s SweepStage) Run(ctx context.Context, inv *Invocation) error {
	pivots, err := inv.Registry.Pivots(s.ID())
	if err != nil {
		return err
	}
	sw, err := analysis.NewSweeper(inv.Decoder, inv.Pivot, inv.Args.Config.Search.MaxInstructions)
	if err != nil {
		return err
	}
	sweeps := make([]Sweep, 0, len(pivots))
	for _, anchor := range pivots {
		if err := ctx.Err(); err != nil {
			return err
		}
		seqs, err := sw.Sweep(inv.Args.Buffer, anchor)
		if err != nil {
			var de *disasm.DecodeError
			if errors.As(err, &de) || errors.Is(err, analysis.ErrNotPivot) {
				slog.Debug("Skipping anchor", "anchor", anchor, "error", err)
				inv.Registry.skipped = append(inv.Registry.skipped, SkippedAnchor{Anchor: anchor, Err: err})
				continue
			}
			return err
		}
		sweeps = append(sweeps, Sweep{Anchor: anchor, Sequences: seqs})
	}
	return inv.Registry.PutSweeps(sweeps)
}

// StaticStage builds one gadget per swept sequence.
type StaticStage struct {
	CFG analysis.CFGAnalyser
	DFG analysis.DFGAnalyser
}

func (StaticStage) ID() StageID { return StageStatic }

func (s StaticStage) Run(ctx context.Context, inv *Invocation) error {
	sweeps, err := inv.Registry.Sweeps(s.ID())
	if err != nil {
		return err
	}
	var cands []analysis.Candidate
	for _, sw := range sweeps {
		for _, seq := range sw.Sequences {
			cands = append(cands, analysis.Candidate{Anchor: sw.Anchor, Sequence: seq})
		}
	}

	cfgAnalyser := s.CFG
	if cfgAnalyser == nil {
		cfgAnalyser = &analysis.BFSBuilder{Decoder: inv.Decoder}
	}
	dfgAnalyser := s.DFG
	if dfgAnalyser == nil {
		dfgAnalyser = analysis.NopDFG{}
	}
	opts := inv.Args.Config.Analysis
	a := &analysis.StaticAnalyser{
		CFG:     cfgAnalyser,
		DFG:     dfgAnalyser,
		SkipCFG: opts.SkipCFG,
		SkipDFG: opts.SkipDFG,
		Workers: opts.Workers,
	}
	gadgets, err := a.Analyse(ctx, inv.Args.Buffer, cands)
	if err != nil {
		return err
	}
	return inv.Registry.PutGadgets(gadgets)
}

// SemanticStage runs a detector chain over the gadgets. The configured
// self-loop policy always runs first.
type SemanticStage struct {
	Detectors []analysis.Detector
}

func (SemanticStage) ID() StageID { return StageSemantic }

func (s SemanticStage) Run(_ context.Context, inv *Invocation) error {
	gadgets, err := inv.Registry.Gadgets(s.ID())
	if err != nil {
		return err
	}
	policy, err := analysis.ParseSelfLoopPolicy(inv.Args.Config.Analysis.SelfLoops)
	if err != nil {
		return err
	}
	chain := analysis.NewDetectorChain(analysis.SelfLoopDetector{Policy: policy})
	chain.Append(s.Detectors...)
	kept := chain.Detect(gadgets)
	slog.Debug("Semantic analysis done", "in", len(gadgets), "kept", len(kept))
	return inv.Registry.PutSemantic(kept)
}
