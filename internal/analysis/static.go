package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"topper/internal/disasm"
)

// StaticAnalyser turns swept sequences into gadgets.
type StaticAnalyser struct {
	CFG     CFGAnalyser
	DFG     DFGAnalyser
	SkipCFG bool
	SkipDFG bool
	// Workers bounds concurrent sequences. Zero means runtime.NumCPU.
	Workers int
}

// Analyse builds one gadget per candidate, in candidate order. The context
// is checked between sequences.
func (a *StaticAnalyser) Analyse(ctx context.Context, buf []byte, cands []Candidate) ([]*Gadget, error) {
	out := make([]*Gadget, len(cands))
	workers := a.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range cands {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			gad, err := a.analyseOne(buf, c)
			if err != nil {
				return fmt.Errorf("candidate %d at 0x%x: %w", i, c.Anchor, err)
			}
			out[i] = gad
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	slog.Debug("Static analysis done", "gadgets", len(out), "workers", workers)
	return out, nil
}

func (a *StaticAnalyser) analyseOne(buf []byte, c Candidate) (*Gadget, error) {
	if len(c.Sequence) == 0 {
		return nil, fmt.Errorf("%w: empty instruction sequence", disasm.ErrInvalidArgument)
	}
	gad := newGadget(c)
	if !a.SkipCFG && a.CFG != nil {
		cfg, err := a.CFG.BuildCFG(buf, gad.Sequence, gad.Offset())
		if err != nil {
			return nil, fmt.Errorf("build cfg: %w", err)
		}
		gad.CFG = cfg
	}
	if !a.SkipDFG && a.DFG != nil {
		dfg, err := a.DFG.BuildDFG(gad.Sequence, gad.CFG)
		if err != nil {
			return nil, fmt.Errorf("build dfg: %w", err)
		}
		gad.DFG = dfg
	}
	return gad, nil
}
