// Package pipeline sequences the gadget search stages over one buffer.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"topper/internal/analysis"
	"topper/internal/config"
	"topper/internal/disasm"
)

// Args are the inputs of one run.
type Args struct {
	Config  config.Config
	Buffer  []byte
	Symbols disasm.SymbolResolver
	// EntryOffset is the address of Buffer[0] inside its container.
	// Analysis works on buffer offsets; renderers add it back.
	EntryOffset int
}

// Invocation is the state shared by the stages of one run.
type Invocation struct {
	Args     Args
	Decoder  *disasm.Decoder
	Pivot    analysis.Pivot
	Registry *Registry
}

// Pipeline runs stages in order, stopping at the first failure.
type Pipeline struct {
	stages []Stage
}

// New returns a pipeline made of the given stages.
func New(stages ...Stage) *Pipeline {
	return &Pipeline{stages: stages}
}

// Default returns Seek, Sweep, Static and Semantic. Extra detectors run
// after the self-loop policy.
func Default(detectors ...analysis.Detector) *Pipeline {
	return New(
		SeekStage{},
		SweepStage{},
		StaticStage{},
		SemanticStage{Detectors: detectors},
	)
}

// Stages returns the stage IDs in run order.
func (p *Pipeline) Stages() []StageID {
	ids := make([]StageID, len(p.stages))
	for i, s := range p.stages {
		ids[i] = s.ID()
	}
	return ids
}

// Run executes every stage against a fresh registry.
func (p *Pipeline) Run(ctx context.Context, args Args) (*Result, error) {
	if err := args.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if len(args.Buffer)%2 != 0 {
		return nil, fmt.Errorf("%w: odd buffer length %d", disasm.ErrInvalidArgument, len(args.Buffer))
	}
	dec, err := disasm.NewDecoder(args.Config.Decoder.Version, args.Config.Decoder.NopUnknown, args.Symbols)
	if err != nil {
		return nil, err
	}
	pivot, err := analysis.ResolvePivot(dec.Table, args.Config.Search.Pivot)
	if err != nil {
		return nil, err
	}

	inv := &Invocation{Args: args, Decoder: dec, Pivot: pivot, Registry: &Registry{}}
	for _, s := range p.stages {
		start := time.Now()
		if err := s.Run(ctx, inv); err != nil {
			return nil, fmt.Errorf("stage %s: %w", s.ID(), err)
		}
		slog.Debug("Stage finished", "stage", s.ID(), "elapsed", time.Since(start))
	}
	return newResult(inv), nil
}
