package analysis

import (
	"errors"
	"fmt"

	"topper/internal/disasm"
)

// ErrNotPivot reports a sweep anchor that does not decode to the pivot.
var ErrNotPivot = errors.New("anchor is not the pivot instruction")

// SweepError reports an invalid sweep anchor.
type SweepError struct {
	Anchor int
	Err    error
}

func (e *SweepError) Error() string {
	return fmt.Sprintf("sweep at 0x%x: %v", e.Anchor, e.Err)
}

func (e *SweepError) Unwrap() error { return e.Err }

// Sweeper enumerates instruction sequences ending at a pivot by walking
// backwards over independently valid decodes.
type Sweeper struct {
	Decoder         *disasm.Decoder
	Pivot           Pivot
	MaxInstructions int
}

// NewSweeper validates its arguments and returns a Sweeper.
func NewSweeper(dec *disasm.Decoder, pivot Pivot, maxInstructions int) (*Sweeper, error) {
	if dec == nil {
		return nil, fmt.Errorf("%w: nil decoder", disasm.ErrInvalidArgument)
	}
	if maxInstructions < 1 {
		return nil, fmt.Errorf("%w: max instructions %d < 1", disasm.ErrInvalidArgument, maxInstructions)
	}
	return &Sweeper{Decoder: dec, Pivot: pivot, MaxInstructions: maxInstructions}, nil
}

type probeResult int

const (
	probeRejected probeResult = iota
	probeAccepted
	probeFatal
)

// Sweep returns the sequences of 1..MaxInstructions instructions ending at
// the pivot at anchor, shortest first. The results are suffixes of one
// backing stream.
func (s *Sweeper) Sweep(buf []byte, anchor int) ([]disasm.Stream, error) {
	if len(buf) == 0 {
		return nil, &SweepError{Anchor: anchor, Err: fmt.Errorf("%w: empty buffer", disasm.ErrInvalidArgument)}
	}
	if len(buf)%2 != 0 {
		return nil, &SweepError{Anchor: anchor, Err: fmt.Errorf("%w: odd buffer length %d", disasm.ErrInvalidArgument, len(buf))}
	}
	if anchor < 0 || anchor >= len(buf) {
		return nil, &SweepError{Anchor: anchor,
			Err: fmt.Errorf("%w: anchor outside buffer of %d bytes", disasm.ErrInvalidArgument, len(buf))}
	}
	pivot, err := s.Decoder.DecodeAt(buf, anchor)
	if err != nil {
		return nil, &SweepError{Anchor: anchor, Err: err}
	}
	if !s.isPivot(pivot) {
		return nil, &SweepError{Anchor: anchor, Err: fmt.Errorf("%w: found %s", ErrNotPivot, pivot.Mnemonic())}
	}

	// path holds the pivot followed by its predecessors, nearest first.
	path := make([]disasm.Inst, 1, s.MaxInstructions)
	path[0] = pivot
	for cur := anchor; len(path) < s.MaxInstructions; {
		in, res, err := s.predecessor(buf, cur)
		if res == probeFatal {
			return nil, &SweepError{Anchor: anchor, Err: err}
		}
		if res == probeRejected {
			break
		}
		path = append(path, in)
		cur = in.Offset
	}

	n := len(path)
	seq := make(disasm.Stream, n)
	for i, in := range path {
		seq[n-1-i] = in
	}
	out := make([]disasm.Stream, n)
	for k := 1; k <= n; k++ {
		out[k-1] = seq[n-k:]
	}
	return out, nil
}

func (s *Sweeper) isPivot(in disasm.Inst) bool {
	return in.Op == s.Pivot.Op && in.Payload == nil && !in.Substituted
}

// predecessor tries every even window size ending at end and accepts the
// first one that decodes to exactly one instruction filling the window.
func (s *Sweeper) predecessor(buf []byte, end int) (disasm.Inst, probeResult, error) {
	maxSize := s.Decoder.Table.MaxSize()
	for size := 2; size <= maxSize && end-size >= 0; size += 2 {
		in, res, err := s.probe(buf, end-size, end)
		if res != probeRejected {
			return in, res, err
		}
	}
	return disasm.Inst{}, probeRejected, nil
}

func (s *Sweeper) probe(buf []byte, start, end int) (disasm.Inst, probeResult, error) {
	in, err := s.Decoder.DecodeWindow(buf, start, end)
	switch {
	case errors.Is(err, disasm.ErrInvalidArgument):
		return disasm.Inst{}, probeFatal, err
	case err != nil:
		return disasm.Inst{}, probeRejected, nil
	case in.End() != end:
		return disasm.Inst{}, probeRejected, nil
	case in.Payload != nil || s.isPivot(in):
		return disasm.Inst{}, probeRejected, nil
	}
	return in, probeAccepted, nil
}
