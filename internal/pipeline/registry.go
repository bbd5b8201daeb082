package pipeline

import (
	"fmt"

	"topper/internal/analysis"
	"topper/internal/disasm"
)

// StageID names a stage and the result slot it fills.
type StageID string

const (
	StageSeek     StageID = "seek"
	StageSweep    StageID = "sweep"
	StageStatic   StageID = "static"
	StageSemantic StageID = "semantic"
)

// MissingStageError reports a stage run before one of its dependencies.
type MissingStageError struct {
	Stage   StageID
	Missing StageID
}

func (e *MissingStageError) Error() string {
	return fmt.Sprintf("missing stage info %s needed by %s", e.Missing, e.Stage)
}

// DuplicateStageError reports a stage result registered twice.
type DuplicateStageError struct {
	Stage StageID
}

func (e *DuplicateStageError) Error() string {
	return fmt.Sprintf("duplicate stage info %s", e.Stage)
}

// Sweep holds the sequences swept from one anchor, shortest first.
type Sweep struct {
	Anchor    int
	Sequences []disasm.Stream
}

type slot[T any] struct {
	val T
	set bool
}

func (s *slot[T]) get(owner, id StageID) (T, error) {
	if !s.set {
		var zero T
		return zero, &MissingStageError{Stage: owner, Missing: id}
	}
	return s.val, nil
}

func (s *slot[T]) put(id StageID, v T) error {
	if s.set {
		return &DuplicateStageError{Stage: id}
	}
	s.val, s.set = v, true
	return nil
}

// Registry holds the result of every stage of one run. Each slot is
// written at most once.
type Registry struct {
	pivots   slot[[]int]
	sweeps   slot[[]Sweep]
	gadgets  slot[[]*analysis.Gadget]
	semantic slot[[]*analysis.Gadget]
	skipped  []SkippedAnchor
}

// SkippedAnchor is a seeker hit the sweep stage could not use.
type SkippedAnchor struct {
	Anchor int
	Err    error
}

// Skipped returns the anchors dropped by the sweep stage, in anchor order.
func (r *Registry) Skipped() []SkippedAnchor { return r.skipped }

// Pivots returns the seek result on behalf of stage owner.
func (r *Registry) Pivots(owner StageID) ([]int, error) { return r.pivots.get(owner, StageSeek) }

func (r *Registry) PutPivots(v []int) error { return r.pivots.put(StageSeek, v) }

// Sweeps returns the sweep result on behalf of stage owner.
func (r *Registry) Sweeps(owner StageID) ([]Sweep, error) { return r.sweeps.get(owner, StageSweep) }

func (r *Registry) PutSweeps(v []Sweep) error { return r.sweeps.put(StageSweep, v) }

// Gadgets returns the static analysis result on behalf of stage owner.
func (r *Registry) Gadgets(owner StageID) ([]*analysis.Gadget, error) {
	return r.gadgets.get(owner, StageStatic)
}

func (r *Registry) PutGadgets(v []*analysis.Gadget) error { return r.gadgets.put(StageStatic, v) }

// Semantic returns the detector chain result on behalf of stage owner.
func (r *Registry) Semantic(owner StageID) ([]*analysis.Gadget, error) {
	return r.semantic.get(owner, StageSemantic)
}

func (r *Registry) PutSemantic(v []*analysis.Gadget) error { return r.semantic.put(StageSemantic, v) }

// Has reports whether a stage result is registered.
func (r *Registry) Has(id StageID) bool {
	switch id {
	case StageSeek:
		return r.pivots.set
	case StageSweep:
		return r.sweeps.set
	case StageStatic:
		return r.gadgets.set
	case StageSemantic:
		return r.semantic.set
	}
	return false
}
