package analysis

import (
	"fmt"
	"slices"
)

// Detector inspects gadgets after static analysis.
type Detector interface {
	// Detect may annotate gadgets or drop them from the returned slice.
	Detect(gadgets []*Gadget) []*Gadget
}

// DetectorChain runs multiple detectors in sequence
type DetectorChain struct {
	detectors []Detector
}

// NewDetectorChain creates a new detector chain
func NewDetectorChain(detectors ...Detector) *DetectorChain {
	return &DetectorChain{
		detectors: detectors,
	}
}

// Append adds detectors to the end of the chain.
func (dc *DetectorChain) Append(detectors ...Detector) {
	dc.detectors = append(dc.detectors, detectors...)
}

// Detect runs all detectors in sequence
func (dc *DetectorChain) Detect(gadgets []*Gadget) []*Gadget {
	result := gadgets
	for _, detector := range dc.detectors {
		result = detector.Detect(result)
	}
	return result
}

// Gadget tags.
const (
	TagSelfLoop    = "self-loop"
	TagSubstituted = "substituted"
	TagExits       = "exits"
)

// SelfLoopPolicy decides the fate of gadgets whose CFG branches to itself.
type SelfLoopPolicy string

const (
	SelfLoopKeep    SelfLoopPolicy = "keep"
	SelfLoopDiscard SelfLoopPolicy = "discard"
)

// ParseSelfLoopPolicy validates a policy name.
func ParseSelfLoopPolicy(s string) (SelfLoopPolicy, error) {
	switch p := SelfLoopPolicy(s); p {
	case SelfLoopKeep, SelfLoopDiscard:
		return p, nil
	}
	return "", fmt.Errorf("unknown self-loop policy %q (want keep or discard)", s)
}

// SelfLoopDetector tags gadgets with a self-loop and drops them under the
// discard policy. Gadgets without a CFG pass through.
type SelfLoopDetector struct {
	Policy SelfLoopPolicy
}

func (d SelfLoopDetector) Detect(gadgets []*Gadget) []*Gadget {
	return slices.DeleteFunc(slices.Clone(gadgets), func(g *Gadget) bool {
		if g.CFG == nil || !g.CFG.HasSelfLoop() {
			return false
		}
		g.Tag(TagSelfLoop)
		return d.Policy == SelfLoopDiscard
	})
}

// SubstitutionDetector tags gadgets that contain tolerant-mode nops.
type SubstitutionDetector struct{}

func (SubstitutionDetector) Detect(gadgets []*Gadget) []*Gadget {
	for _, g := range gadgets {
		for _, in := range g.Sequence {
			if in.Substituted {
				g.Tag(TagSubstituted)
				break
			}
		}
	}
	return gadgets
}

// ExitDetector tags gadgets whose CFG branches outside the sequence.
type ExitDetector struct{}

func (ExitDetector) Detect(gadgets []*Gadget) []*Gadget {
	for _, g := range gadgets {
		if g.CFG == nil {
			continue
		}
		for _, b := range g.CFG.Blocks {
			if len(b.Exits) > 0 {
				g.Tag(TagExits)
				break
			}
		}
	}
	return gadgets
}
