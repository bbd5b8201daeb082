// Package analysis finds Dalvik gadgets: pivot seeking, backward sweeping,
// control-flow graph construction and gadget filtering.
package analysis

// Defaults for gadget search.
const (
	// DefaultPivot is the mnemonic gadgets end with.
	DefaultPivot = "throw"

	// DefaultMaxInstructions bounds gadget length, pivot included.
	DefaultMaxInstructions = 8

	// MaxInstructionsLimit is the largest accepted gadget length.
	MaxInstructionsLimit = 256
)
