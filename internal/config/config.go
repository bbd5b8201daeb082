// Package config holds the gadget search configuration and its JSON file
// format.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/invopop/jsonschema"

	"topper/internal/analysis"
	"topper/internal/disasm"
)

// Config is the full search configuration.
type Config struct {
	Decoder  DecoderConfig  `json:"decoder" jsonschema:"title=Decoder,description=Instruction decoder settings"`
	Search   SearchConfig   `json:"search" jsonschema:"title=Search,description=Pivot search settings"`
	Analysis AnalysisConfig `json:"analysis" jsonschema:"title=Analysis,description=Static analysis settings"`
}

type DecoderConfig struct {
	Version    int  `json:"version" jsonschema:"title=Dex Version,description=Opcode table to decode with,enum=35,enum=37,enum=38,enum=39,default=39"`
	NopUnknown bool `json:"nopUnknown" jsonschema:"title=Tolerant Mode,description=Decode unassigned opcodes as nop instead of failing"`
}

type SearchConfig struct {
	Pivot           string `json:"pivot" jsonschema:"title=Pivot,description=Mnemonic every gadget ends with,default=throw"`
	MaxInstructions int    `json:"maxInstructions" jsonschema:"title=Max Instructions,description=Longest gadget including the pivot,minimum=1,default=8"`
}

type AnalysisConfig struct {
	SkipCFG   bool   `json:"skipCFG" jsonschema:"title=Skip CFG,description=Do not build control-flow graphs"`
	SkipDFG   bool   `json:"skipDFG" jsonschema:"title=Skip DFG,description=Do not build data-flow graphs,default=true"`
	SelfLoops string `json:"selfLoops" jsonschema:"title=Self Loops,description=Policy for gadgets whose CFG branches to itself,enum=keep,enum=discard,default=keep"`
	Workers   int    `json:"workers" jsonschema:"title=Workers,description=Concurrent sequences during static analysis (0 uses every CPU),minimum=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Decoder: DecoderConfig{Version: disasm.DefaultVersion},
		Search: SearchConfig{
			Pivot:           analysis.DefaultPivot,
			MaxInstructions: analysis.DefaultMaxInstructions,
		},
		Analysis: AnalysisConfig{
			SkipDFG:   true,
			SelfLoops: string(analysis.SelfLoopKeep),
		},
	}
}

// Load reads a JSON configuration file over the defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes JSON over the defaults and validates the result. Unknown
// keys are rejected.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field, including that the pivot exists in the
// selected opcode table.
func (c Config) Validate() error {
	tbl, err := disasm.Table(c.Decoder.Version)
	if err != nil {
		return fmt.Errorf("decoder.version: %w", err)
	}
	if _, err := analysis.ResolvePivot(tbl, c.Search.Pivot); err != nil {
		return fmt.Errorf("search.pivot: %w", err)
	}
	if c.Search.MaxInstructions < 1 || c.Search.MaxInstructions > analysis.MaxInstructionsLimit {
		return fmt.Errorf("search.maxInstructions: %w: %d not in [1,%d]",
			disasm.ErrInvalidArgument, c.Search.MaxInstructions, analysis.MaxInstructionsLimit)
	}
	if _, err := analysis.ParseSelfLoopPolicy(c.Analysis.SelfLoops); err != nil {
		return fmt.Errorf("analysis.selfLoops: %w", err)
	}
	if c.Analysis.Workers < 0 {
		return fmt.Errorf("analysis.workers: %w: %d < 0", disasm.ErrInvalidArgument, c.Analysis.Workers)
	}
	return nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() *jsonschema.Schema {
	reflector := new(jsonschema.Reflector)
	return reflector.Reflect(&Config{})
}
