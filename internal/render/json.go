package render

import (
	"encoding/json"
	"io"

	"github.com/invopop/jsonschema"

	"topper/internal/analysis"
	"topper/internal/disasm"
	"topper/internal/pipeline"
)

// Report is the machine readable form of a run. Addresses include the
// entry offset.
type Report struct {
	EntryOffset int            `json:"entryOffset" jsonschema:"description=Address of the first buffer byte"`
	Anchors     []int          `json:"anchors" jsonschema:"description=Pivot addresses that produced at least one gadget"`
	Gadgets     []GadgetReport `json:"gadgets"`
	Skipped     []int          `json:"skipped,omitempty" jsonschema:"description=Pivot byte addresses that did not decode to the pivot"`
}

type GadgetReport struct {
	Address      int                 `json:"address"`
	Anchor       int                 `json:"anchor"`
	Size         int                 `json:"size"`
	Tags         []string            `json:"tags,omitempty"`
	Instructions []InstructionReport `json:"instructions"`
	Blocks       []BlockReport       `json:"blocks,omitempty" jsonschema:"description=Control-flow blocks; absent when CFG extraction is skipped"`
}

type InstructionReport struct {
	Address     int    `json:"address"`
	Bytes       string `json:"bytes"`
	Text        string `json:"text"`
	Substituted bool   `json:"substituted,omitempty"`
}

type BlockReport struct {
	ID         int          `json:"id"`
	Address    int          `json:"address"`
	Size       int          `json:"size"`
	Type       string       `json:"type"`
	Exits      []int        `json:"exits,omitempty" jsonschema:"description=Branch targets outside the gadget"`
	Successors []EdgeReport `json:"successors,omitempty"`
}

type EdgeReport struct {
	To   int    `json:"to"`
	Kind string `json:"kind"`
}

// NewReport builds the report for res.
func NewReport(res *pipeline.Result) Report {
	r := Report{
		EntryOffset: res.EntryOffset,
		Anchors:     make([]int, 0, len(res.Anchors)),
		Gadgets:     make([]GadgetReport, 0, len(res.Gadgets)),
	}
	base := res.EntryOffset
	for _, a := range res.Anchors {
		r.Anchors = append(r.Anchors, base+a.Anchor)
	}
	for _, g := range res.Gadgets {
		r.Gadgets = append(r.Gadgets, gadgetReport(g, base))
	}
	for _, s := range res.Skipped {
		r.Skipped = append(r.Skipped, base+s.Anchor)
	}
	return r
}

func gadgetReport(g *analysis.Gadget, base int) GadgetReport {
	gr := GadgetReport{
		Address: base + g.Offset(),
		Anchor:  base + g.Anchor,
		Size:    g.Size(),
		Tags:    g.Tags,
	}
	for _, in := range g.Sequence {
		gr.Instructions = append(gr.Instructions, instructionReport(in, base))
	}
	if g.CFG == nil {
		return gr
	}
	for _, blk := range g.CFG.Blocks {
		br := BlockReport{
			ID:      blk.ID,
			Address: base + blk.Offset(),
			Size:    blk.Size(),
			Type:    blk.Type.String(),
		}
		for _, x := range blk.Exits {
			br.Exits = append(br.Exits, base+x)
		}
		for _, e := range g.CFG.Successors(blk.ID) {
			br.Successors = append(br.Successors, EdgeReport{To: e.To, Kind: e.Kind.String()})
		}
		gr.Blocks = append(gr.Blocks, br)
	}
	return gr
}

func instructionReport(in disasm.Inst, base int) InstructionReport {
	return InstructionReport{
		Address:     base + in.Offset,
		Bytes:       in.Hex(),
		Text:        in.String(),
		Substituted: in.Substituted,
	}
}

// JSON writes the indented report for res.
func JSON(w io.Writer, res *pipeline.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewReport(res))
}

// ReportSchema returns the JSON schema of Report.
func ReportSchema() *jsonschema.Schema {
	reflector := new(jsonschema.Reflector)
	return reflector.Reflect(&Report{})
}
