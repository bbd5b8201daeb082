package render

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"topper/internal/config"
	"topper/internal/disasm"
	"topper/internal/pipeline"
)

// testBuf: goto +0, invoke-static {v2} method@0, throw v2.
var testBuf = []byte{
	0x28, 0x00,
	0x71, 0x10, 0x00, 0x00, 0x02, 0x00,
	0x27, 0x02,
}

func run(t *testing.T, mutate func(*config.Config)) *pipeline.Result {
	t.Helper()
	cfg := config.Default()
	if mutate != nil {
		mutate(&cfg)
	}
	res, err := pipeline.Default().Run(context.Background(), pipeline.Args{
		Config:      cfg,
		Buffer:      testBuf,
		Symbols:     disasm.MapResolver{disasm.RefMethod: {"LFoo;->bar(I)V"}},
		EntryOffset: 0x1000,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Gadgets) != 3 {
		t.Fatalf("got %d gadgets, want 3", len(res.Gadgets))
	}
	return res
}

func TestText(t *testing.T) {
	res := run(t, nil)
	var buf bytes.Buffer
	if err := Text(&buf, res, nil); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"gadget 00001008-0000100a anchor 00001008 len 1\n00001008  27 02",
		"gadget 00001000-0000100a anchor 00001008 len 3 [self-loop]",
		"00001002  71 10 00 00 02 00    invoke-static {v2}, LFoo;->bar(I)V",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("text output lacks %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "\n\ngadget"); n != 2 {
		t.Errorf("%d separators, want 2", n)
	}

	buf.Reset()
	if err := Text(&buf, res, strings.ToUpper); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "INVOKE-STATIC") {
		t.Error("colorize hook not applied")
	}
}

func TestJSON(t *testing.T) {
	res := run(t, nil)
	var buf bytes.Buffer
	if err := JSON(&buf, res); err != nil {
		t.Fatal(err)
	}
	var r Report
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.EntryOffset != 0x1000 || len(r.Anchors) != 1 || r.Anchors[0] != 0x1008 {
		t.Errorf("report header = %+v", r)
	}
	last := r.Gadgets[2]
	if last.Address != 0x1000 || last.Size != 10 || len(last.Instructions) != 3 {
		t.Errorf("gadget = %+v", last)
	}
	if len(last.Blocks) != 1 {
		t.Fatalf("blocks = %+v", last.Blocks)
	}
	if b := last.Blocks[0]; b.Type != "goto" || len(b.Successors) != 1 || b.Successors[0] != (EdgeReport{To: 0, Kind: "goto"}) {
		t.Errorf("block 0 = %+v", b)
	}
	if b := r.Gadgets[1].Blocks; len(b) != 1 || b[0].Type != "throw" || b[0].Successors != nil {
		t.Errorf("throw gadget blocks = %+v", b)
	}

	noCFG := run(t, func(c *config.Config) { c.Analysis.SkipCFG = true })
	if NewReport(noCFG).Gadgets[0].Blocks != nil {
		t.Error("blocks reported without a CFG")
	}
}

func TestDOT(t *testing.T) {
	res := run(t, nil)
	cg := CFGGraph(res)
	if len(cg.Funcs) != 3 {
		t.Fatalf("got %d funcs", len(cg.Funcs))
	}
	loop := cg.Funcs[2]
	if loop.Name != "gadget_00001000" || len(loop.Blocks) != 1 {
		t.Fatalf("func = %s with %d blocks", loop.Name, len(loop.Blocks))
	}
	if b := loop.Blocks[0]; b.Term || len(b.Succs) != 1 || b.Succs[0].BlockID != 0 {
		t.Errorf("goto block = %+v", b)
	}
	call := cg.Funcs[1].Blocks[0]
	if !call.Term {
		t.Error("throw block not terminal")
	}
	if len(call.Calls) != 1 || call.Calls[0].Callee != "LFoo;->bar(I)V" || call.Calls[0].Offset != 0 {
		t.Errorf("calls = %+v", call.Calls)
	}
	if DOTCFG(res, "gadgets") == "" {
		t.Error("empty CFG DOT")
	}

	g := CallGraph(res)
	if len(g.Nodes) != 3 || len(g.Edges) != 2 {
		t.Errorf("call graph: %d nodes, %d edges", len(g.Nodes), len(g.Edges))
	}
	if DOTCallGraph(res, "refs") == "" {
		t.Error("empty call graph DOT")
	}

	if len(CFGGraph(run(t, func(c *config.Config) { c.Analysis.SkipCFG = true })).Funcs) != 0 {
		t.Error("CFG funcs built without CFGs")
	}
}

func TestMarkdown(t *testing.T) {
	md := Markdown(run(t, nil), "Gadgets")
	for _, want := range []string{
		"# Gadgets\n",
		"3 gadgets over 1 anchors.",
		"| `00001000` | `00001008` | 3 | 1 | self-loop |",
		"## Anchor 00001008",
		"### gadget_00001002",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown lacks %q:\n%s", want, md)
		}
	}

	empty := &pipeline.Result{}
	if got := Markdown(empty, "none"); strings.Contains(got, "|") {
		t.Errorf("empty result rendered a table: %q", got)
	}
}

func TestReportSchema(t *testing.T) {
	bts, err := json.Marshal(ReportSchema())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(bts), "instructions") {
		t.Error("schema lacks instructions")
	}
}
