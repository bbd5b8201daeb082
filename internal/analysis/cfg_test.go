package analysis

import (
	"errors"
	"testing"

	"topper/internal/disasm"
)

func decodeRange(t *testing.T, d *disasm.Decoder, buf []byte, start, end int) disasm.Stream {
	t.Helper()
	s, err := d.DecodeRange(buf, start, end)
	if err != nil {
		t.Fatalf("DecodeRange(%d,%d): %v", start, end, err)
	}
	return s
}

type blockWant struct {
	offset int
	size   int
	typ    BlockType
	succs  int
	exits  []int
}

func TestBuildCFG(t *testing.T) {
	// packed-switch v0 with two cases that both land on the throw.
	switchBuf := []byte{
		0x2b, 0x00, 0x06, 0x00, 0x00, 0x00, // 0: packed-switch v0, payload at +6
		0x0e, 0x00, // 6: return-void
		0x27, 0x00, // 8: throw v0
		0x00, 0x00, // 10: nop
		0x00, 0x01, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, // 12: payload header, first key 0
		0x04, 0x00, 0x00, 0x00, 0x04, 0x00, 0x00, 0x00, // targets +4, +4
	}

	tests := []struct {
		name     string
		buf      []byte
		end      int // sequence covers [0,end)
		blocks   []blockWant
		selfLoop bool
	}{
		{
			name: "straight line return",
			buf:  []byte{0x12, 0x10, 0x0e, 0x00},
			blocks: []blockWant{
				{offset: 0, size: 4, typ: BlockReturn},
			},
		},
		{
			name: "if splits into taken and fallthrough",
			buf:  []byte{0x38, 0x00, 0x03, 0x00, 0x0e, 0x00, 0x27, 0x00},
			blocks: []blockWant{
				{offset: 0, size: 4, typ: BlockIf, succs: 2},
				{offset: 4, size: 2, typ: BlockReturn},
				{offset: 6, size: 2, typ: BlockThrow},
			},
		},
		{
			name: "goto into own block splits it",
			buf:  []byte{0x12, 0x10, 0x28, 0x00, 0x27, 0x00},
			blocks: []blockWant{
				{offset: 0, size: 2, typ: BlockUnknown, succs: 1},
				{offset: 2, size: 2, typ: BlockGoto, succs: 1},
			},
			selfLoop: true,
		},
		{
			name: "backward if splits predecessor block",
			buf:  []byte{0x12, 0x10, 0x01, 0x10, 0x38, 0x00, 0xff, 0xff, 0x27, 0x00},
			blocks: []blockWant{
				{offset: 0, size: 2, typ: BlockUnknown, succs: 1},
				{offset: 2, size: 6, typ: BlockIf, succs: 2},
				{offset: 8, size: 2, typ: BlockThrow},
			},
			selfLoop: true,
		},
		{
			name: "goto outside sequence is an exit",
			buf:  []byte{0x28, 0x10},
			blocks: []blockWant{
				{offset: 0, size: 2, typ: BlockGoto, exits: []int{32}},
			},
		},
		{
			name: "truncated sequence falls off the end",
			buf:  []byte{0x12, 0x10, 0x01, 0x10},
			blocks: []blockWant{
				{offset: 0, size: 4, typ: BlockUnknown, exits: []int{4}},
			},
		},
		{
			name: "switch deduplicates case targets",
			buf:  switchBuf,
			end:  12,
			blocks: []blockWant{
				{offset: 0, size: 6, typ: BlockSwitch, succs: 2},
				{offset: 6, size: 2, typ: BlockReturn},
				{offset: 8, size: 2, typ: BlockThrow},
			},
		},
	}

	d := testDecoder(t, false)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			end := tt.end
			if end == 0 {
				end = len(tt.buf)
			}
			seq := decodeRange(t, d, tt.buf, 0, end)
			b := &BFSBuilder{Decoder: d}
			g, err := b.BuildCFG(tt.buf, seq, 0)
			if err != nil {
				t.Fatalf("BuildCFG: %v", err)
			}
			if len(g.Blocks) != len(tt.blocks) {
				t.Fatalf("got %d blocks, want %d", len(g.Blocks), len(tt.blocks))
			}
			for i, w := range tt.blocks {
				blk := g.Blocks[i]
				if blk.ID != i {
					t.Errorf("block %d has ID %d", i, blk.ID)
				}
				if blk.Offset() != w.offset || blk.Size() != w.size || blk.Type != w.typ {
					t.Errorf("block %d = {0x%x, %d, %s}, want {0x%x, %d, %s}",
						i, blk.Offset(), blk.Size(), blk.Type, w.offset, w.size, w.typ)
				}
				if got := len(g.Successors(i)); got != w.succs {
					t.Errorf("block %d has %d successors, want %d", i, got, w.succs)
				}
				if len(blk.Exits) != len(w.exits) {
					t.Errorf("block %d exits = %v, want %v", i, blk.Exits, w.exits)
				}
				for j := range w.exits {
					if j < len(blk.Exits) && blk.Exits[j] != w.exits[j] {
						t.Errorf("block %d exits = %v, want %v", i, blk.Exits, w.exits)
					}
				}
			}
			if g.HasSelfLoop() != tt.selfLoop {
				t.Errorf("HasSelfLoop() = %v, want %v", g.HasSelfLoop(), tt.selfLoop)
			}
			if g.EntryBlock() != g.Blocks[0] {
				t.Error("entry block is not the first block")
			}
			checkIndices(t, g)
		})
	}
}

// checkIndices verifies that both lookups agree for every instruction held
// by a block.
func checkIndices(t *testing.T, g *ControlFlowGraph) {
	t.Helper()
	for _, blk := range g.Blocks {
		for _, in := range blk.Insts() {
			got, ok := g.InstructionAt(in.Offset)
			if !ok || got.Offset != in.Offset || got.Size() != in.Size() {
				t.Errorf("InstructionAt(0x%x) = %v, %v", in.Offset, got, ok)
			}
			owner, ok := g.BlockOf(in.Offset)
			if !ok || owner != blk {
				t.Errorf("BlockOf(0x%x) = %v, want block %d", in.Offset, owner, blk.ID)
				continue
			}
			if owner.Offset() > in.Offset || in.Offset >= owner.Offset()+owner.Size() {
				t.Errorf("instruction 0x%x outside its block", in.Offset)
			}
		}
	}
}

func TestSuccessorLaw(t *testing.T) {
	d := testDecoder(t, false)
	tests := []struct {
		name string
		buf  []byte
		want int
	}{
		{"goto", []byte{0x28, 0x01, 0x27, 0x00}, 1},
		{"goto/16", []byte{0x29, 0x00, 0x02, 0x00, 0x27, 0x00}, 1},
		{"if both edges to one block", []byte{0x38, 0x00, 0x02, 0x00, 0x27, 0x00}, 2},
		{"if-lt", []byte{0x34, 0x10, 0x03, 0x00, 0x0e, 0x00, 0x27, 0x00}, 2},
		{"return", []byte{0x0f, 0x00, 0x27, 0x00}, 0},
		{"throw", []byte{0x27, 0x00, 0x0e, 0x00}, 0},
		{"switch without payload", []byte{0x2c, 0x00, 0x40, 0x00, 0x00, 0x00, 0x27, 0x00}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq := decodeRange(t, d, tt.buf, 0, len(tt.buf))
			g, err := (&BFSBuilder{Decoder: d}).BuildCFG(tt.buf, seq, 0)
			if err != nil {
				t.Fatalf("BuildCFG: %v", err)
			}
			if got := len(g.Successors(g.EntryBlock().ID)); got != tt.want {
				t.Errorf("entry block has %d successors, want %d", got, tt.want)
			}
			checkIndices(t, g)
		})
	}
}

func TestBuildCFGErrors(t *testing.T) {
	d := testDecoder(t, false)
	b := &BFSBuilder{Decoder: d}
	buf := []byte{0x12, 0x10, 0x27, 0x00}
	seq := decodeRange(t, d, buf, 0, len(buf))

	if _, err := b.BuildCFG(buf, nil, 0); !errors.Is(err, disasm.ErrInvalidArgument) {
		t.Errorf("empty sequence error = %v", err)
	}
	if _, err := b.BuildCFG(buf, seq, 1); !errors.Is(err, disasm.ErrInvalidArgument) {
		t.Errorf("misaligned entry error = %v", err)
	}
	g, err := b.BuildCFG(buf, seq, 2)
	if err != nil {
		t.Fatalf("BuildCFG from second instruction: %v", err)
	}
	if len(g.Blocks) != 1 || g.Blocks[0].Offset() != 2 {
		t.Errorf("blocks from entry 2 = %d", len(g.Blocks))
	}
	if _, ok := g.BlockOf(0); ok {
		t.Error("BlockOf(0) found an unreachable instruction")
	}
	if _, ok := g.InstructionAt(0); !ok {
		t.Error("InstructionAt(0) misses an instruction of the sequence")
	}
}
