package analysis

import (
	"fmt"
	"log/slog"
	"sort"

	"topper/internal/disasm"
)

// BlockType classifies a basic block by its last instruction.
type BlockType int

const (
	BlockUnknown BlockType = iota
	BlockIf
	BlockSwitch
	BlockGoto
	BlockReturn
	BlockThrow
)

func (t BlockType) String() string {
	switch t {
	case BlockIf:
		return "if"
	case BlockSwitch:
		return "switch"
	case BlockGoto:
		return "goto"
	case BlockReturn:
		return "return"
	case BlockThrow:
		return "throw"
	}
	return "unknown"
}

func blockTypeOf(in disasm.Inst) BlockType {
	switch in.Flow() {
	case disasm.FlowIf:
		return BlockIf
	case disasm.FlowSwitch:
		return BlockSwitch
	case disasm.FlowGoto:
		return BlockGoto
	case disasm.FlowReturn:
		return BlockReturn
	case disasm.FlowThrow:
		return BlockThrow
	}
	return BlockUnknown
}

// BasicBlock is a view of consecutive instructions of the analysed
// sequence, Start and End being indices into it.
type BasicBlock struct {
	ID    int
	Start int
	End   int
	Type  BlockType
	// Exits lists branch targets that leave the analysed sequence.
	Exits []int

	seq disasm.Stream
}

// Insts returns the block's instructions as a view of the sequence.
func (b *BasicBlock) Insts() disasm.Stream { return b.seq[b.Start:b.End] }

// Offset returns the byte offset of the first instruction.
func (b *BasicBlock) Offset() int { return b.seq[b.Start].Offset }

// Size returns the byte size of the block.
func (b *BasicBlock) Size() int { return b.seq[b.End-1].End() - b.Offset() }

// Last returns the instruction that closes the block.
func (b *BasicBlock) Last() disasm.Inst { return b.seq[b.End-1] }

// EdgeKind labels why control moves between two blocks.
type EdgeKind int

const (
	EdgeFallthrough EdgeKind = iota
	EdgeTaken
	EdgeGoto
	EdgeCase
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeTaken:
		return "taken"
	case EdgeGoto:
		return "goto"
	case EdgeCase:
		return "case"
	}
	return "fallthrough"
}

// Edge connects two blocks by ID.
type Edge struct {
	From int
	To   int
	Kind EdgeKind
}

// ControlFlowGraph is the block graph reachable from Entry inside one
// instruction sequence. Blocks are sorted by offset and Blocks[i].ID == i.
type ControlFlowGraph struct {
	Entry    int
	Sequence disasm.Stream
	Blocks   []*BasicBlock
	Edges    []Edge
}

// EntryBlock returns the block starting at the entry offset.
func (g *ControlFlowGraph) EntryBlock() *BasicBlock {
	b, _ := g.BlockOf(g.Entry)
	return b
}

// InstructionAt returns the instruction starting at off.
func (g *ControlFlowGraph) InstructionAt(off int) (disasm.Inst, bool) {
	i, ok := g.Sequence.Index(off)
	if !ok {
		return disasm.Inst{}, false
	}
	return g.Sequence[i], true
}

// BlockOf returns the block whose byte range holds off.
func (g *ControlFlowGraph) BlockOf(off int) (*BasicBlock, bool) {
	i := sort.Search(len(g.Blocks), func(i int) bool { return g.Blocks[i].Offset() > off }) - 1
	if i < 0 {
		return nil, false
	}
	b := g.Blocks[i]
	if off >= b.Offset()+b.Size() {
		return nil, false
	}
	return b, true
}

// Successors returns the outgoing edges of block id in creation order.
func (g *ControlFlowGraph) Successors(id int) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// HasSelfLoop reports whether some block branches to itself.
func (g *ControlFlowGraph) HasSelfLoop() bool {
	for _, e := range g.Edges {
		if e.From == e.To {
			return true
		}
	}
	return false
}

// CFGAnalyser builds a control-flow graph for one instruction sequence.
// buf is the buffer the sequence was decoded from; switch payloads are
// read from it.
type CFGAnalyser interface {
	BuildCFG(buf []byte, seq disasm.Stream, entry int) (*ControlFlowGraph, error)
}

// BFSBuilder builds graphs breadth first, splitting blocks when a branch
// lands inside one.
type BFSBuilder struct {
	Decoder *disasm.Decoder
}

var _ CFGAnalyser = (*BFSBuilder)(nil)

type pendingEdge struct {
	src  int // index of the branching instruction
	dst  int // index of the first target instruction
	kind EdgeKind
}

type cfgBuild struct {
	buf     []byte
	seq     disasm.Stream
	dec     *disasm.Decoder
	order   []*BasicBlock // sorted by Start
	blockAt map[int]*BasicBlock
	queue   []*BasicBlock
	pending []pendingEdge
}

// BuildCFG explores seq from entry. Branch targets outside seq, or not on
// an instruction boundary, are recorded as block exits.
func (b *BFSBuilder) BuildCFG(buf []byte, seq disasm.Stream, entry int) (*ControlFlowGraph, error) {
	if len(seq) == 0 {
		return nil, fmt.Errorf("%w: empty instruction sequence", disasm.ErrInvalidArgument)
	}
	first, ok := seq.Index(entry)
	if !ok {
		return nil, fmt.Errorf("%w: entry 0x%x is not an instruction of the sequence", disasm.ErrInvalidArgument, entry)
	}

	cb := &cfgBuild{buf: buf, seq: seq, dec: b.Decoder, blockAt: make(map[int]*BasicBlock)}
	cb.newBlock(first)
	for len(cb.queue) > 0 {
		blk := cb.queue[0]
		cb.queue = cb.queue[1:]
		cb.fill(blk)
	}

	g := &ControlFlowGraph{Entry: entry, Sequence: seq, Blocks: cb.order}
	for i, blk := range g.Blocks {
		blk.ID = i
	}
	for _, p := range cb.pending {
		g.Edges = append(g.Edges, Edge{From: cb.containing(p.src).ID, To: cb.blockAt[p.dst].ID, Kind: p.kind})
	}
	return g, nil
}

func (cb *cfgBuild) newBlock(idx int) *BasicBlock {
	blk := &BasicBlock{Start: idx, End: idx, seq: cb.seq}
	cb.register(blk)
	cb.queue = append(cb.queue, blk)
	return blk
}

func (cb *cfgBuild) register(blk *BasicBlock) {
	i := sort.Search(len(cb.order), func(i int) bool { return cb.order[i].Start > blk.Start })
	cb.order = append(cb.order, nil)
	copy(cb.order[i+1:], cb.order[i:])
	cb.order[i] = blk
	cb.blockAt[blk.Start] = blk
}

// containing returns the filled block holding instruction idx, or nil.
func (cb *cfgBuild) containing(idx int) *BasicBlock {
	i := sort.Search(len(cb.order), func(i int) bool { return cb.order[i].Start > idx }) - 1
	if i < 0 {
		return nil
	}
	if blk := cb.order[i]; idx < blk.End {
		return blk
	}
	return nil
}

// target returns the block starting at idx, splitting or creating one.
func (cb *cfgBuild) target(idx int) *BasicBlock {
	if blk, ok := cb.blockAt[idx]; ok {
		return blk
	}
	if outer := cb.containing(idx); outer != nil {
		return cb.split(outer, idx)
	}
	return cb.newBlock(idx)
}

// split cuts blk before instruction idx. The suffix inherits the closing
// instruction and its exits; the prefix falls through into it.
func (cb *cfgBuild) split(blk *BasicBlock, idx int) *BasicBlock {
	suffix := &BasicBlock{Start: idx, End: blk.End, Type: blk.Type, Exits: blk.Exits, seq: cb.seq}
	blk.End, blk.Type, blk.Exits = idx, BlockUnknown, nil
	cb.register(suffix)
	cb.pending = append(cb.pending, pendingEdge{src: idx - 1, dst: idx, kind: EdgeFallthrough})
	return suffix
}

func (cb *cfgBuild) fill(blk *BasicBlock) {
	i := blk.Start
	for {
		in := cb.seq[i]
		i++
		if in.Flow().Terminal() || i == len(cb.seq) {
			break
		}
		if _, known := cb.blockAt[i]; known {
			break
		}
	}
	blk.End = i
	last := cb.seq[i-1]
	blk.Type = blockTypeOf(last)

	src := i - 1
	switch blk.Type {
	case BlockGoto:
		cb.link(blk, src, last.Target, EdgeGoto)
	case BlockIf:
		cb.link(blk, src, last.Target, EdgeTaken)
		cb.link(blk, src, last.End(), EdgeFallthrough)
	case BlockSwitch:
		seen := map[int]bool{last.End(): true}
		cb.link(blk, src, last.End(), EdgeFallthrough)
		for _, t := range cb.switchTargets(last) {
			if seen[t] {
				continue
			}
			seen[t] = true
			cb.link(blk, src, t, EdgeCase)
		}
	case BlockReturn, BlockThrow:
	default:
		cb.link(blk, src, last.End(), EdgeFallthrough)
	}
}

// link records an edge from the instruction at src to the instruction at
// offset off, or an exit of blk when off is not in the sequence.
func (cb *cfgBuild) link(blk *BasicBlock, src, off int, kind EdgeKind) {
	idx, ok := cb.seq.Index(off)
	if !ok {
		// blk may have been split by an earlier link; exits follow the
		// closing instruction.
		if owner := cb.containing(src); owner != nil {
			blk = owner
		}
		blk.Exits = append(blk.Exits, off)
		return
	}
	cb.target(idx)
	cb.pending = append(cb.pending, pendingEdge{src: src, dst: idx, kind: kind})
}

func (cb *cfgBuild) switchTargets(sw disasm.Inst) []int {
	if cb.dec == nil || cb.buf == nil {
		return nil
	}
	pl, err := cb.dec.DecodeAt(cb.buf, sw.Target)
	if err != nil || pl.Payload == nil || !pl.Payload.Matches(sw.Op) {
		slog.Debug("Unresolved switch payload", "switch", sw.Offset, "payload", sw.Target, "error", err)
		return nil
	}
	return pl.Payload.SwitchTargets(sw.Offset)
}
