package disasm

import (
	"encoding/binary"
	"fmt"
)

// Decoder decodes Dalvik instructions from untrusted byte buffers. A
// Decoder holds no per-buffer state and is safe for concurrent use.
type Decoder struct {
	Table *OpTable
	// NopUnknown replaces unassigned opcodes by a one-unit nop instead of
	// failing. Raw memory rarely decodes cleanly at every alignment.
	NopUnknown bool
	// Symbols resolves constant pool indices. Optional.
	Symbols SymbolResolver
}

// NewDecoder returns a decoder for the given dex version.
func NewDecoder(version int, nopUnknown bool, symbols SymbolResolver) (*Decoder, error) {
	t, err := Table(version)
	if err != nil {
		return nil, err
	}
	return &Decoder{Table: t, NopUnknown: nopUnknown, Symbols: symbols}, nil
}

// DecodeAt decodes exactly one instruction starting at off.
func (d *Decoder) DecodeAt(buf []byte, off int) (Inst, error) {
	return d.decode(buf, off, len(buf))
}

// DecodeWindow decodes one instruction at start without reading at or
// beyond end.
func (d *Decoder) DecodeWindow(buf []byte, start, end int) (Inst, error) {
	if start < 0 || end > len(buf) || start >= end {
		return Inst{}, &DecodeError{Offset: start, Err: ErrInvalidArgument,
			Detail: fmt.Sprintf("window [%d,%d) outside buffer of %d bytes", start, end, len(buf))}
	}
	return d.decode(buf, start, end)
}

// DecodeAll decodes buf instruction by instruction until it is exhausted.
// An empty buffer yields an empty stream. Any failure aborts the decode.
func (d *Decoder) DecodeAll(buf []byte) (Stream, error) {
	if len(buf)%2 != 0 {
		return nil, fmt.Errorf("%w: odd buffer length %d", ErrInvalidArgument, len(buf))
	}
	out := Stream{}
	for off := 0; off < len(buf); {
		in, err := d.DecodeAt(buf, off)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		off = in.End()
	}
	return out, nil
}

// DecodeRange decodes consecutive instructions in [start, end).
func (d *Decoder) DecodeRange(buf []byte, start, end int) (Stream, error) {
	if start < 0 || end > len(buf) || start > end {
		return nil, fmt.Errorf("%w: range [%d,%d) outside buffer of %d bytes", ErrInvalidArgument, start, end, len(buf))
	}
	if (end-start)%2 != 0 {
		return nil, fmt.Errorf("%w: odd range length %d", ErrInvalidArgument, end-start)
	}
	out := Stream{}
	for off := start; off < end; {
		in, err := d.decode(buf, off, end)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		off = in.End()
	}
	return out, nil
}

var substitutedNop = OpInfo{Name: "nop", Format: Format10x}

func (d *Decoder) decode(buf []byte, off, end int) (Inst, error) {
	if off < 0 || off >= end {
		return Inst{}, &DecodeError{Offset: off, Err: ErrOutOfBounds,
			Detail: fmt.Sprintf("offset outside [0,%d)", end)}
	}
	op := Opcode(buf[off])
	if end-off < 2 {
		return Inst{}, boundsErr(off, op, 2, end-off)
	}
	hi := buf[off+1]

	if op == OpNop && hi >= payloadPackedSwitch && hi <= payloadFillArray {
		return d.decodePayload(buf, off, end, hi)
	}

	info, ok := d.Table.Lookup(op)
	if !ok {
		if d.NopUnknown {
			return Inst{Offset: off, Raw: buf[off : off+2 : off+2], Op: OpNop, Info: substitutedNop, Substituted: true}, nil
		}
		return Inst{}, formatErr(off, op, "unassigned opcode")
	}
	size := info.Size()
	if end-off < size {
		return Inst{}, boundsErr(off, op, size, end-off)
	}

	raw := buf[off : off+size : off+size]
	in := Inst{Offset: off, Raw: raw, Op: op, Info: info}
	unit := func(i int) uint32 { return uint32(binary.LittleEndian.Uint16(raw[2*i:])) }
	word := func(i int) uint32 { return binary.LittleEndian.Uint32(raw[2*i:]) }
	a4, b4, aa := uint32(hi&0x0f), uint32(hi>>4), uint32(hi)

	switch info.Format {
	case Format10x:
	case Format12x:
		in.Regs = []uint32{a4, b4}
	case Format11n:
		in.Regs = []uint32{a4}
		in.setLiteral(int64(int8(hi) >> 4))
	case Format11x:
		in.Regs = []uint32{aa}
	case Format10t:
		in.setTarget(int64(int8(hi)))
	case Format20t:
		in.setTarget(int64(int16(unit(1))))
	case Format22x:
		in.Regs = []uint32{aa, unit(1)}
	case Format21t:
		in.Regs = []uint32{aa}
		in.setTarget(int64(int16(unit(1))))
	case Format21s:
		in.Regs = []uint32{aa}
		in.setLiteral(int64(int16(unit(1))))
	case Format21h:
		in.Regs = []uint32{aa}
		if info.Name == "const-wide/high16" {
			in.setLiteral(int64(uint64(unit(1)) << 48))
		} else {
			in.setLiteral(int64(int32(unit(1) << 16)))
		}
	case Format21c:
		in.Regs = []uint32{aa}
		in.Ref = d.ref(info.Ref, unit(1))
	case Format23x:
		in.Regs = []uint32{aa, uint32(raw[2]), uint32(raw[3])}
	case Format22b:
		in.Regs = []uint32{aa, uint32(raw[2])}
		in.setLiteral(int64(int8(raw[3])))
	case Format22t:
		in.Regs = []uint32{a4, b4}
		in.setTarget(int64(int16(unit(1))))
	case Format22s:
		in.Regs = []uint32{a4, b4}
		in.setLiteral(int64(int16(unit(1))))
	case Format22c:
		in.Regs = []uint32{a4, b4}
		in.Ref = d.ref(info.Ref, unit(1))
	case Format30t:
		in.setTarget(int64(int32(word(1))))
	case Format32x:
		in.Regs = []uint32{unit(1), unit(2)}
	case Format31i:
		in.Regs = []uint32{aa}
		in.setLiteral(int64(int32(word(1))))
	case Format31t:
		in.Regs = []uint32{aa}
		in.setTarget(int64(int32(word(1))))
	case Format31c:
		in.Regs = []uint32{aa}
		in.Ref = d.ref(info.Ref, word(1))
	case Format35c, Format45cc:
		regs, err := listRegs(off, op, b4, a4, unit(2))
		if err != nil {
			return Inst{}, err
		}
		if info.Format == Format45cc && len(regs) == 0 {
			return Inst{}, formatErr(off, op, "invoke-polymorphic needs a receiver")
		}
		in.Regs = regs
		in.Ref = d.ref(info.Ref, unit(1))
		if info.Format == Format45cc {
			in.Ref2 = d.ref(info.Ref2, unit(3))
		}
	case Format3rc, Format4rcc:
		first := unit(2)
		if uint64(first)+uint64(aa) > 0x10000 {
			return Inst{}, formatErr(off, op, "register range v%d+%d exceeds 65535", first, aa)
		}
		in.Regs = make([]uint32, aa)
		for i := range in.Regs {
			in.Regs[i] = first + uint32(i)
		}
		in.RegRange = true
		in.Ref = d.ref(info.Ref, unit(1))
		if info.Format == Format4rcc {
			in.Ref2 = d.ref(info.Ref2, unit(3))
		}
	case Format51l:
		in.Regs = []uint32{aa}
		in.setLiteral(int64(binary.LittleEndian.Uint64(raw[2:])))
	default:
		return Inst{}, formatErr(off, op, "unsupported format %s", info.Format)
	}
	return in, nil
}

// listRegs unpacks the A|G and F|E|D|C nibbles of 35c and 45cc.
func listRegs(off int, op Opcode, count, g, fedc uint32) ([]uint32, error) {
	if count > 5 {
		return nil, formatErr(off, op, "register count %d exceeds 5", count)
	}
	all := [5]uint32{fedc & 0xf, (fedc >> 4) & 0xf, (fedc >> 8) & 0xf, fedc >> 12, g}
	regs := make([]uint32, count)
	copy(regs, all[:count])
	return regs, nil
}

func (i *Inst) setLiteral(v int64) {
	i.Literal, i.HasLiteral = v, true
}

// setTarget records a branch target given in code units relative to the
// instruction.
func (i *Inst) setTarget(units int64) {
	i.Target, i.HasTarget = i.Offset+int(units*2), true
}

func (d *Decoder) ref(kind RefKind, index uint32) *Ref {
	if kind == RefNone {
		return nil
	}
	r := &Ref{Kind: kind, Index: index}
	if d.Symbols != nil {
		if v, ok := d.Symbols.Resolve(kind, index); ok {
			r.Value, r.Resolved = v, true
		}
	}
	return r
}
