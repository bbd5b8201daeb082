// Package disasm decodes Dalvik bytecode and defines the instruction
// representation shared by the analysis packages.
package disasm

// Inst is one decoded Dalvik instruction.
type Inst struct {
	Offset int    // byte offset of the instruction in its buffer
	Raw    []byte // encoded bytes, a view into the decoded buffer
	Op     Opcode
	Info   OpInfo

	Regs       []uint32 // register operands in encoding order
	RegRange   bool     // Regs describe a {vCCCC .. vNNNN} range
	Literal    int64
	HasLiteral bool
	Target     int // absolute byte offset of a branch or payload target
	HasTarget  bool
	Ref        *Ref // constant pool reference
	Ref2       *Ref // second reference (proto of invoke-polymorphic)

	Payload     *Payload // set for payload pseudo-instructions
	Substituted bool     // unknown opcode replaced by nop in tolerant mode
}

// Size returns the encoded length in bytes.
func (i Inst) Size() int { return len(i.Raw) }

// End returns the offset of the byte following the instruction.
func (i Inst) End() int { return i.Offset + len(i.Raw) }

// Flow returns the control-flow class of the instruction.
func (i Inst) Flow() Flow {
	if i.Payload != nil || i.Substituted {
		return FlowNone
	}
	return i.Info.Flow
}

// Stream is a linear sequence of instructions.
type Stream []Inst

// Size returns the number of bytes covered by the stream.
func (s Stream) Size() int {
	n := 0
	for _, in := range s {
		n += in.Size()
	}
	return n
}

// Offset returns the offset of the first instruction, or -1 for an empty stream.
func (s Stream) Offset() int {
	if len(s) == 0 {
		return -1
	}
	return s[0].Offset
}

// End returns the offset following the last instruction, or -1 for an empty stream.
func (s Stream) End() int {
	if len(s) == 0 {
		return -1
	}
	return s[len(s)-1].End()
}

// Contiguous reports whether every instruction starts where the previous one ends.
func (s Stream) Contiguous() bool {
	for i := 1; i < len(s); i++ {
		if s[i].Offset != s[i-1].End() {
			return false
		}
	}
	return true
}

// Last returns the last instruction. It panics on an empty stream.
func (s Stream) Last() Inst { return s[len(s)-1] }

// Index returns the position of the instruction starting at off, using a
// binary search over the offsets.
func (s Stream) Index(off int) (int, bool) {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if s[mid].Offset < off {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s) && s[lo].Offset == off {
		return lo, true
	}
	return lo, false
}
