package disasm

import (
	"encoding/binary"
)

// PayloadKind identifies a payload pseudo-instruction.
type PayloadKind uint8

// Payload idents, stored in the high byte of a nop.
const (
	payloadPackedSwitch = 0x01
	payloadSparseSwitch = 0x02
	payloadFillArray    = 0x03
)

const (
	PackedSwitchPayload PayloadKind = payloadPackedSwitch
	SparseSwitchPayload PayloadKind = payloadSparseSwitch
	FillArrayPayload    PayloadKind = payloadFillArray
)

func (k PayloadKind) String() string {
	switch k {
	case PackedSwitchPayload:
		return "packed-switch-payload"
	case SparseSwitchPayload:
		return "sparse-switch-payload"
	case FillArrayPayload:
		return "fill-array-data-payload"
	}
	return "unknown-payload"
}

// Payload is the data table referenced by a switch or fill-array-data.
type Payload struct {
	Kind PayloadKind
	// Keys holds the case keys. Packed switches store first_key plus i.
	Keys []int32
	// Targets holds case targets in code units relative to the switch.
	Targets []int32
	// Width and Count describe fill-array-data elements.
	Width int
	Count int
	Data  []byte
}

// SwitchTargets returns the absolute byte offsets of the case targets of a
// switch located at switchOff.
func (p *Payload) SwitchTargets(switchOff int) []int {
	out := make([]int, len(p.Targets))
	for i, t := range p.Targets {
		out[i] = switchOff + 2*int(t)
	}
	return out
}

// Matches reports whether the payload is the table kind a switch opcode
// expects.
func (p *Payload) Matches(op Opcode) bool {
	switch op {
	case OpPackedSwitch:
		return p.Kind == PackedSwitchPayload
	case OpSparseSwitch:
		return p.Kind == SparseSwitchPayload
	case OpFillArrayData:
		return p.Kind == FillArrayPayload
	}
	return false
}

func (d *Decoder) decodePayload(buf []byte, off, end int, ident uint8) (Inst, error) {
	avail := end - off
	header := 4
	if ident == payloadFillArray {
		header = 8
	}
	if avail < header {
		return Inst{}, boundsErr(off, OpNop, header, avail)
	}
	u16 := func(at int) uint64 { return uint64(binary.LittleEndian.Uint16(buf[off+at:])) }

	p := &Payload{Kind: PayloadKind(ident)}
	var units uint64
	switch ident {
	case payloadPackedSwitch:
		units = u16(2)*2 + 4
	case payloadSparseSwitch:
		units = u16(2)*4 + 2
	case payloadFillArray:
		w := u16(2)
		switch w {
		case 1, 2, 4, 8:
		default:
			return Inst{}, formatErr(off, OpNop, "fill-array-data element width %d", w)
		}
		n := uint64(binary.LittleEndian.Uint32(buf[off+4:]))
		units = (n*w+1)/2 + 4
		p.Width, p.Count = int(w), int(n)
	}
	size := units * 2
	if size > uint64(avail) {
		return Inst{}, boundsErr(off, OpNop, int(min(size, uint64(1)<<31)), avail)
	}
	raw := buf[off : off+int(size) : off+int(size)]
	i32 := func(at int) int32 { return int32(binary.LittleEndian.Uint32(raw[at:])) }

	switch ident {
	case payloadPackedSwitch:
		n := int(u16(2))
		first := i32(4)
		p.Keys = make([]int32, n)
		p.Targets = make([]int32, n)
		for i := 0; i < n; i++ {
			p.Keys[i] = first + int32(i)
			p.Targets[i] = i32(8 + 4*i)
		}
	case payloadSparseSwitch:
		n := int(u16(2))
		p.Keys = make([]int32, n)
		p.Targets = make([]int32, n)
		for i := 0; i < n; i++ {
			p.Keys[i] = i32(4 + 4*i)
			p.Targets[i] = i32(4 + 4*n + 4*i)
		}
	case payloadFillArray:
		p.Data = raw[8 : 8+p.Width*p.Count]
	}

	return Inst{
		Offset:  off,
		Raw:     raw,
		Op:      OpNop,
		Info:    OpInfo{Name: p.Kind.String(), MinVersion: Version35},
		Payload: p,
	}, nil
}
