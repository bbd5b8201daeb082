package disasm

import (
	"fmt"
	"strconv"
	"strings"
)

func hex(v uint64) string { return "0x" + strconv.FormatUint(v, 16) }

func signedHex(v int) string {
	if v < 0 {
		return "-" + hex(uint64(-v))
	}
	return hex(uint64(v))
}

// Mnemonic returns the instruction name.
func (i Inst) Mnemonic() string {
	if i.Payload != nil {
		return i.Payload.Kind.String()
	}
	return i.Info.Name
}

// Operands renders the operand list in smali-like syntax.
func (i Inst) Operands() string {
	if i.Payload != nil {
		return payloadOperands(i.Payload)
	}
	var parts []string
	switch i.Info.Format {
	case Format35c, Format45cc, Format3rc, Format4rcc:
		parts = append(parts, regList(i.Regs, i.RegRange))
	default:
		for _, r := range i.Regs {
			parts = append(parts, "v"+strconv.FormatUint(uint64(r), 10))
		}
	}
	if i.HasLiteral {
		parts = append(parts, "#"+strconv.FormatInt(i.Literal, 10))
	}
	if i.HasTarget {
		parts = append(parts, signedHex(i.Target))
	}
	if i.Ref != nil {
		parts = append(parts, i.Ref.String())
	}
	if i.Ref2 != nil {
		parts = append(parts, i.Ref2.String())
	}
	return strings.Join(parts, ", ")
}

func regList(regs []uint32, isRange bool) string {
	if len(regs) == 0 {
		return "{}"
	}
	if isRange {
		return fmt.Sprintf("{v%d .. v%d}", regs[0], regs[len(regs)-1])
	}
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = "v" + strconv.FormatUint(uint64(r), 10)
	}
	return "{" + strings.Join(names, ", ") + "}"
}

func payloadOperands(p *Payload) string {
	switch p.Kind {
	case FillArrayPayload:
		return fmt.Sprintf("width=%d, count=%d", p.Width, p.Count)
	default:
		cases := make([]string, len(p.Keys))
		for i := range p.Keys {
			cases[i] = fmt.Sprintf("%d:%+d", p.Keys[i], p.Targets[i])
		}
		return "[" + strings.Join(cases, " ") + "]"
	}
}

// String renders "mnemonic operands".
func (i Inst) String() string {
	ops := i.Operands()
	if ops == "" {
		return i.Mnemonic()
	}
	return i.Mnemonic() + " " + ops
}

// Hex renders the encoded bytes as space separated pairs. Long payloads
// are elided after 16 bytes.
func (i Inst) Hex() string {
	const limit = 16
	n := len(i.Raw)
	if n > limit {
		n = limit
	}
	var sb strings.Builder
	for k := 0; k < n; k++ {
		if k > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02x", i.Raw[k])
	}
	if len(i.Raw) > limit {
		sb.WriteString(" ..")
	}
	return sb.String()
}

// Line renders one listing line: address, hex bytes, instruction. The
// address is the instruction offset plus base.
func (i Inst) Line(base int) string {
	return fmt.Sprintf("%08x  %-20s %s", base+i.Offset, i.Hex(), i.String())
}

// String renders the stream as a listing with one instruction per line.
func (s Stream) String() string { return s.Listing(0) }

// Listing renders the stream with addresses relative to base.
func (s Stream) Listing(base int) string {
	var sb strings.Builder
	for _, in := range s {
		sb.WriteString(in.Line(base))
		sb.WriteByte('\n')
	}
	return sb.String()
}
