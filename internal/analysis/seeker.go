package analysis

import (
	"fmt"

	"topper/internal/disasm"
)

// Pivot is the instruction every gadget ends with.
type Pivot struct {
	Op   disasm.Opcode
	Info disasm.OpInfo
}

// ResolvePivot looks up a pivot mnemonic in an opcode table.
func ResolvePivot(tbl *disasm.OpTable, name string) (Pivot, error) {
	op, ok := tbl.ByName(name)
	if !ok {
		return Pivot{}, fmt.Errorf("%w: pivot %q is not an opcode of dex %03d", disasm.ErrInvalidArgument, name, tbl.Version)
	}
	info, _ := tbl.Lookup(op)
	return Pivot{Op: op, Info: info}, nil
}

// Size returns the encoded pivot size in bytes.
func (p Pivot) Size() int { return p.Info.Size() }

func (p Pivot) String() string { return p.Info.Name }

// SeekPivots returns, in ascending order, every offset holding the pivot
// opcode byte with room for a complete pivot instruction. It works on raw
// bytes and never decodes.
func SeekPivots(buf []byte, p Pivot) []int {
	out := []int{}
	size := p.Size()
	if size == 0 {
		return out
	}
	for i := 0; i+size <= len(buf); i++ {
		if disasm.Opcode(buf[i]) == p.Op {
			out = append(out, i)
		}
	}
	return out
}
