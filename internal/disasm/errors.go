package disasm

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat reports an unassigned opcode or a malformed operand.
	ErrFormat = errors.New("invalid instruction format")
	// ErrOutOfBounds reports a read past the end of the buffer.
	ErrOutOfBounds = errors.New("read out of bounds")
	// ErrInvalidArgument reports a violated precondition.
	ErrInvalidArgument = errors.New("invalid argument")
)

// DecodeError locates a decoding failure.
type DecodeError struct {
	Offset int
	Opcode Opcode
	Detail string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("decode at 0x%x (opcode 0x%02x): %v: %s", e.Offset, uint8(e.Opcode), e.Err, e.Detail)
	}
	return fmt.Sprintf("decode at 0x%x (opcode 0x%02x): %v", e.Offset, uint8(e.Opcode), e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func formatErr(off int, op Opcode, format string, args ...interface{}) error {
	return &DecodeError{Offset: off, Opcode: op, Err: ErrFormat, Detail: fmt.Sprintf(format, args...)}
}

func boundsErr(off int, op Opcode, need, have int) error {
	return &DecodeError{Offset: off, Opcode: op, Err: ErrOutOfBounds,
		Detail: fmt.Sprintf("need %d bytes, %d available", need, have)}
}
