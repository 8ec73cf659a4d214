package isa

import "fmt"

// UnknownOpcodeError is raised whenever Decode meets a byte that isn't in
// the opcode table. The container loader treats it as fatal during its
// load-time validation pass; the interpreter treats it as a runtime fault
// confined to the offending thread when it's met lazily at a jump target.
type UnknownOpcodeError struct {
	Byte byte
	At   uint32
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("unknown opcode 0x%02X at offset %d", e.Byte, e.At)
}

// TruncatedError is raised when an instruction's operands run past the
// end of the bytecode region.
type TruncatedError struct {
	At uint32
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("truncated instruction at offset %d", e.At)
}
