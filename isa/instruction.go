package isa

import (
	"encoding/binary"
	"math"
)

// Instruction is a single decoded bytecode instruction: the opcode plus
// whichever operand fields that opcode's family uses. This is the tagged
// struct the VM's design deliberately prefers over one boxed type per
// opcode — a single decode/execute step can switch on Op exhaustively.
type Instruction struct {
	Op  Opcode
	At  uint32 // byte offset of the opcode itself
	Len uint32 // total encoded length, including the opcode byte

	// InitStack
	Argc   int8
	Localc int8

	// Call/Jmp/Jz
	Target uint32

	// Syscall, PushGlobal family
	U16 uint16

	// PushStack family (negative = argument, non-negative = local)
	Idx int8

	// Push immediate
	I8  int8
	I16 int16
	I32 int32
	F32 float32

	// PushString
	Str string
}

// Decode reads exactly one instruction starting at byte offset `at` within
// code. It never looks beyond `at` other than to read that instruction's
// own operands.
func Decode(code []byte, at uint32) (Instruction, error) {
	if int(at) >= len(code) {
		return Instruction{}, &TruncatedError{At: at}
	}
	op := Opcode(code[at])
	if !Known(op) {
		return Instruction{}, &UnknownOpcodeError{Byte: code[at], At: at}
	}

	inst := Instruction{Op: op, At: at}
	body := code[at+1:]

	need := func(n int) ([]byte, error) {
		if len(body) < n {
			return nil, &TruncatedError{At: at}
		}
		return body[:n], nil
	}

	switch op {
	case Nop, Ret, RetV, PushNil, PushTrue, PushTop, PushReturn,
		Neg, Add, Sub, Mul, Div, Mod, BitTest, And, Or,
		SetE, SetNE, SetG, SetGE, SetL, SetLE:
		inst.Len = 1

	case InitStack:
		b, err := need(2)
		if err != nil {
			return Instruction{}, err
		}
		inst.Argc = int8(b[0])
		inst.Localc = int8(b[1])
		inst.Len = 3

	case Call, Jmp, Jz:
		b, err := need(4)
		if err != nil {
			return Instruction{}, err
		}
		inst.Target = binary.LittleEndian.Uint32(b)
		inst.Len = 5

	case Syscall:
		b, err := need(2)
		if err != nil {
			return Instruction{}, err
		}
		inst.U16 = binary.LittleEndian.Uint16(b)
		inst.Len = 3

	case PushI8:
		b, err := need(1)
		if err != nil {
			return Instruction{}, err
		}
		inst.I8 = int8(b[0])
		inst.Len = 2

	case PushI16:
		b, err := need(2)
		if err != nil {
			return Instruction{}, err
		}
		inst.I16 = int16(binary.LittleEndian.Uint16(b))
		inst.Len = 3

	case PushI32:
		b, err := need(4)
		if err != nil {
			return Instruction{}, err
		}
		inst.I32 = int32(binary.LittleEndian.Uint32(b))
		inst.Len = 5

	case PushF32:
		b, err := need(4)
		if err != nil {
			return Instruction{}, err
		}
		inst.F32 = math.Float32frombits(binary.LittleEndian.Uint32(b))
		inst.Len = 5

	case PushString:
		lb, err := need(2)
		if err != nil {
			return Instruction{}, err
		}
		n := int(binary.LittleEndian.Uint16(lb))
		if len(body) < 2+n {
			return Instruction{}, &TruncatedError{At: at}
		}
		inst.Str = string(body[2 : 2+n])
		inst.Len = uint32(1 + 2 + n)

	case PushGlobal, PopGlobal, PushGlobalTable, PopGlobalTable:
		b, err := need(2)
		if err != nil {
			return Instruction{}, err
		}
		inst.U16 = binary.LittleEndian.Uint16(b)
		inst.Len = 3

	case PushStack, PopStack, PushLocalTable, PopLocalTable:
		b, err := need(1)
		if err != nil {
			return Instruction{}, err
		}
		inst.Idx = int8(b[0])
		inst.Len = 2
	}

	return inst, nil
}

// Encode is the exact inverse of Decode: re-emitting an Instruction's
// bytes must reproduce what Decode originally consumed.
func (inst Instruction) Encode() []byte {
	switch inst.Op {
	case InitStack:
		return []byte{byte(inst.Op), byte(inst.Argc), byte(inst.Localc)}

	case Call, Jmp, Jz:
		out := make([]byte, 5)
		out[0] = byte(inst.Op)
		binary.LittleEndian.PutUint32(out[1:], inst.Target)
		return out

	case Syscall:
		out := make([]byte, 3)
		out[0] = byte(inst.Op)
		binary.LittleEndian.PutUint16(out[1:], inst.U16)
		return out

	case PushI8:
		return []byte{byte(inst.Op), byte(inst.I8)}

	case PushI16:
		out := make([]byte, 3)
		out[0] = byte(inst.Op)
		binary.LittleEndian.PutUint16(out[1:], uint16(inst.I16))
		return out

	case PushI32:
		out := make([]byte, 5)
		out[0] = byte(inst.Op)
		binary.LittleEndian.PutUint32(out[1:], uint32(inst.I32))
		return out

	case PushF32:
		out := make([]byte, 5)
		out[0] = byte(inst.Op)
		binary.LittleEndian.PutUint32(out[1:], math.Float32bits(inst.F32))
		return out

	case PushString:
		out := make([]byte, 0, 3+len(inst.Str))
		out = append(out, byte(inst.Op))
		lenBuf := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenBuf, uint16(len(inst.Str)))
		out = append(out, lenBuf...)
		out = append(out, inst.Str...)
		return out

	case PushGlobal, PopGlobal, PushGlobalTable, PopGlobalTable:
		out := make([]byte, 3)
		out[0] = byte(inst.Op)
		binary.LittleEndian.PutUint16(out[1:], inst.U16)
		return out

	case PushStack, PopStack, PushLocalTable, PopLocalTable:
		return []byte{byte(inst.Op), byte(inst.Idx)}

	default:
		return []byte{byte(inst.Op)}
	}
}
