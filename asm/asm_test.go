package asm

import (
	"bytes"
	"testing"

	"github.com/hcbscript/hcbvm/isa"
)

func encodeAll(insts []isa.Instruction) []byte {
	var out []byte
	for _, inst := range insts {
		out = append(out, inst.Encode()...)
	}
	return out
}

func TestDisassembleAssembleRoundTrip(t *testing.T) {
	// InitStack 0 1; PushI8 7; PopStack 0; PushI8 0; Jz <addr of the
	// PushI32>; PushI8 1; Ret; PushI32 2; RetV — the Jz target must come
	// back out of Disassemble as a label and reassemble to the same offset.
	draft := []isa.Instruction{
		{Op: isa.InitStack, Argc: 0, Localc: 1},
		{Op: isa.PushI8, I8: 7},
		{Op: isa.PopStack, Idx: 0},
		{Op: isa.PushI8, I8: 0},
		{Op: isa.Jz, Target: 0}, // resolved below
		{Op: isa.PushI8, I8: 1},
		{Op: isa.Ret},
		{Op: isa.PushI32, I32: 2},
		{Op: isa.RetV},
	}
	addr := uint32(0)
	offsets := make([]uint32, len(draft))
	for i, inst := range draft {
		offsets[i] = addr
		addr += uint32(len(inst.Encode()))
	}
	pushI32Addr := offsets[7]

	insts := []isa.Instruction{
		{Op: isa.InitStack, Argc: 0, Localc: 1},
		{Op: isa.PushI8, I8: 7},
		{Op: isa.PopStack, Idx: 0},
		{Op: isa.PushI8, I8: 0},
		{Op: isa.Jz, Target: pushI32Addr},
		{Op: isa.PushI8, I8: 1},
		{Op: isa.Ret},
		{Op: isa.PushI32, I32: 2},
		{Op: isa.RetV},
	}
	code := encodeAll(insts)

	text, err := Disassemble(code)
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}

	got, err := Assemble(text)
	if err != nil {
		t.Fatalf("Assemble: %v\nsource:\n%s", err, text)
	}

	if !bytes.Equal(got, code) {
		t.Errorf("round trip mismatch:\nsource:\n%s\ngot  % X\nwant % X", text, got, code)
	}
}

func TestAssembleNumericTarget(t *testing.T) {
	src := "\tjmp 0x00000005\n\tnop\n"
	got, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := append([]byte{byte(isa.Jmp), 5, 0, 0, 0}, byte(isa.Nop))
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestAssembleUnresolvedLabel(t *testing.T) {
	_, err := Assemble("\tjmp Lnever\n")
	if err == nil {
		t.Fatal("expected error for unresolved label")
	}
}

func TestAssemblePushStringAndFloat(t *testing.T) {
	src := "\tpush.str \"hi\\n\"\n\tpush.f32 -1.5\n"
	got, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := encodeAll([]isa.Instruction{
		{Op: isa.PushString, Str: "hi\n"},
		{Op: isa.PushF32, F32: -1.5},
	})
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}

func TestAssembleNegativeLocalIndex(t *testing.T) {
	src := "\tpush.local -1\n"
	got, err := Assemble(src)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	want := isa.Instruction{Op: isa.PushStack, Idx: -1}.Encode()
	if !bytes.Equal(got, want) {
		t.Errorf("got % X, want % X", got, want)
	}
}
