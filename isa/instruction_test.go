package isa

import (
	"bytes"
	"testing"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	cases := []Instruction{
		{Op: Nop},
		{Op: InitStack, Argc: 2, Localc: 3},
		{Op: InitStack, Argc: -1, Localc: 0},
		{Op: Call, Target: 0x1000},
		{Op: Jz, Target: 0x0A},
		{Op: Syscall, U16: 7},
		{Op: PushI8, I8: -5},
		{Op: PushI16, I16: -1000},
		{Op: PushI32, I32: -70000},
		{Op: PushF32, F32: 3.5},
		{Op: PushString, Str: "hello"},
		{Op: PushGlobal, U16: 12},
		{Op: PushStack, Idx: -1},
		{Op: PushStack, Idx: 0},
	}

	for _, want := range cases {
		encoded := want.Encode()
		got, err := Decode(encoded, 0)
		if err != nil {
			t.Fatalf("Decode(%v): %v", want.Op, err)
		}
		got.At = 0
		if got.Len != uint32(len(encoded)) {
			t.Fatalf("%v: Len mismatch: got %d want %d", want.Op, got.Len, len(encoded))
		}
		reencoded := got.Encode()
		if !bytes.Equal(reencoded, encoded) {
			t.Fatalf("%v: re-encode mismatch: got % X want % X", want.Op, reencoded, encoded)
		}
	}
}

func TestDecodeUnknownOpcode(t *testing.T) {
	_, err := Decode([]byte{0xFF}, 0)
	var uerr *UnknownOpcodeError
	if err == nil {
		t.Fatal("expected UnknownOpcodeError")
	}
	if !errorsAs(err, &uerr) {
		t.Fatalf("want UnknownOpcodeError, got %T", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	// Syscall needs 2 operand bytes, only supply one.
	_, err := Decode([]byte{byte(Syscall), 0x01}, 0)
	if err == nil {
		t.Fatal("expected TruncatedError")
	}
}

func TestMnemonicRoundTrip(t *testing.T) {
	for op, name := range mnemonics {
		got, ok := Lookup(name)
		if !ok {
			t.Fatalf("Lookup(%q) failed", name)
		}
		if got != op {
			t.Fatalf("Lookup(%q) = %v, want %v", name, got, op)
		}
	}
}

// errorsAs avoids importing errors just for this narrow assertion helper.
func errorsAs(err error, target **UnknownOpcodeError) bool {
	if e, ok := err.(*UnknownOpcodeError); ok {
		*target = e
		return true
	}
	return false
}
