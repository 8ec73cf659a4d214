package value

import "testing"

func TestStackPushPop(t *testing.T) {
	s := NewStack()
	s.Push(Int(1))
	s.Push(Int(2))
	v, err := s.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if v.AsInt() != 2 {
		t.Fatalf("want 2, got %d", v.AsInt())
	}
	if s.Len() != 1 {
		t.Fatalf("want len 1, got %d", s.Len())
	}
}

func TestStackUnderflow(t *testing.T) {
	s := NewStack()
	if _, err := s.Pop(); err != ErrStackUnderflow {
		t.Fatalf("want ErrStackUnderflow, got %v", err)
	}
}

func TestStackUnaryOpPreservesDepth(t *testing.T) {
	// push v; op (unary) should leave stack depth unchanged.
	s := NewStack()
	s.Push(Int(5))
	before := s.Len()
	v, _ := s.Pop()
	neg, err := Neg(v)
	if err != nil {
		t.Fatalf("Neg: %v", err)
	}
	s.Push(neg)
	if s.Len() != before {
		t.Fatalf("unary op changed stack depth: before=%d after=%d", before, s.Len())
	}
}

func TestStackTruncateAndGrowNil(t *testing.T) {
	s := NewStack()
	s.Push(Int(1))
	s.Push(Int(2))
	s.Push(Int(3))
	s.GrowNil(2)
	if s.Len() != 5 {
		t.Fatalf("want len 5, got %d", s.Len())
	}
	s.Truncate(1)
	if s.Len() != 1 {
		t.Fatalf("want len 1, got %d", s.Len())
	}
}
