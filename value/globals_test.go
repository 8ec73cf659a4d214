package value

import "testing"

func TestGlobalTableDefaultsToZero(t *testing.T) {
	g := NewGlobalTable(2, 3)
	if g.Len() != 5 {
		t.Fatalf("want 5 slots, got %d", g.Len())
	}
	for i := uint16(0); i < 5; i++ {
		v, err := g.Get(i)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if v.Kind() != KindInt || v.AsInt() != 0 {
			t.Fatalf("unset slot %d should read Int(0), got %v", i, v)
		}
	}
}

func TestGlobalTableOutOfRange(t *testing.T) {
	g := NewGlobalTable(1, 1)
	if _, err := g.Get(2); err != ErrBadGlobalIndex {
		t.Fatalf("want ErrBadGlobalIndex, got %v", err)
	}
	if err := g.Set(2, Int(1)); err != ErrBadGlobalIndex {
		t.Fatalf("want ErrBadGlobalIndex, got %v", err)
	}
}

func TestGlobalTableSnapshotRoundTrip(t *testing.T) {
	g := NewGlobalTable(1, 1)
	if err := g.Set(0, Str("hi")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	slots := g.Slots()

	g2 := NewGlobalTable(1, 1)
	if err := g2.Restore(slots); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	v, _ := g2.Get(0)
	if v.AsString() != "hi" {
		t.Fatalf("restore mismatch: %v", v)
	}
}
