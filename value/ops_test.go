package value

import (
	"math"
	"testing"
)

func TestAddIntWraps(t *testing.T) {
	a := Int(math.MaxInt32)
	b := Int(1)
	got, err := Add(a, b)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.AsInt() != math.MinInt32 {
		t.Fatalf("want wrapped MinInt32, got %d", got.AsInt())
	}
}

func TestAddPromotesIntToFloat(t *testing.T) {
	got, err := Add(Int(2), Float(1.5))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.Kind() != KindFloat || got.AsFloat() != 3.5 {
		t.Fatalf("want Float(3.5), got %v", got)
	}
}

func TestAddStringConcat(t *testing.T) {
	got, err := Add(Str("hp: "), Int(7))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got.Kind() != KindString || got.AsString() != "hp: 7" {
		t.Fatalf("want \"hp: 7\", got %v", got)
	}
}

func TestAddTypeMismatch(t *testing.T) {
	if _, err := Add(Bool(true), Int(1)); err == nil {
		t.Fatal("expected TypeMismatch")
	}
}

func TestDivByZero(t *testing.T) {
	if _, err := Div(Int(4), Int(0)); err == nil {
		t.Fatal("expected DivByZero")
	}
	if _, err := Div(Float(4), Float(0)); err != nil {
		t.Fatalf("float div by zero must not trap: %v", err)
	}
}

func TestModTruncatesTowardZero(t *testing.T) {
	got, err := Mod(Int(-7), Int(3))
	if err != nil {
		t.Fatalf("Mod: %v", err)
	}
	if got.AsInt() != -1 {
		t.Fatalf("want -1, got %d", got.AsInt())
	}
}

func TestBitTest(t *testing.T) {
	got, err := BitTest(Int(0b1010), Int(1))
	if err != nil {
		t.Fatalf("BitTest: %v", err)
	}
	if !got.AsBool() {
		t.Fatal("bit 1 of 0b1010 should be set")
	}
	got, err = BitTest(Int(0b1010), Int(0))
	if err != nil {
		t.Fatalf("BitTest: %v", err)
	}
	if got.AsBool() {
		t.Fatal("bit 0 of 0b1010 should be clear")
	}
}

func TestCompareNumericCrossType(t *testing.T) {
	cmp, err := Compare(Int(3), Float(3.0))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp != 0 {
		t.Fatalf("want 3 == 3.0, got %d", cmp)
	}
}

func TestCompareStrings(t *testing.T) {
	cmp, err := Compare(Str("abc"), Str("abd"))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp != -1 {
		t.Fatalf("want -1, got %d", cmp)
	}
}

func TestCompareCrossTypeMismatch(t *testing.T) {
	if _, err := Compare(Str("x"), Int(1)); err == nil {
		t.Fatal("expected TypeMismatch comparing string to int")
	}
}

func TestCompareNaNIsTotal(t *testing.T) {
	nan := Float(float32(math.NaN()))
	// NaN must compare consistently (not panic, not "unordered") against
	// every other float, and equal to itself.
	if cmp, err := Compare(nan, nan); err != nil || cmp != 0 {
		t.Fatalf("NaN must equal itself under total order, got %d, %v", cmp, err)
	}
	if _, err := Compare(nan, Float(0)); err != nil {
		t.Fatalf("NaN vs 0 must not error: %v", err)
	}
}

func TestNegWrapping(t *testing.T) {
	got, err := Neg(Int(math.MinInt32))
	if err != nil {
		t.Fatalf("Neg: %v", err)
	}
	if got.AsInt() != math.MinInt32 {
		t.Fatalf("negating MinInt32 wraps to itself, got %d", got.AsInt())
	}
}

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Variant
		want bool
	}{
		{Nil(), false},
		{Bool(false), false},
		{Int(0), false},
		{Bool(true), true},
		{Int(1), true},
		{Float(0), true},
		{Str(""), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}
