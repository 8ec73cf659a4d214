// Package value implements the scenario VM's tagged value type, its
// operand stack, and the global-variable table the scheduler hands to
// every running thread.
package value

import "fmt"

// Kind tags the active member of a Variant.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindTable:
		return "table"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Variant is the scenario VM's tagged value: Nil, Bool, Int32, Float32,
// Str, or Table. It is a plain struct rather than an interface{} so the
// interpreter's hot path never allocates or type-asserts.
type Variant struct {
	kind  Kind
	b     bool
	i     int32
	f     float32
	s     string
	table *Table
}

// Nil returns the Nil variant.
func Nil() Variant { return Variant{kind: KindNil} }

// Bool wraps a boolean.
func Bool(b bool) Variant { return Variant{kind: KindBool, b: b} }

// Int wraps a 32-bit signed integer.
func Int(i int32) Variant { return Variant{kind: KindInt, i: i} }

// Float wraps a 32-bit float.
func Float(f float32) Variant { return Variant{kind: KindFloat, f: f} }

// Str wraps a text value.
func Str(s string) Variant { return Variant{kind: KindString, s: s} }

// FromTable wraps a table reference. Table identity, not content, is what
// equality and the `…Table` opcodes key on.
func FromTable(t *Table) Variant { return Variant{kind: KindTable, table: t} }

// Kind reports which member is active.
func (v Variant) Kind() Kind { return v.kind }

// IsNil reports whether v is the Nil variant.
func (v Variant) IsNil() bool { return v.kind == KindNil }

// AsBool returns the boolean payload; only meaningful when Kind() == KindBool.
func (v Variant) AsBool() bool { return v.b }

// AsInt returns the int payload; only meaningful when Kind() == KindInt.
func (v Variant) AsInt() int32 { return v.i }

// AsFloat returns the float payload; only meaningful when Kind() == KindFloat.
func (v Variant) AsFloat() float32 { return v.f }

// AsString returns the text payload; only meaningful when Kind() == KindString.
func (v Variant) AsString() string { return v.s }

// AsTable returns the table payload; only meaningful when Kind() == KindTable.
func (v Variant) AsTable() *Table { return v.table }

// Truthy implements the engine's truthiness rule: Nil, Bool(false) and
// Int(0) are false, everything else — including Float(0) and the empty
// string — is true.
func (v Variant) Truthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.b
	case KindInt:
		return v.i != 0
	default:
		return true
	}
}

// SameIdentity reports whether a and b are the Table variant and refer to
// the same underlying table. Tables compare by identity everywhere in this
// VM, never by content.
func (v Variant) SameIdentity(o Variant) bool {
	return v.kind == KindTable && o.kind == KindTable && v.table == o.table
}

func (v Variant) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindTable:
		return fmt.Sprintf("table(%p)", v.table)
	default:
		return "<invalid>"
	}
}
