package value

// Table is an interior-mutable int32-keyed map, reached through the
// PushGlobalTable/PopGlobalTable and PushLocalTable/PopLocalTable opcodes.
// Two Variant(Table) values are equal iff they wrap the same *Table — the
// engine never compares tables by content.
type Table struct {
	entries map[int32]Variant
}

// NewTable allocates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[int32]Variant)}
}

// Get returns table[key], or Nil if the key has never been written.
func (t *Table) Get(key int32) Variant {
	if v, ok := t.entries[key]; ok {
		return v
	}
	return Nil()
}

// Set writes table[key] = v.
func (t *Table) Set(key int32, v Variant) {
	t.entries[key] = v
}

// Len reports the number of keys currently populated. Exposed for
// snapshot/debug tooling, not part of the opcode semantics.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of the table's key/value pairs, used by the
// snapshot encoder.
func (t *Table) Entries() map[int32]Variant {
	out := make(map[int32]Variant, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}
