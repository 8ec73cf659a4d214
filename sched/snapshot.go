package sched

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/hcbscript/hcbvm/value"
	"github.com/hcbscript/hcbvm/vm"
)

// Snapshot/Restore serialise the scheduler's entire live state via
// encoding/gob: the idiomatic stdlib analogue of the teacher's hand-rolled
// magic+gzip save-state format (debug_snapshot.go), needing no schema file
// since both ends are the same Go program. Variant's fields are private,
// so every value crosses the boundary through a small exported DTO built
// with Variant's own accessors; *value.Table pointer identity is
// preserved by allocating each distinct table an integer id once, up
// front, via a worklist over every reachable Variant.

type snapVariant struct {
	Kind    value.Kind
	Bool    bool
	Int     int32
	Float   float32
	Str     string
	TableID int // 0 only ever appears on a non-Table variant; FromTable never wraps nil.
}

type snapTable struct {
	ID      int
	Entries map[int32]snapVariant
}

type snapFrame struct {
	Argc, Localc uint8
	Base         int
	SavedPC      uint32
}

type snapThread struct {
	ID              uint32
	PC              uint32
	Stack           []snapVariant
	Frames          []snapFrame
	ReturnReg       snapVariant
	State           vm.ThreadState
	WaitDeadline    uint32
	PendingReturnPC uint32
}

type snapRequest struct {
	Kind requestKind
}

type snapState struct {
	Now      uint32
	Requests []snapRequest
	Globals  []snapVariant
	Tables   []snapTable
	Threads  []snapThread
}

// Snapshot encodes the scheduler's entire state — tick count, pending
// requests, globals, every thread's stack/frames/PC, and every reachable
// table — into a single gob-encoded blob.
func (s *Scheduler) Snapshot() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tableIDs := map[*value.Table]int{}
	var tables []*value.Table

	var walk func(v value.Variant)
	walk = func(v value.Variant) {
		if v.Kind() != value.KindTable {
			return
		}
		t := v.AsTable()
		if t == nil {
			return
		}
		if _, seen := tableIDs[t]; seen {
			return
		}
		tableIDs[t] = len(tables) + 1
		tables = append(tables, t)
		for _, ev := range t.Entries() {
			walk(ev)
		}
	}

	for _, v := range s.globals.Slots() {
		walk(v)
	}
	ids := s.sortedIDsLocked()
	for _, id := range ids {
		th := s.threads[id]
		for _, v := range th.Stack.Values() {
			walk(v)
		}
		walk(th.ReturnReg)
	}

	toSnap := func(v value.Variant) snapVariant {
		sv := snapVariant{Kind: v.Kind()}
		switch v.Kind() {
		case value.KindBool:
			sv.Bool = v.AsBool()
		case value.KindInt:
			sv.Int = v.AsInt()
		case value.KindFloat:
			sv.Float = v.AsFloat()
		case value.KindString:
			sv.Str = v.AsString()
		case value.KindTable:
			sv.TableID = tableIDs[v.AsTable()]
		}
		return sv
	}

	snapTables := make([]snapTable, len(tables))
	for i, t := range tables {
		entries := make(map[int32]snapVariant, t.Len())
		for k, v := range t.Entries() {
			entries[k] = toSnap(v)
		}
		snapTables[i] = snapTable{ID: i + 1, Entries: entries}
	}

	globalSlots := s.globals.Slots()
	globalsSnap := make([]snapVariant, len(globalSlots))
	for i, v := range globalSlots {
		globalsSnap[i] = toSnap(v)
	}

	threadsSnap := make([]snapThread, 0, len(ids))
	for _, id := range ids {
		th := s.threads[id]
		stackVals := th.Stack.Values()
		stackSnap := make([]snapVariant, len(stackVals))
		for i, v := range stackVals {
			stackSnap[i] = toSnap(v)
		}
		frames := make([]snapFrame, len(th.Frames))
		for i, f := range th.Frames {
			frames[i] = snapFrame{Argc: f.Argc, Localc: f.Localc, Base: f.Base, SavedPC: f.SavedPC}
		}
		threadsSnap = append(threadsSnap, snapThread{
			ID:              th.ID,
			PC:              th.PC,
			Stack:           stackSnap,
			Frames:          frames,
			ReturnReg:       toSnap(th.ReturnReg),
			State:           th.State,
			WaitDeadline:    th.WaitDeadline,
			PendingReturnPC: th.PendingReturnPC(),
		})
	}

	reqSnap := make([]snapRequest, len(s.requests))
	for i, r := range s.requests {
		reqSnap[i] = snapRequest{Kind: r.kind}
	}

	state := snapState{
		Now:      s.now,
		Requests: reqSnap,
		Globals:  globalsSnap,
		Tables:   snapTables,
		Threads:  threadsSnap,
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(&state); err != nil {
		return nil, fmt.Errorf("sched: snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Restore replaces the scheduler's entire live state with the contents of
// a blob produced by Snapshot, rebuilding every table before populating
// any of their entries so that cross-table and self references resolve
// correctly regardless of encounter order.
func (s *Scheduler) Restore(data []byte) error {
	var state snapState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return fmt.Errorf("sched: restore: %w", err)
	}

	maxID := 0
	for _, st := range state.Tables {
		if st.ID > maxID {
			maxID = st.ID
		}
	}
	tables := make([]*value.Table, maxID+1)
	for _, st := range state.Tables {
		tables[st.ID] = value.NewTable()
	}

	fromSnap := func(sv snapVariant) value.Variant {
		switch sv.Kind {
		case value.KindBool:
			return value.Bool(sv.Bool)
		case value.KindInt:
			return value.Int(sv.Int)
		case value.KindFloat:
			return value.Float(sv.Float)
		case value.KindString:
			return value.Str(sv.Str)
		case value.KindTable:
			return value.FromTable(tables[sv.TableID])
		default:
			return value.Nil()
		}
	}

	for _, st := range state.Tables {
		t := tables[st.ID]
		for k, sv := range st.Entries {
			t.Set(k, fromSnap(sv))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	globalSlots := make([]value.Variant, len(state.Globals))
	for i, sv := range state.Globals {
		globalSlots[i] = fromSnap(sv)
	}
	if err := s.globals.Restore(globalSlots); err != nil {
		return fmt.Errorf("sched: restore globals: %w", err)
	}

	threads := make(map[uint32]*vm.Thread, len(state.Threads))
	for _, ts := range state.Threads {
		th := vm.NewThread(ts.ID, ts.PC)
		stackVals := make([]value.Variant, len(ts.Stack))
		for i, sv := range ts.Stack {
			stackVals[i] = fromSnap(sv)
		}
		th.Stack.Restore(stackVals)
		frames := make([]vm.Frame, len(ts.Frames))
		for i, f := range ts.Frames {
			frames[i] = vm.Frame{Argc: f.Argc, Localc: f.Localc, Base: f.Base, SavedPC: f.SavedPC}
		}
		th.Frames = frames
		th.ReturnReg = fromSnap(ts.ReturnReg)
		th.State = ts.State
		th.WaitDeadline = ts.WaitDeadline
		th.SetPendingReturnPC(ts.PendingReturnPC)
		threads[ts.ID] = th
	}
	s.threads = threads

	requests := make([]request, len(state.Requests))
	for i, r := range state.Requests {
		requests[i] = request{kind: r.Kind}
	}
	s.requests = requests
	s.now = state.Now
	return nil
}
