package vm

import "github.com/hcbscript/hcbvm/value"

// ThreadState is the scheduling state of a single logical script thread.
type ThreadState uint8

const (
	Ready ThreadState = iota
	WaitingTime
	WaitingSignal
	Exited
)

func (s ThreadState) String() string {
	switch s {
	case Ready:
		return "Ready"
	case WaitingTime:
		return "WaitingTime"
	case WaitingSignal:
		return "WaitingSignal"
	case Exited:
		return "Exited"
	default:
		return "Unknown"
	}
}

// Thread is one logical script thread: its own program counter, operand
// stack and frame chain, a single scalar return register, and its
// wait/suspend state. Threads never hold their own copy of the program
// bytecode or the global table — those are passed in at Step time so the
// scheduler can share one immutable Program and one GlobalTable across
// every thread it runs.
type Thread struct {
	ID           uint32
	PC           uint32
	Stack        *value.Stack
	Frames       []Frame
	ReturnReg    value.Variant
	State        ThreadState
	WaitDeadline uint32

	// pendingReturnPC is set by Call and consumed by the callee's first
	// InitStack, carrying the caller's resume address across the jump —
	// mirroring JSR64/RTS64's use of the stack pointer in the teacher's
	// CPU to stash and recover a return address around a call.
	pendingReturnPC uint32
}

// NewThread creates a fresh thread with an empty frame chain and PC at
// pc, ready to run. This is the shape both program entry and
// StartThread-spawned threads share.
func NewThread(id uint32, pc uint32) *Thread {
	return &Thread{
		ID:        id,
		PC:        pc,
		Stack:     value.NewStack(),
		ReturnReg: value.Nil(),
		State:     Ready,
	}
}

// currentFrame returns the innermost active frame, or nil if the thread
// hasn't yet executed its outermost InitStack (or has already returned
// from it).
func (t *Thread) currentFrame() *Frame {
	if len(t.Frames) == 0 {
		return nil
	}
	return &t.Frames[len(t.Frames)-1]
}

// frameBase is the absolute stack index below which the current frame
// may not read or write — 0 if there's no active frame yet.
func (t *Thread) frameBase() int {
	if f := t.currentFrame(); f != nil {
		return f.Base
	}
	return 0
}

// PendingReturnPC and SetPendingReturnPC expose the Call/InitStack
// handoff slot for the scheduler's snapshot encoder; nothing else in the
// package outside interp.go should need it.
func (t *Thread) PendingReturnPC() uint32      { return t.pendingReturnPC }
func (t *Thread) SetPendingReturnPC(pc uint32) { t.pendingReturnPC = pc }
