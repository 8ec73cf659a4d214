package vm

import (
	"errors"

	"github.com/hcbscript/hcbvm/container"
	"github.com/hcbscript/hcbvm/isa"
	"github.com/hcbscript/hcbvm/value"
)

// Step decodes and executes exactly one instruction at t.PC. It returns
// suspended=true if the thread should stop being stepped for the rest of
// this scheduler tick (a voluntary yield/wait/exit), and a non-nil
// *RuntimeError if the instruction faulted — in which case the caller
// (the scheduler) is responsible for marking the thread Exited and
// surfacing (thread id, pc, kind) to the host, per spec §7.
//
// Arithmetic, stack, and jump instructions never suspend: only Syscall
// can, through its returned Control.
func (t *Thread) Step(prog *container.Program, globals *value.GlobalTable, host HostRuntime, ctx VmContext) (suspended bool, rerr *RuntimeError) {
	if t.State != Ready {
		return true, nil
	}

	inst, err := isa.Decode(prog.Bytecode, t.PC)
	if err != nil {
		return true, t.fault(InvalidPc, err)
	}

	switch inst.Op {
	case isa.Nop:
		t.PC += inst.Len

	case isa.PushNil:
		if err := t.push(value.Nil()); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushTrue:
		if err := t.push(value.Bool(true)); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushTop:
		v, e := t.Stack.Top()
		if e != nil {
			return true, t.fault(StackUnderflow, e)
		}
		if err := t.push(v); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushReturn:
		if err := t.push(t.ReturnReg); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.Neg:
		v, e := t.pop1()
		if e != nil {
			return true, e
		}
		r, err := value.Neg(v)
		if err != nil {
			return true, t.faultOp(err)
		}
		if err := t.push(r); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.Add, isa.Sub, isa.Mul, isa.Div, isa.Mod, isa.BitTest,
		isa.SetE, isa.SetNE, isa.SetG, isa.SetGE, isa.SetL, isa.SetLE:
		a, b, e := t.pop2()
		if e != nil {
			return true, e
		}
		r, err := t.binaryOp(inst.Op, a, b)
		if err != nil {
			return true, err
		}
		if err := t.push(r); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.And, isa.Or:
		a, b, e := t.pop2()
		if e != nil {
			return true, e
		}
		var r bool
		if inst.Op == isa.And {
			r = a.Truthy() && b.Truthy()
		} else {
			r = a.Truthy() || b.Truthy()
		}
		if err := t.push(value.Bool(r)); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.InitStack:
		if err := t.execInitStack(inst); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.Ret, isa.RetV:
		exited, err := t.execReturn(inst.Op == isa.RetV)
		if err != nil {
			return true, err
		}
		if exited {
			return true, nil
		}
		// PC was already set to the caller's saved address.

	case isa.Call:
		t.pendingReturnPC = t.PC + inst.Len
		t.PC = inst.Target

	case isa.Jmp:
		t.PC = inst.Target

	case isa.Jz:
		v, e := t.pop1()
		if e != nil {
			return true, e
		}
		if !v.Truthy() {
			t.PC = inst.Target
		} else {
			t.PC += inst.Len
		}

	case isa.Syscall:
		susp, err := t.execSyscall(inst, host, ctx)
		if err != nil {
			return true, err
		}
		if susp {
			return true, nil
		}

	case isa.PushI8:
		if err := t.push(value.Int(int32(inst.I8))); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushI16:
		if err := t.push(value.Int(int32(inst.I16))); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushI32:
		if err := t.push(value.Int(inst.I32)); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushF32:
		if err := t.push(value.Float(inst.F32)); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushString:
		if err := t.push(value.Str(inst.Str)); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushGlobal:
		v, e := globals.Get(inst.U16)
		if e != nil {
			return true, t.fault(BadGlobalIndex, e)
		}
		if err := t.push(v); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PopGlobal:
		v, e := t.pop1()
		if e != nil {
			return true, e
		}
		if err := globals.Set(inst.U16, v); err != nil {
			return true, t.fault(BadGlobalIndex, err)
		}
		t.PC += inst.Len

	case isa.PushGlobalTable:
		key, e := t.pop1()
		if e != nil {
			return true, e
		}
		if key.Kind() != value.KindInt {
			return true, t.fault(TypeMismatch, errors.New("global table key must be Int"))
		}
		g, e2 := globals.Get(inst.U16)
		if e2 != nil {
			return true, t.fault(BadGlobalIndex, e2)
		}
		result := value.Nil()
		if g.Kind() == value.KindTable {
			result = g.AsTable().Get(key.AsInt())
		}
		if err := t.push(result); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PopGlobalTable:
		key, val, e := t.pop2()
		if e != nil {
			return true, e
		}
		if key.Kind() != value.KindInt {
			return true, t.fault(TypeMismatch, errors.New("global table key must be Int"))
		}
		g, e2 := globals.Get(inst.U16)
		if e2 != nil {
			return true, t.fault(BadGlobalIndex, e2)
		}
		tbl := g.AsTable()
		if g.Kind() != value.KindTable {
			tbl = value.NewTable()
			if err := globals.Set(inst.U16, value.FromTable(tbl)); err != nil {
				return true, t.fault(BadGlobalIndex, err)
			}
		}
		tbl.Set(key.AsInt(), val)
		t.PC += inst.Len

	case isa.PushStack:
		v, err := t.localGet(inst.Idx)
		if err != nil {
			return true, err
		}
		if err := t.push(v); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PopStack:
		v, e := t.pop1()
		if e != nil {
			return true, e
		}
		if err := t.localSet(inst.Idx, v); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PushLocalTable:
		tbl, err := t.localTable(inst.Idx, false)
		if err != nil {
			return true, err
		}
		key, e := t.pop1()
		if e != nil {
			return true, e
		}
		if key.Kind() != value.KindInt {
			return true, t.fault(TypeMismatch, errors.New("local table key must be Int"))
		}
		result := value.Nil()
		if tbl != nil {
			result = tbl.Get(key.AsInt())
		}
		if err := t.push(result); err != nil {
			return true, err
		}
		t.PC += inst.Len

	case isa.PopLocalTable:
		key, val, e := t.pop2()
		if e != nil {
			return true, e
		}
		if key.Kind() != value.KindInt {
			return true, t.fault(TypeMismatch, errors.New("local table key must be Int"))
		}
		tbl, err := t.localTable(inst.Idx, true)
		if err != nil {
			return true, err
		}
		tbl.Set(key.AsInt(), val)
		t.PC += inst.Len

	default:
		return true, t.fault(InvalidPc, errors.New("unhandled opcode"))
	}

	return false, nil
}

func (t *Thread) push(v value.Variant) *RuntimeError {
	base := t.frameBase()
	if t.Stack.Len()-base >= maxFrameStackDepth {
		return t.fault(StackOverflow, errors.New("operand stack exceeds 256 entries for this frame"))
	}
	t.Stack.Push(v)
	return nil
}

func (t *Thread) pop1() (value.Variant, *RuntimeError) {
	v, err := t.Stack.Pop()
	if err != nil {
		return value.Nil(), t.fault(StackUnderflow, err)
	}
	return v, nil
}

// pop2 pops the top two values and returns them in (second-from-top,
// top) order — i.e. (a, b) such that a was pushed before b — matching
// every binary opcode's "pop two, apply in push order" convention.
func (t *Thread) pop2() (value.Variant, value.Variant, *RuntimeError) {
	b, err := t.Stack.Pop()
	if err != nil {
		return value.Nil(), value.Nil(), t.fault(StackUnderflow, err)
	}
	a, err := t.Stack.Pop()
	if err != nil {
		return value.Nil(), value.Nil(), t.fault(StackUnderflow, err)
	}
	return a, b, nil
}

func (t *Thread) faultOp(err error) *RuntimeError {
	var opErr *value.OpError
	if errors.As(err, &opErr) {
		switch opErr.Kind {
		case value.ErrDivByZero:
			return t.fault(DivByZero, err)
		default:
			return t.fault(TypeMismatch, err)
		}
	}
	return t.fault(TypeMismatch, err)
}

func (t *Thread) binaryOp(op isa.Opcode, a, b value.Variant) (value.Variant, *RuntimeError) {
	var (
		r   value.Variant
		err error
	)
	switch op {
	case isa.Add:
		r, err = value.Add(a, b)
	case isa.Sub:
		r, err = value.Sub(a, b)
	case isa.Mul:
		r, err = value.Mul(a, b)
	case isa.Div:
		r, err = value.Div(a, b)
	case isa.Mod:
		r, err = value.Mod(a, b)
	case isa.BitTest:
		r, err = value.BitTest(a, b)
	default:
		cmp, cerr := value.Compare(a, b)
		if cerr != nil {
			return value.Nil(), t.faultOp(cerr)
		}
		r = value.Bool(compareMatches(op, cmp))
		err = nil
	}
	if err != nil {
		return value.Nil(), t.faultOp(err)
	}
	return r, nil
}

func compareMatches(op isa.Opcode, cmp int) bool {
	switch op {
	case isa.SetE:
		return cmp == 0
	case isa.SetNE:
		return cmp != 0
	case isa.SetG:
		return cmp > 0
	case isa.SetGE:
		return cmp >= 0
	case isa.SetL:
		return cmp < 0
	case isa.SetLE:
		return cmp <= 0
	default:
		return false
	}
}

// execInitStack implements the InitStack half of the calling convention:
// it records a new frame (base = sp-argc, saved_pc = whatever Call left
// pending), then reserves localc Nil-initialised local slots.
func (t *Thread) execInitStack(inst isa.Instruction) *RuntimeError {
	if inst.Argc < 0 || inst.Localc < 0 {
		return t.fault(BadFrame, errors.New("InitStack argc/localc must be non-negative"))
	}
	argc := int(inst.Argc)
	base := t.Stack.Len() - argc
	if base < 0 {
		return t.fault(StackUnderflow, errors.New("InitStack argc exceeds available stack"))
	}
	savedPC := t.pendingReturnPC
	t.pendingReturnPC = 0
	t.Frames = append(t.Frames, Frame{
		Argc:    uint8(inst.Argc),
		Localc:  uint8(inst.Localc),
		Base:    base,
		SavedPC: savedPC,
	})
	t.Stack.GrowNil(int(inst.Localc))
	return nil
}

// execReturn tears down the current frame. For RetV it first pops the
// top of stack into the return register. Returning from the outermost
// frame exits the thread.
func (t *Thread) execReturn(withValue bool) (exited bool, rerr *RuntimeError) {
	if withValue {
		v, err := t.pop1()
		if err != nil {
			return false, err
		}
		t.ReturnReg = v
	}
	frame := t.currentFrame()
	if frame == nil {
		return false, t.fault(BadFrame, errors.New("return with no active frame"))
	}
	savedPC := frame.SavedPC
	t.Stack.Truncate(frame.Base)
	t.Frames = t.Frames[:len(t.Frames)-1]
	if len(t.Frames) == 0 {
		t.State = Exited
		return true, nil
	}
	t.PC = savedPC
	return false, nil
}

func (t *Thread) localGet(idx int8) (value.Variant, *RuntimeError) {
	f := t.currentFrame()
	if f == nil {
		return value.Nil(), t.fault(BadLocalIndex, errors.New("no active frame"))
	}
	abs := f.absoluteIndex(idx)
	if abs < f.Base || abs >= f.localBound() {
		return value.Nil(), t.fault(BadLocalIndex, errors.New("index out of frame bounds"))
	}
	v, err := t.Stack.At(abs)
	if err != nil {
		return value.Nil(), t.fault(BadLocalIndex, err)
	}
	return v, nil
}

func (t *Thread) localSet(idx int8, v value.Variant) *RuntimeError {
	f := t.currentFrame()
	if f == nil {
		return t.fault(BadLocalIndex, errors.New("no active frame"))
	}
	abs := f.absoluteIndex(idx)
	if abs < f.Base || abs >= f.localBound() {
		return t.fault(BadLocalIndex, errors.New("index out of frame bounds"))
	}
	if err := t.Stack.Set(abs, v); err != nil {
		return t.fault(BadLocalIndex, err)
	}
	return nil
}

// localTable resolves the stack slot idx addresses to a *value.Table.
// When create is true and the slot doesn't already hold a Table, a fresh
// one is written into that slot (PopLocalTable's lazy-init semantics);
// otherwise a non-Table slot yields (nil, nil) and the caller treats it
// as an always-empty table (PushLocalTable's read-only semantics).
func (t *Thread) localTable(idx int8, create bool) (*value.Table, *RuntimeError) {
	f := t.currentFrame()
	if f == nil {
		return nil, t.fault(BadLocalIndex, errors.New("no active frame"))
	}
	abs := f.absoluteIndex(idx)
	if abs < f.Base || abs >= f.localBound() {
		return nil, t.fault(BadLocalIndex, errors.New("index out of frame bounds"))
	}
	cur, err := t.Stack.At(abs)
	if err != nil {
		return nil, t.fault(BadLocalIndex, err)
	}
	if cur.Kind() == value.KindTable {
		return cur.AsTable(), nil
	}
	if !create {
		return nil, nil
	}
	tbl := value.NewTable()
	if err := t.Stack.Set(abs, value.FromTable(tbl)); err != nil {
		return nil, t.fault(BadLocalIndex, err)
	}
	return tbl, nil
}

// execSyscall pops argc(id) arguments, dispatches to the host, writes the
// return register, and applies the resulting Control.
func (t *Thread) execSyscall(inst isa.Instruction, host HostRuntime, ctx VmContext) (suspended bool, rerr *RuntimeError) {
	argc, ok := host.SyscallArgc(inst.U16)
	if !ok {
		return true, t.fault(UnknownSyscall, nil)
	}
	args := make([]value.Variant, argc)
	for i := argc - 1; i >= 0; i-- {
		v, err := t.pop1()
		if err != nil {
			return true, err
		}
		args[i] = v
	}

	ret, control, err := host.SyscallCall(inst.U16, args, ctx)
	if err != nil {
		return true, t.fault(HostError, err)
	}
	t.ReturnReg = ret
	t.PC += inst.Len

	switch control.Kind {
	case Continue:
		return false, nil
	case Yield, NextTick:
		return true, nil
	case Wait:
		t.State = WaitingTime
		t.WaitDeadline = ctx.Now() + control.Ticks
		return true, nil
	case DissolveWait:
		t.State = WaitingSignal
		return true, nil
	case Exit:
		if control.ExitIsAll {
			ctx.RequestExit(nil)
			t.State = Exited
		} else if control.ExitID != nil {
			id := *control.ExitID
			ctx.RequestExit(&id)
			if id == t.ID {
				t.State = Exited
			}
		}
		return true, nil
	case StartThread:
		ctx.RequestStart(control.NewThreadID, control.NewThreadPC)
		return false, nil
	default:
		return false, nil
	}
}
