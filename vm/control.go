package vm

// ControlKind is the directive a syscall hands back alongside its return
// value, telling the interpreter how the calling thread should proceed.
type ControlKind uint8

const (
	Continue ControlKind = iota
	Yield
	NextTick
	Wait
	DissolveWait
	Exit
	StartThread
)

// Control is the host's verdict for a single Syscall instruction. Only
// the fields relevant to Kind are meaningful; the zero Control is
// Continue.
type Control struct {
	Kind ControlKind

	// Wait
	Ticks uint32

	// Exit: ExitIsAll means "all threads"; otherwise ExitID is the target
	// thread id, and an Exit with neither set exits no thread.
	ExitID    *uint32
	ExitIsAll bool

	// StartThread
	NewThreadID uint32
	NewThreadPC uint32
}

// ContinueControl is the default: fall through to the next instruction.
func ContinueControl() Control { return Control{Kind: Continue} }

// YieldControl suspends the calling thread until the scheduler's next pass.
func YieldControl() Control { return Control{Kind: Yield} }

// NextTickControl is the NextTick variant of Yield (spec §4.6 treats the
// two identically: both suspend until the next tick).
func NextTickControl() Control { return Control{Kind: NextTick} }

// WaitControl suspends the calling thread until ticks elapse.
func WaitControl(ticks uint32) Control { return Control{Kind: Wait, Ticks: ticks} }

// DissolveWaitControl suspends the calling thread until the host signals
// the dedicated dissolve-wait input.
func DissolveWaitControl() Control { return Control{Kind: DissolveWait} }

// ExitAllControl marks every thread Exited.
func ExitAllControl() Control { return Control{Kind: Exit, ExitIsAll: true} }

// ExitThreadControl marks the given thread id Exited (self-exit included).
func ExitThreadControl(id uint32) Control { return Control{Kind: Exit, ExitID: &id} }

// StartThreadControl spawns a fresh thread with an empty frame chain at pc.
func StartThreadControl(id, pc uint32) Control {
	return Control{Kind: StartThread, NewThreadID: id, NewThreadPC: pc}
}
