package vm

import "github.com/hcbscript/hcbvm/value"

// VmContext is handed to a syscall for the duration of its call. It
// exposes only the operations the host is allowed to perform on the
// scheduler — spawning a thread, requesting an exit, signalling a
// dissolve-wait — never a back-pointer to the scheduler itself, per the
// design note inverting the coprocessor manager's cyclic host/world
// reference into a narrow capability interface.
type VmContext interface {
	// ThreadID is the id of the thread currently executing the syscall.
	ThreadID() uint32
	// Now is the scheduler's current tick count.
	Now() uint32
	// RequestStart spawns a fresh thread immediately: Exit and
	// StartThread are in-band control directives (§4.7's last paragraph),
	// so they take effect synchronously within the syscall's own tick
	// rather than waiting on the next tick's request-queue pass.
	RequestStart(id, pc uint32)
	// RequestExit marks target Exited immediately; target == nil marks
	// every thread. Synchronous for the same reason as RequestStart.
	RequestExit(target *uint32)
	// RequestDissolveDone queues a wake for every WaitingSignal
	// (DissolveWait) thread, applied at the start of the scheduler's next
	// tick (§4.7 step 3) — unlike RequestStart/RequestExit this is a
	// deferred request, not an in-band control directive.
	RequestDissolveDone()
}

// HostRuntime is the game-side syscall dispatcher the interpreter calls
// through. It is the Go analogue of spec §6's VmRuntime trait shape.
type HostRuntime interface {
	// SyscallArgc reports how many operands Syscall must pop for id, or
	// ok=false if id isn't a registered syscall.
	SyscallArgc(id uint16) (argc int, ok bool)
	// SyscallCall dispatches to the host with the already-popped
	// arguments (in pushed order) and returns the value to write into the
	// thread's return register plus a control directive.
	SyscallCall(id uint16, args []value.Variant, ctx VmContext) (value.Variant, Control, error)
}
