// Package sched implements the cooperative scheduler that multiplexes
// every live script thread atop a single host tick. Its shape is a
// direct generalisation of the teacher's CoprocessorManager
// (coprocessor_manager.go): a mutex-guarded table keyed by id, a
// monotonic counter (ticks here, tickets there), and a FIFO queue of
// externally-originated requests consumed at a fixed point in the
// tick/command cycle — just keyed by thread id instead of worker ticket,
// and stepped synchronously rather than backed by real worker goroutines.
// A syscall's own in-band Exit/StartThread directives bypass that queue
// entirely and mutate scheduler state synchronously; see vmContext below.
package sched

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/hcbscript/hcbvm/container"
	"github.com/hcbscript/hcbvm/value"
	"github.com/hcbscript/hcbvm/vm"
)

// Fault is a runtime error surfaced to the host after Tick: the
// offending thread is marked Exited and every other thread keeps
// running, per spec §7.
type Fault struct {
	ThreadID uint32
	PC       uint32
	Kind     vm.RuntimeErrorKind
	Err      error
}

func (f Fault) Error() string {
	return fmt.Sprintf("thread %d at pc %d: %s: %v", f.ThreadID, f.PC, f.Kind, f.Err)
}

// Scheduler owns every live thread, the shared Program and GlobalTable
// they execute against, the monotonic tick counter, and the FIFO queue of
// externally-originated requests (e.g. SignalDissolveDone) consumed at the
// start of the next Tick.
type Scheduler struct {
	mu sync.Mutex

	prog    *container.Program
	globals *value.GlobalTable
	host    vm.HostRuntime

	threads  map[uint32]*vm.Thread
	now      uint32
	requests []request
}

// New creates a scheduler for prog, dispatching syscalls to host. The
// global table is sized from the program's declared non-volatile and
// volatile counts, per spec §3.
func New(prog *container.Program, host vm.HostRuntime) *Scheduler {
	return &Scheduler{
		prog:    prog,
		globals: value.NewGlobalTable(int(prog.NonVolatileCount), int(prog.VolatileCount)),
		host:    host,
		threads: make(map[uint32]*vm.Thread),
	}
}

// Now reports the scheduler's current tick count.
func (s *Scheduler) Now() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Globals exposes the shared global-variable table, e.g. for host-side
// inspection tools or a debugger front-end.
func (s *Scheduler) Globals() *value.GlobalTable { return s.globals }

// Spawn registers a fresh thread with an empty frame chain at pc,
// effective immediately — the bootstrap path a host uses to start the
// program's entry-point thread (and any others) before the first Tick. A
// syscall requesting StartThread mid-run via VmContext.RequestStart takes
// the same immediate path, just already inside Tick's locked section.
func (s *Scheduler) Spawn(id uint32, pc uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawnLocked(id, pc)
}

func (s *Scheduler) spawnLocked(id uint32, pc uint32) error {
	if _, live := s.threads[id]; live {
		return fmt.Errorf("sched: thread %d already live", id)
	}
	s.threads[id] = vm.NewThread(id, pc)
	return nil
}

// Exit marks target Exited immediately (target == nil means every
// thread), matching §4.7's "Exit takes effect immediately on the target."
func (s *Scheduler) Exit(target *uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exitLocked(target)
}

func (s *Scheduler) exitLocked(target *uint32) {
	if target == nil {
		for _, th := range s.threads {
			th.State = vm.Exited
		}
		return
	}
	if th, ok := s.threads[*target]; ok {
		th.State = vm.Exited
	}
}

// SignalDissolveDone is the host's dedicated input waking every
// WaitingSignal(DissolveWait) thread. Per §4.7 step 3 it is queued and
// takes effect at the start of the next tick, the same as a syscall's
// RequestDissolveDone.
func (s *Scheduler) SignalDissolveDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, request{kind: reqDissolveDone})
}

// ThreadState reports the state of thread id, or ok=false if it isn't
// live.
func (s *Scheduler) ThreadState(id uint32) (vm.ThreadState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[id]
	if !ok {
		return 0, false
	}
	return th.State, true
}

// LiveThreadIDs returns every currently-tracked thread id in ascending
// order, matching the observation order Tick itself uses.
func (s *Scheduler) LiveThreadIDs() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedIDsLocked()
}

func (s *Scheduler) sortedIDsLocked() []uint32 {
	ids := make([]uint32, 0, len(s.threads))
	for id := range s.threads {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Tick advances the scheduler by deltaTicks, as described in spec §4.7:
// it wakes timed-out waiters, drains the request queue from the previous
// tick, then steps every Ready thread in ascending id order up to
// budgetPerThread instructions apiece. It returns every fault raised this
// tick (the faulting thread is already Exited by the time it's
// returned).
func (s *Scheduler) Tick(deltaTicks uint32, budgetPerThread int) []Fault {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.now += deltaTicks

	for _, th := range s.threads {
		if th.State == vm.WaitingTime && th.WaitDeadline <= s.now {
			th.State = vm.Ready
		}
	}

	s.drainRequestsLocked()

	var faults []Fault
	for _, id := range s.sortedIDsLocked() {
		th := s.threads[id]
		if th.State != vm.Ready {
			continue
		}
		ctx := &vmContext{sched: s, threadID: id}
		for step := 0; step < budgetPerThread; step++ {
			suspended, rerr := th.Step(s.prog, s.globals, s.host, ctx)
			if rerr != nil {
				th.State = vm.Exited
				f := Fault{ThreadID: rerr.ThreadID, PC: rerr.PC, Kind: rerr.Kind, Err: rerr}
				faults = append(faults, f)
				log.Printf("sched: %s", f)
				break
			}
			if suspended {
				break
			}
		}
	}
	return faults
}

func (s *Scheduler) drainRequestsLocked() {
	pending := s.requests
	s.requests = nil
	for _, r := range pending {
		switch r.kind {
		case reqDissolveDone:
			for _, th := range s.threads {
				if th.State == vm.WaitingSignal {
					th.State = vm.Ready
				}
			}
		}
	}
}

// vmContext implements vm.VmContext for the duration of one syscall. It
// never stores a back-pointer the host could retain past that call: the
// host only ever sees the narrow interface, not *vmContext or
// *Scheduler.
type vmContext struct {
	sched    *Scheduler
	threadID uint32
}

func (c *vmContext) ThreadID() uint32 { return c.threadID }
func (c *vmContext) Now() uint32      { return c.sched.now }

// RequestStart and RequestExit run inside Tick's already-locked critical
// section (a vmContext only ever exists for the duration of a Thread.Step
// called from Tick), so they mutate the scheduler directly instead of
// going through the deferred request queue — the in-band, synchronous path
// §4.7 draws a distinction against "requests from the previous tick."

func (c *vmContext) RequestStart(id, pc uint32) {
	if err := c.sched.spawnLocked(id, pc); err != nil {
		log.Printf("sched: %v", err)
	}
}

func (c *vmContext) RequestExit(target *uint32) {
	c.sched.exitLocked(target)
}

func (c *vmContext) RequestDissolveDone() {
	c.sched.requests = append(c.sched.requests, request{kind: reqDissolveDone})
}
