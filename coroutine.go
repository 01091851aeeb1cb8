package arsenal

import (
	"fmt"
	"sync/atomic"

	"github.com/kobi2187/arsenal/internal/gls"
	"github.com/kobi2187/arsenal/internal/xswitch"
)

// State is a coroutine's lifecycle state (§4.2).
type State uint32

const (
	// StateRunnable means the coroutine is queued on the scheduler's ready
	// queue, waiting for its turn to run.
	StateRunnable State = iota
	// StateRunning means the coroutine currently holds the single OS thread
	// the scheduler drives it with.
	StateRunning
	// StateSuspended means the coroutine has parked itself on a channel,
	// select, timer, or I/O wait and is not on the ready queue.
	StateSuspended
	// StateDone means the coroutine's function has returned or panicked.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateRunnable:
		return "runnable"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Coroutine is one cooperatively-scheduled unit of work (§4.2's "coroutine
// handle"). Each Coroutine is backed by one dedicated goroutine for its
// entire life; the cooperative scheduling the spec describes is implemented
// by parking and readying that goroutine through its gate rather than by
// switching a real register/stack context (see internal/xswitch and
// DESIGN.md's Open Question resolutions).
type Coroutine struct {
	id    uint64
	sched *Scheduler
	fn    func(*Coroutine)

	gate  xswitch.Gate
	state atomic.Uint32
}

// ID returns the coroutine's scheduler-assigned identity, unique for the
// lifetime of the Scheduler that spawned it.
func (c *Coroutine) ID() uint64 { return c.id }

// State returns the coroutine's current lifecycle state.
func (c *Coroutine) State() State { return State(c.state.Load()) }

func (c *Coroutine) setState(s State) { c.state.Store(uint32(s)) }

// current returns the Coroutine running on the calling goroutine, and false
// if called from outside any coroutine (e.g. from main() before Run, or
// from a goroutine the scheduler did not spawn).
func current() (*Coroutine, bool) {
	v, ok := gls.Get()
	if !ok {
		return nil, false
	}
	co, ok := v.(*Coroutine)
	return co, ok
}

// mustCurrent returns the running coroutine or panics with
// ErrNoCoroutineContext, for primitives §4.2/§4.4/§4.6 document as
// coroutine-only (Send, Recv, YieldNow, Sleep, Select).
func mustCurrent() *Coroutine {
	co, ok := current()
	if !ok {
		panic(ErrNoCoroutineContext)
	}
	return co
}

// run is the dedicated goroutine's body: it registers itself as current,
// waits for the scheduler's first wakeup, executes fn, then marks itself
// done and hands control back to the scheduler permanently.
func (c *Coroutine) run() {
	gls.Set(c)
	defer gls.Clear()

	// Block until the scheduler's run loop decides to start this coroutine
	// for the first time (switchTo calls Ready on c.gate exactly once per
	// scheduling turn).
	c.gate.Park()

	defer c.sched.finish(c)
	defer c.recoverFromPanic()
	c.fn(c)
}

// recoverFromPanic implements §4.3/§7's panic policy. It runs on c's own
// goroutine, the same one c.fn ran on, since Go panics cannot be recovered
// from a different goroutine. PanicPropagate swallows the panic, leaving c
// Done; any other policy (including the PanicAbort default) re-panics so
// the process crashes with a diagnostic once the deferred finish(c) above
// has run and handed control back to the scheduler.
func (c *Coroutine) recoverFromPanic() {
	r := recover()
	if r == nil {
		return
	}
	err := fmt.Errorf("arsenal: coroutine %d panicked: %v", c.id, r)
	c.sched.log.Err().Err(err).Log("coroutine panic")
	if c.sched.cfg.PanicPolicy == PanicPropagate {
		return
	}
	panic(err)
}

// YieldNow re-enqueues c as runnable and hands control back to the
// scheduler, without marking c suspended — the §4.4 "cooperative yield"
// primitive distinct from blocking on a channel or timer. It is the
// required yield_now() external symbol (§6's Runtime row) and is the
// method form of the free YieldNow function below.
func (c *Coroutine) YieldNow() {
	c.setState(StateRunnable)
	c.sched.enqueue(c)
	c.handBackAndPark()
}

// YieldNow yields the currently running coroutine, re-enqueuing it as
// runnable before handing control back to the scheduler. Panics with
// ErrNoCoroutineContext if called from outside a running coroutine.
func YieldNow() { mustCurrent().YieldNow() }

// handBackAndPark hands control back to the scheduler's run loop (which is
// blocked inside switchTo waiting for this exact signal) and then parks c's
// own goroutine until it is scheduled again. Every path that takes c off
// the "currently running" slot — suspending on a channel/select/timer, a
// plain YieldNow, or finishing — funnels through this.
func (c *Coroutine) handBackAndPark() {
	c.sched.control.Ready()
	c.gate.Park()
}

// suspend marks c suspended, hands control back to the scheduler, and parks
// c's own goroutine until some other coroutine or the poller calls wake.
// It must only be called by c's own goroutine.
func (c *Coroutine) suspend() {
	c.setState(StateSuspended)
	c.handBackAndPark()
}

// wake transitions c back onto the ready queue. Safe to call from any
// goroutine, including the poller's or a timer callback's.
func (c *Coroutine) wake() {
	c.setState(StateRunnable)
	c.sched.enqueue(c)
}
