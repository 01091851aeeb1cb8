package arsenal

import (
	"sync/atomic"
	"time"

	"github.com/kobi2187/arsenal/internal/lfqueue"
	"github.com/kobi2187/arsenal/internal/xswitch"
)

// Scheduler is the M:1 cooperative runtime (§4.3): one logical thread of
// control that hands a single OS thread off between coroutines in turn. Its
// ready queue is the teacher-grounded lock-free MPMC FIFO (internal/lfqueue,
// generified from select_list.go); its run loop is kept single-threaded by
// parking on control between handoffs, the same Park/Ready discipline
// internal/xswitch gives individual coroutines.
type Scheduler struct {
	ready   *lfqueue.Queue[*Coroutine]
	control xswitch.Gate // run loop parks here while a coroutine is running
	wakeup  xswitch.Gate // run loop parks here while idle with an empty ready queue

	running atomic.Pointer[Coroutine]
	count   atomic.Int64 // live (not Done) coroutines
	nextID  atomic.Uint64

	cfg Config
	log Logger

	timers *timerHeap
	poller *poller
}

// NewScheduler constructs a Scheduler from cfg. It returns an error if cfg
// fails Config.validate — e.g. ShareStack: true, rejected per DESIGN.md's
// Open Question #3 resolution. The rejection happens here, at
// construction, before any coroutine can be spawned.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		ready:  lfqueue.New[*Coroutine](),
		cfg:    cfg,
		log:    currentLogger(),
		timers: newTimerHeap(),
	}
	if p, err := newPoller(s, cfg.PollerBackend); err != nil {
		s.log.Warning().Err(err).Log("arsenal: I/O poller unavailable, non-blocking I/O wrappers will panic")
	} else {
		s.poller = p
	}
	return s, nil
}

// Spawn creates a new coroutine running fn and enqueues it as runnable
// (§4.2). Spawn may be called from inside a running coroutine or, before
// Run, from the goroutine that will call Run.
func (s *Scheduler) Spawn(fn func(*Coroutine)) *Coroutine {
	c := &Coroutine{
		id:    s.nextID.Add(1),
		sched: s,
		fn:    fn,
	}
	c.setState(StateRunnable)
	s.count.Add(1)
	go c.run()
	s.enqueue(c)
	return c
}

// enqueue pushes c onto the ready queue and wakes the run loop if it is
// parked idle. Safe from any goroutine.
func (s *Scheduler) enqueue(c *Coroutine) {
	s.ready.Push(c)
	s.wakeup.Ready()
}

// switchTo hands the single logical thread of control to c: it wakes c's
// goroutine and blocks the run loop until c hands control back (by
// suspending, yielding, or finishing).
func (s *Scheduler) switchTo(c *Coroutine) {
	s.running.Store(c)
	c.setState(StateRunning)
	c.gate.Ready()
	s.control.Park()
	s.running.Store(nil)
}

// finish marks c done and hands control back to the scheduler. Called by
// Coroutine.run in a defer after fn returns or panics past recover.
func (s *Scheduler) finish(c *Coroutine) {
	c.setState(StateDone)
	s.count.Add(-1)
	s.control.Ready()
}

// RunUntilIdle drains the ready queue, running coroutines to completion or
// suspension, and returns as soon as no coroutine is runnable. Pending
// timers and I/O registrations are neither waited for nor fired; callers
// that need to wait for timers or I/O should use Run instead.
func (s *Scheduler) RunUntilIdle() {
	for {
		c, ok := s.ready.Pop()
		if !ok {
			return
		}
		s.runOne(c)
	}
}

// Run drives the scheduler until every spawned coroutine has finished,
// including waiting out timers and I/O registrations when the ready queue
// is momentarily empty (§4.7's event-loop integration). It is the top-level
// entry point an application's main goroutine calls once.
func (s *Scheduler) Run() {
	for s.count.Load() > 0 {
		c, ok := s.ready.Pop()
		if !ok {
			if s.waitForWork() {
				continue
			}
			return
		}
		s.runOne(c)
	}
}

// waitForWork blocks until a timer fires, the poller reports readiness, or
// some other goroutine enqueues a coroutine directly (e.g. a Ready() call
// racing in from a channel send). It returns false only when no live
// coroutine remains. Deadlock is not detected: with live coroutines but no
// pending timer and no I/O readiness to wake one, it blocks indefinitely.
func (s *Scheduler) waitForWork() bool {
	if s.count.Load() == 0 {
		return false
	}
	d, hasTimer := s.timers.nextDeadline()
	if hasTimer && d <= 0 {
		s.timers.fireExpired()
		return true
	}
	if s.poller != nil {
		if s.poller.pollOnce(s.timers.timeoutFor()) {
			return true
		}
	} else if hasTimer {
		time.Sleep(d)
	}
	if hasTimer {
		// The poll timeout is truncated to whole milliseconds, so the
		// deadline may still be slightly ahead; Run calls back in until it
		// has passed.
		s.timers.fireExpired()
		return true
	}
	s.wakeup.Park()
	s.timers.fireExpired()
	return true
}

// runOne is the run loop's single scheduling step: hand control to c and
// wait for it to hand control back. Panic recovery happens on c's own
// goroutine (see Coroutine.recoverFromPanic) since Go cannot recover a
// panic from any goroutine other than the one it occurred on; if the
// configured PanicPolicy re-panics there, the whole process crashes, which
// naturally unblocks this Park call too (the process is exiting).
func (s *Scheduler) runOne(c *Coroutine) {
	s.switchTo(c)
}
