package arsenal

import (
	"runtime"
	"time"

	"github.com/kobi2187/arsenal/internal/ioloop"
)

// poller adapts the platform I/O multiplexer (internal/ioloop) to the
// coroutine runtime: registering a fd's readiness wakes whichever
// coroutine is parked waiting on it instead of invoking a callback (§4.7).
// One poller belongs to exactly one Scheduler.
type poller struct {
	backend ioloop.Poller
	sched   *Scheduler
	fds     map[int]*fdWaiters
}

// ioWait is one coroutine's pending registration on a fd's read or write
// side. cancelled is set by forget when the fd is closed out from under a
// still-parked waiter, so the waiter can distinguish "woken by readiness"
// from "woken by cancellation" once it resumes.
type ioWait struct {
	co        *Coroutine
	cancelled bool
}

type fdWaiters struct {
	reader *ioWait
	writer *ioWait
}

func newPoller(sched *Scheduler, backend PollerBackend) (*poller, error) {
	b := selectBackend(backend)
	if err := b.Init(); err != nil {
		return nil, err
	}
	return &poller{backend: b, sched: sched, fds: make(map[int]*fdWaiters)}, nil
}

func selectBackend(backend PollerBackend) ioloop.Poller {
	switch backend {
	case PollerEpoll, PollerKqueue, PollerIOCP:
		// The GOOS-selected ioloop.New() already picks the one backend
		// built for this platform; arsenal does not offer cross-platform
		// overrides (there is exactly one real implementation per OS).
		return ioloop.New()
	default:
		return ioloop.New()
	}
}

func (p *poller) close() error { return p.backend.Close() }

// waitReadable suspends the calling coroutine until fd becomes readable.
// Returns a non-nil *IOError with Kind IOCancelled if the fd was closed by
// another coroutine (via forget) while this one was suspended (§4.7).
func (p *poller) waitReadable(fd int, co *Coroutine) *IOError {
	w := p.arm(fd, ioloop.Read, co, true)
	co.suspend()
	if w.cancelled {
		return &IOError{Kind: IOCancelled}
	}
	return nil
}

// waitWritable suspends the calling coroutine until fd becomes writable.
// Returns a non-nil *IOError with Kind IOCancelled if the fd was closed by
// another coroutine (via forget) while this one was suspended (§4.7).
func (p *poller) waitWritable(fd int, co *Coroutine) *IOError {
	w := p.arm(fd, ioloop.Write, co, false)
	co.suspend()
	if w.cancelled {
		return &IOError{Kind: IOCancelled}
	}
	return nil
}

func (p *poller) arm(fd int, ev ioloop.Events, co *Coroutine, read bool) *ioWait {
	w, ok := p.fds[fd]
	if !ok {
		w = &fdWaiters{}
		p.fds[fd] = w
		if err := p.backend.RegisterFD(fd, ev, p.callbackFor(fd)); err != nil {
			panic(&IOError{Kind: IOOther, Err: err})
		}
	} else {
		var want ioloop.Events
		if w.reader != nil || read {
			want |= ioloop.Read
		}
		if w.writer != nil || !read {
			want |= ioloop.Write
		}
		if err := p.backend.ModifyFD(fd, want); err != nil {
			panic(&IOError{Kind: IOOther, Err: err})
		}
	}
	iw := &ioWait{co: co}
	if read {
		w.reader = iw
	} else {
		w.writer = iw
	}
	return iw
}

// callbackFor returns the ioloop.Callback dispatched from Poll for fd; it
// wakes whichever coroutines are currently registered on it. Edge-triggered
// delivery means this fires once per state transition, so Conn's Read/Write
// loop must retry the syscall and re-register on EWOULDBLOCK rather than
// assuming repeated deliveries while data remains.
func (p *poller) callbackFor(fd int) ioloop.Callback {
	return func(ev ioloop.Events) {
		w, ok := p.fds[fd]
		if !ok {
			return
		}
		if ev&(ioloop.Read|ioloop.Err|ioloop.Hangup) != 0 && w.reader != nil {
			r := w.reader
			w.reader = nil
			r.co.wake()
		}
		if ev&(ioloop.Write|ioloop.Err|ioloop.Hangup) != 0 && w.writer != nil {
			wr := w.writer
			w.writer = nil
			wr.co.wake()
		}
	}
}

// forget removes fd's registration entirely, called when a Conn or Listener
// closes. Any coroutine still parked on fd via waitReadable/waitWritable is
// woken here, marked cancelled, before the registration disappears — per
// §4.7, "coroutines suspended on a registration whose fd is closed by
// another coroutine are woken with IoError{Cancelled}" rather than left
// parked forever.
func (p *poller) forget(fd int) {
	if w, ok := p.fds[fd]; ok {
		if w.reader != nil {
			w.reader.cancelled = true
			w.reader.co.wake()
			w.reader = nil
		}
		if w.writer != nil {
			w.writer.cancelled = true
			w.writer.co.wake()
			w.writer = nil
		}
	}
	delete(p.fds, fd)
	_ = p.backend.UnregisterFD(fd)
}

// pollOnce polls the backend once for up to timeout, returning whether any
// fd was dispatched. Called by Scheduler.waitForWork when the ready queue
// is empty.
func (p *poller) pollOnce(timeout time.Duration) bool {
	n, err := p.backend.Poll(timeout)
	if err != nil {
		p.sched.log.Err().Err(err).Log("poller wait failed")
		runtime.Gosched()
		return false
	}
	return n > 0
}
