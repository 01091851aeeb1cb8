package arsenal

import (
	"github.com/kobi2187/arsenal/internal/bmpmc"
	"github.com/kobi2187/arsenal/syncx"
)

// BufferedChannel adds a bounded ring buffer of capacity N to the
// unbuffered Channel's waiter machinery (§3's BufferedChannel<T>). The
// governing invariant — receivers parked implies the buffer is empty;
// senders parked implies the buffer is full — is what lets Send/Recv each
// resolve in a fixed priority order instead of a general queue scan.
//
// The buffer itself is internal/bmpmc's bounded SCQ queue (spec.md §2's
// sync-primitives component), not a plain slice: every access already
// happens under mu, so bmpmc's own lock-free CAS loops buy nothing here,
// but wiring the teacher pack's bounded-queue algorithm into real storage
// (rather than leaving it unimplemented) is the point — see DESIGN.md.
type BufferedChannel[T any] struct {
	mu        syncx.Spinlock
	closed    bool
	senders   *waiter[T]
	sendersTl *waiter[T]
	receivers *waiter[T]
	receivrTl *waiter[T]

	buf      *bmpmc.Queue[T]
	capacity int // logical capacity requested by the caller
}

// NewBufferedChannel returns a new, open BufferedChannel[T] with the given
// capacity, which must be >= 1. bmpmc.New requires capacity >= 2 (it rounds
// up to a power of 2 internally for its 2n-physical-slot SCQ layout), so a
// requested capacity of 1 is backed by a 2-slot queue with the logical
// capacity still enforced at 1 by every Send/Recv path below.
func NewBufferedChannel[T any](capacity int) *BufferedChannel[T] {
	if capacity < 1 {
		panic("arsenal: buffered channel capacity must be >= 1")
	}
	qCap := capacity
	if qCap < 2 {
		qCap = 2
	}
	return &BufferedChannel[T]{buf: bmpmc.New[T](qCap), capacity: capacity}
}

func (ch *BufferedChannel[T]) pushBuffer(v T) {
	if err := ch.buf.Enqueue(v); err != nil {
		panic(&FatalError{Reason: "buffered channel enqueue failed despite capacity check", Cause: err})
	}
}

func (ch *BufferedChannel[T]) popBuffer() T {
	v, err := ch.buf.Dequeue()
	if err != nil {
		panic(&FatalError{Reason: "buffered channel dequeue failed despite count check", Cause: err})
	}
	return v
}

// Send implements §3's buffered send priority: hand off directly to a
// parked receiver if one is waiting (only possible while the buffer is
// empty, per the invariant), else enqueue into the buffer if it has room,
// else park as a sender. Panics with ErrSendOnClosed on a closed channel.
func (ch *BufferedChannel[T]) Send(v T) {
	co := mustCurrent()
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		panic(ErrSendOnClosed)
	}
	if r := popWaiter(&ch.receivers, &ch.receivrTl); r != nil {
		ch.mu.Unlock()
		r.value, r.ok, r.filled = v, true, true
		r.co.wake()
		return
	}
	if ch.buf.Len() < ch.capacity {
		ch.pushBuffer(v)
		ch.mu.Unlock()
		return
	}
	w := &waiter[T]{co: co, value: v}
	pushWaiter(&ch.senders, &ch.sendersTl, w)
	ch.mu.Unlock()
	co.suspend()
	if !w.ok {
		panic(ErrSendOnClosed)
	}
}

// Recv implements §3's buffered receive priority: take the buffer head if
// non-empty (pulling one parked sender's value into the now-vacated tail
// slot, per the invariant), else take directly from a parked sender if one
// is somehow waiting against an empty buffer (only reachable via TrySend/
// TryRecv races), else park as a receiver. ok is false only once the
// buffer is drained and the channel is closed.
func (ch *BufferedChannel[T]) Recv() (T, bool) {
	co := mustCurrent()
	ch.mu.Lock()
	if ch.buf.Len() > 0 {
		v := ch.popBuffer()
		if s := popWaiter(&ch.senders, &ch.sendersTl); s != nil {
			ch.pushBuffer(s.value)
			s.filled, s.ok = true, true
			ch.mu.Unlock()
			s.co.wake()
			return v, true
		}
		ch.mu.Unlock()
		return v, true
	}
	if s := popWaiter(&ch.senders, &ch.sendersTl); s != nil {
		ch.mu.Unlock()
		v := s.value
		s.filled, s.ok = true, true
		s.co.wake()
		return v, true
	}
	if ch.closed {
		ch.mu.Unlock()
		var zero T
		return zero, false
	}
	w := &waiter[T]{co: co}
	pushWaiter(&ch.receivers, &ch.receivrTl, w)
	ch.mu.Unlock()
	co.suspend()
	return w.value, w.ok
}

// TrySend attempts the buffered Send without blocking: it succeeds
// immediately (handing off or buffering) or returns false, never
// registering a parked sender. Panics with ErrSendOnClosed on a closed
// channel.
func (ch *BufferedChannel[T]) TrySend(v T) bool {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		panic(ErrSendOnClosed)
	}
	if r := popWaiter(&ch.receivers, &ch.receivrTl); r != nil {
		ch.mu.Unlock()
		r.value, r.ok, r.filled = v, true, true
		r.co.wake()
		return true
	}
	if ch.buf.Len() < ch.capacity {
		ch.pushBuffer(v)
		ch.mu.Unlock()
		return true
	}
	ch.mu.Unlock()
	return false
}

// TryRecv attempts the buffered Recv without blocking. ok is false both
// when nothing was immediately available and when the channel is closed
// and drained; use IsClosed to distinguish.
func (ch *BufferedChannel[T]) TryRecv() (T, bool) {
	ch.mu.Lock()
	if ch.buf.Len() > 0 {
		v := ch.popBuffer()
		if s := popWaiter(&ch.senders, &ch.sendersTl); s != nil {
			ch.pushBuffer(s.value)
			s.filled, s.ok = true, true
			ch.mu.Unlock()
			s.co.wake()
			return v, true
		}
		ch.mu.Unlock()
		return v, true
	}
	if s := popWaiter(&ch.senders, &ch.sendersTl); s != nil {
		ch.mu.Unlock()
		v := s.value
		s.filled, s.ok = true, true
		s.co.wake()
		return v, true
	}
	ch.mu.Unlock()
	var zero T
	return zero, false
}

// Close marks the channel closed. Parked senders panic with
// ErrSendOnClosed once woken, same as an unbuffered channel. Parked
// receivers drain the remaining buffer first — each is handed one
// buffered value in FIFO order — and only once the buffer is exhausted do
// further parked (and future) receivers observe the closed signal.
func (ch *BufferedChannel[T]) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		panic(ErrCloseOnClosed)
	}
	ch.closed = true
	senders := drainWaiters(&ch.senders, &ch.sendersTl)

	var drained, closedOut *waiter[T]
	var drainedTl, closedTl *waiter[T]
	for {
		r := popWaiter(&ch.receivers, &ch.receivrTl)
		if r == nil {
			break
		}
		if ch.buf.Len() > 0 {
			r.value, r.ok, r.filled = ch.popBuffer(), true, true
			pushWaiter(&drained, &drainedTl, r)
		} else {
			r.ok, r.filled = false, true
			pushWaiter(&closedOut, &closedTl, r)
		}
	}
	ch.mu.Unlock()

	for w := senders; w != nil; {
		next := w.next
		if w.claim() {
			w.filled, w.ok = true, false
			w.co.wake()
		}
		w = next
	}
	for w := drained; w != nil; {
		next := w.next
		w.co.wake()
		w = next
	}
	for w := closedOut; w != nil; {
		next := w.next
		w.co.wake()
		w = next
	}
}

// IsClosed reports whether the channel has been closed.
func (ch *BufferedChannel[T]) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// Len reports the number of values currently buffered.
func (ch *BufferedChannel[T]) Len() int {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.buf.Len()
}

// Cap reports the buffer's fixed capacity, as originally requested (not
// bmpmc's internally rounded-up-to-a-power-of-2 physical slot count).
func (ch *BufferedChannel[T]) Cap() int { return ch.capacity }

// registerRecvWaiter is Select's slow-path hook, mirroring Recv's full
// priority order but pushing w (carrying the select's shared tag) onto the
// receivers list instead of suspending when nothing is available yet.
func (ch *BufferedChannel[T]) registerRecvWaiter(w *waiter[T]) registerOutcome[T] {
	ch.mu.Lock()
	if ch.buf.Len() > 0 {
		v := ch.popBuffer()
		if s := popWaiter(&ch.senders, &ch.sendersTl); s != nil {
			ch.pushBuffer(s.value)
			s.filled, s.ok = true, true
			ch.mu.Unlock()
			s.co.wake()
			return registerOutcome[T]{fired: true, value: v, ok: true}
		}
		ch.mu.Unlock()
		return registerOutcome[T]{fired: true, value: v, ok: true}
	}
	if s := popWaiter(&ch.senders, &ch.sendersTl); s != nil {
		ch.mu.Unlock()
		v := s.value
		s.filled, s.ok = true, true
		s.co.wake()
		return registerOutcome[T]{fired: true, value: v, ok: true}
	}
	if ch.closed {
		ch.mu.Unlock()
		return registerOutcome[T]{fired: true, ok: false}
	}
	pushWaiter(&ch.receivers, &ch.receivrTl, w)
	ch.mu.Unlock()
	return registerOutcome[T]{}
}

// registerSendWaiter is Select's slow-path hook for a send case, mirroring
// Send's full priority order. Panics with ErrSendOnClosed immediately, like
// Send, if the channel is already closed.
func (ch *BufferedChannel[T]) registerSendWaiter(w *waiter[T]) bool {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		panic(ErrSendOnClosed)
	}
	if r := popWaiter(&ch.receivers, &ch.receivrTl); r != nil {
		ch.mu.Unlock()
		r.value, r.ok, r.filled = w.value, true, true
		r.co.wake()
		return true
	}
	if ch.buf.Len() < ch.capacity {
		ch.pushBuffer(w.value)
		ch.mu.Unlock()
		return true
	}
	pushWaiter(&ch.senders, &ch.sendersTl, w)
	ch.mu.Unlock()
	return false
}

// unregisterRecvWaiter retracts w from the receivers list if it is still
// parked there (a no-op if it was already matched and popped).
func (ch *BufferedChannel[T]) unregisterRecvWaiter(w *waiter[T]) {
	ch.mu.Lock()
	unlinkWaiter(&ch.receivers, &ch.receivrTl, w)
	ch.mu.Unlock()
}

// unregisterSendWaiter retracts w from the senders list if it is still
// parked there (a no-op if it was already matched and popped).
func (ch *BufferedChannel[T]) unregisterSendWaiter(w *waiter[T]) {
	ch.mu.Lock()
	unlinkWaiter(&ch.senders, &ch.sendersTl, w)
	ch.mu.Unlock()
}
