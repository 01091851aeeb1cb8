package arsenal

import "github.com/kobi2187/arsenal/syncx"

// Channel is the unbuffered, typed rendezvous channel of §4.4: a Send only
// completes once a matching Recv (or select recv-case) has taken the
// value, and vice versa. Usage violations mirror native Go channel panics
// (ErrSendOnClosed, ErrCloseOnClosed) rather than typed error returns,
// since they are programmer mistakes, not steady-state control flow —
// Recv itself keeps the native (value, ok) convention for the one
// legitimate runtime signal a channel carries (closed-and-drained).
//
// senders/receivers are singly linked lists of *waiter[T], spliced
// in/out only while mu is held — a single spinlock guarding both lists
// plus the closed flag, exactly as §4.4 specifies, grounded on the
// teacher's lock-free List (select_list.go) but deliberately *not*
// lock-free here: the spec calls for one spinlock covering both queues so
// that "is anyone waiting" and "register/match" happen as one atomic
// compound operation, which two independently lock-free queues cannot
// give you.
type Channel[T any] struct {
	mu        syncx.Spinlock
	closed    bool
	senders   *waiter[T]
	sendersTl *waiter[T]
	receivers *waiter[T]
	receivrTl *waiter[T]
}

// NewChannel returns a new, open, unbuffered Channel[T].
func NewChannel[T any]() *Channel[T] { return &Channel[T]{} }

func pushWaiter[T any](head, tail **waiter[T], w *waiter[T]) {
	w.next = nil
	if *tail == nil {
		*head, *tail = w, w
		return
	}
	(*tail).next = w
	*tail = w
}

// popWaiter removes and returns the first live (claimable) waiter from the
// list, silently discarding any stale select waiters it finds along the
// way (ones whose shared tag was already won by a different case).
func popWaiter[T any](head, tail **waiter[T]) *waiter[T] {
	for {
		w := *head
		if w == nil {
			return nil
		}
		*head = w.next
		if *head == nil {
			*tail = nil
		}
		w.next = nil
		if w.claim() {
			return w
		}
	}
}

func drainWaiters[T any](head, tail **waiter[T]) *waiter[T] {
	w := *head
	*head, *tail = nil, nil
	return w
}

// unlinkWaiter removes target from the list if it is still present,
// leaving the list unchanged if it already was matched and popped by
// something else. Used by Select to retract a losing case's waiter (§4.5/
// §8: "unselected waiters are unlinked before the next scheduler
// iteration") instead of leaving it parked until some future operation on
// the channel happens to pop past it.
func unlinkWaiter[T any](head, tail **waiter[T], target *waiter[T]) {
	var prev *waiter[T]
	cur := *head
	for cur != nil {
		if cur == target {
			if prev == nil {
				*head = cur.next
			} else {
				prev.next = cur.next
			}
			if *tail == cur {
				*tail = prev
			}
			cur.next = nil
			return
		}
		prev = cur
		cur = cur.next
	}
}

// Send blocks until a receiver takes v, or panics with ErrSendOnClosed if
// the channel is already closed. Must be called from within a coroutine.
func (ch *Channel[T]) Send(v T) {
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
	w := &waiter[T]{co: co, value: v}
	pushWaiter(&ch.senders, &ch.sendersTl, w)
	ch.mu.Unlock()
	co.suspend()
	if !w.ok {
		// Close ran while this send was parked (see Close below).
		panic(ErrSendOnClosed)
	}
}

// Recv blocks until a sender offers a value or the channel is closed.
// ok is false exactly when the channel is closed and drained, matching a
// native `v, ok := <-ch` receive.
func (ch *Channel[T]) Recv() (T, bool) {
	co := mustCurrent()
	ch.mu.Lock()
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

// TrySend attempts a non-blocking send, returning false if no receiver was
// immediately available rather than registering and blocking. Panics with
// ErrSendOnClosed on a closed channel, exactly like Send.
func (ch *Channel[T]) TrySend(v T) bool {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		panic(ErrSendOnClosed)
	}
	r := popWaiter(&ch.receivers, &ch.receivrTl)
	ch.mu.Unlock()
	if r == nil {
		return false
	}
	r.value, r.ok, r.filled = v, true, true
	r.co.wake()
	return true
}

// TryRecv attempts a non-blocking receive. ok is false both when nothing
// was immediately available and when the channel is closed and drained;
// callers that must tell these apart should follow up with IsClosed.
func (ch *Channel[T]) TryRecv() (T, bool) {
	ch.mu.Lock()
	s := popWaiter(&ch.senders, &ch.sendersTl)
	ch.mu.Unlock()
	var zero T
	if s == nil {
		return zero, false
	}
	v := s.value
	s.filled, s.ok = true, true
	s.co.wake()
	return v, true
}

// Close marks the channel closed (§4.4). Any coroutine already parked in
// Recv is woken with (zero, false); any coroutine already parked in Send
// is woken and made to panic with ErrSendOnClosed, matching native Go's
// behavior of failing a blocked send the instant its channel is closed.
// Close itself panics with ErrCloseOnClosed if called twice.
func (ch *Channel[T]) Close() {
	ch.mu.Lock()
	if ch.closed {
		ch.mu.Unlock()
		panic(ErrCloseOnClosed)
	}
	ch.closed = true
	receivers := drainWaiters(&ch.receivers, &ch.receivrTl)
	senders := drainWaiters(&ch.senders, &ch.sendersTl)
	ch.mu.Unlock()

	for w := receivers; w != nil; {
		next := w.next
		if w.claim() {
			w.filled, w.ok = true, false
			w.co.wake()
		}
		w = next
	}
	for w := senders; w != nil; {
		next := w.next
		if w.claim() {
			w.filled, w.ok = true, false
			w.co.wake()
		}
		w = next
	}
}

// IsClosed reports whether the channel has been closed.
func (ch *Channel[T]) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

// Len always reports 0: an unbuffered channel holds no values in transit.
func (ch *Channel[T]) Len() int { return 0 }

// Cap always reports 0: an unbuffered channel has no buffer.
func (ch *Channel[T]) Cap() int { return 0 }

// registerOutcome reports what happened when a select case tried to
// register a slow-path waiter (§4.5): either the match resolved
// synchronously (fired == true, with value/ok set), or the waiter is now
// parked on the channel's list waiting for a future match.
type registerOutcome[T any] struct {
	fired bool
	value T
	ok    bool
}

// registerRecvWaiter is Select's slow-path hook: try the same match Recv
// would, but if nothing is available yet, push w (which carries the
// select's shared tag) onto the receivers list instead of suspending.
func (ch *Channel[T]) registerRecvWaiter(w *waiter[T]) registerOutcome[T] {
	ch.mu.Lock()
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

// registerSendWaiter is Select's slow-path hook for a send case. Panics
// with ErrSendOnClosed immediately, exactly like Send, if the channel is
// already closed.
func (ch *Channel[T]) registerSendWaiter(w *waiter[T]) bool {
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
	pushWaiter(&ch.senders, &ch.sendersTl, w)
	ch.mu.Unlock()
	return false
}

// unregisterRecvWaiter retracts w from the receivers list if it is still
// parked there (a no-op if it was already matched and popped).
func (ch *Channel[T]) unregisterRecvWaiter(w *waiter[T]) {
	ch.mu.Lock()
	unlinkWaiter(&ch.receivers, &ch.receivrTl, w)
	ch.mu.Unlock()
}

// unregisterSendWaiter retracts w from the senders list if it is still
// parked there (a no-op if it was already matched and popped).
func (ch *Channel[T]) unregisterSendWaiter(w *waiter[T]) {
	ch.mu.Lock()
	unlinkWaiter(&ch.senders, &ch.sendersTl, w)
	ch.mu.Unlock()
}
