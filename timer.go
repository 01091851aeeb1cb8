package arsenal

import (
	"container/heap"
	"time"
)

// timerEntry is one pending deadline in the scheduler's timer heap (§4.6).
// Access to every timerEntry and to timerHeap itself happens exclusively
// from whichever goroutine currently holds the scheduler's single logical
// thread of control (the run loop between handoffs, or the one running
// coroutine during a handoff) — the same mutual-exclusion invariant
// Coroutine.suspend/Scheduler.switchTo maintain for everything else, so no
// additional lock is needed here.
type timerEntry struct {
	deadline time.Time
	seq      uint64
	fire     func(time.Time)
	index    int
}

type timerHeapData []*timerEntry

func (h timerHeapData) Len() int { return len(h) }
func (h timerHeapData) Less(i, j int) bool {
	if h[i].deadline.Equal(h[j].deadline) {
		return h[i].seq < h[j].seq
	}
	return h[i].deadline.Before(h[j].deadline)
}
func (h timerHeapData) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *timerHeapData) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *timerHeapData) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

// timerHeap is a container/heap min-heap keyed on absolute deadline,
// grounded in the teacher pack's own preference for stdlib containers
// where no example repo ships a timer wheel (see DESIGN.md) — unlike the
// concurrency core, nothing in the retrieved pack models timers, so this
// piece is built fresh in the teacher's idiom rather than adapted from a
// specific file.
type timerHeap struct {
	items timerHeapData
	seq   uint64
}

func newTimerHeap() *timerHeap {
	return &timerHeap{}
}

// schedule arms a new timer that calls fire once, no sooner than d from
// now. The returned entry can be passed to cancel.
func (t *timerHeap) schedule(d time.Duration, fire func(time.Time)) *timerEntry {
	t.seq++
	e := &timerEntry{deadline: time.Now().Add(d), seq: t.seq, fire: fire}
	heap.Push(&t.items, e)
	return e
}

// cancel removes e from the heap if it is still pending. Safe to call
// with an entry that has already fired (cancel becomes a no-op, detected
// via the stale index left by heap.Remove/Pop).
func (t *timerHeap) cancel(e *timerEntry) {
	if e.index < 0 || e.index >= len(t.items) || t.items[e.index] != e {
		return
	}
	heap.Remove(&t.items, e.index)
}

// nextDeadline reports how long until the earliest pending timer fires.
// ok is false if no timer is pending.
func (t *timerHeap) nextDeadline() (time.Duration, bool) {
	if len(t.items) == 0 {
		return 0, false
	}
	return time.Until(t.items[0].deadline), true
}

// timeoutFor returns the duration the event-loop poller should block for
// given the current timer heap: the time until the next deadline, zero if
// one is already due, or a negative value meaning "no pending timer, block
// indefinitely for I/O."
func (t *timerHeap) timeoutFor() time.Duration {
	d, ok := t.nextDeadline()
	if !ok {
		return -1
	}
	if d < 0 {
		return 0
	}
	return d
}

// fireExpired pops and fires every timer whose deadline has passed.
func (t *timerHeap) fireExpired() {
	now := time.Now()
	for len(t.items) > 0 && !t.items[0].deadline.After(now) {
		e := heap.Pop(&t.items).(*timerEntry)
		e.fire(e.deadline)
	}
}

// TimerChannel is the handle After returns: a capacity-1 buffered channel,
// matching time.After's own "never block the deliverer" shape so a timer
// that fires before anything calls Recv still delivers its value instead
// of being dropped.
type TimerChannel = *BufferedChannel[time.Time]

// After returns a channel that receives the timer's deadline (now plus d)
// once, no sooner than d from now (§4.6). Must be called from within a
// coroutine.
func After(d time.Duration) TimerChannel {
	co := mustCurrent()
	ch := NewBufferedChannel[time.Time](1)
	co.sched.timers.schedule(d, func(t time.Time) {
		ch.TrySend(t)
	})
	return ch
}

// Sleep suspends the calling coroutine for at least d (§4.6). Built on
// After exactly the way time.Sleep and <-time.After(d) are interchangeable
// in stdlib Go.
func Sleep(d time.Duration) {
	ch := After(d)
	ch.Recv()
}
