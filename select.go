package arsenal

import (
	"math/rand/v2"
	"sync/atomic"
	"time"
)

// Select implements §4.5's non-deterministic case selection over a mix of
// send and receive cases plus an optional timeout and default.
//
// SPEC_FULL.md writes the builder as a literal dot-chain,
// NewSelect().Recv(ch, &slot).Send(ch, v).Timeout(d).Default().Run() — but
// Go methods cannot carry their own type parameters, so a *SelectBuilder
// method cannot be generic over each case's distinct T. Recv and Send are
// therefore free generic functions that take and return the builder
// pointer instead of methods; Timeout, Default, and Run (needing no
// per-case type parameter) are real methods. Call sites read almost like
// the spec's chain: arsenal.Send(arsenal.Recv(arsenal.NewSelect(), ch,
// &slot), ch2, v).Run().
//
// The fast path (phase 1) tries every case's non-blocking Try{Send,Recv} in
// random order, same as native Go's runtime.selectgo. If none are ready and
// no Default was given, the slow path (phase 2) registers a waiter on
// every case behind a single shared *atomic.Bool tag (§4.5) and suspends;
// whichever case's match is matched first wins the tag's
// CompareAndSwap(false, true), and Run then unlinks every other case's
// still-parked waiter from its channel (retract). This
// resolves the second Open Question (§9) in favor of proper blocking
// registration: the slow path never busy-polls.
type SelectBuilder struct {
	co         *Coroutine
	cases      []selCase
	hasDefault bool
	timeout    time.Duration
	hasTimeout bool
}

// selCase type-erases a single case's channel and payload type so
// SelectBuilder can hold a heterogeneous slice of them, mirroring the
// Selectable{Check, Poll} pattern selector.go uses for the same reason.
type selCase interface {
	// tryFast attempts to complete the case without blocking (phase 1).
	tryFast() bool
	// registerSlow registers a slow-path waiter carrying tag and the
	// selecting coroutine co (phase 2).
	// Returns true if the case resolved synchronously during registration
	// (a value, or closed-channel signal, was already available) rather
	// than actually parking.
	registerSlow(co *Coroutine, tag *atomic.Bool) bool
	// applyIfFired checks this case's own waiter after a wakeup and, if it
	// was the one that fired, copies its result out and returns true.
	applyIfFired() bool
	// retract unlinks this case's waiter from its channel if it lost (§4.5/
	// §8: unselected waiters are unlinked before the next scheduler
	// iteration, rather than left parked indefinitely). A no-op if this
	// case never registered a waiter, or if it already won.
	retract()
}

// recvSource is satisfied by both *Channel[T] and *BufferedChannel[T].
type recvSource[T any] interface {
	TryRecv() (T, bool)
	IsClosed() bool
	registerRecvWaiter(w *waiter[T]) registerOutcome[T]
	unregisterRecvWaiter(w *waiter[T])
}

// sendSink is satisfied by both *Channel[T] and *BufferedChannel[T].
type sendSink[T any] interface {
	TrySend(T) bool
	registerSendWaiter(w *waiter[T]) bool
	unregisterSendWaiter(w *waiter[T])
}

type recvCase[T any] struct {
	ch    recvSource[T]
	slot  *T
	okOut *bool
	w     *waiter[T]
}

func (c *recvCase[T]) tryFast() bool {
	v, ok := c.ch.TryRecv()
	if ok {
		*c.slot = v
		if c.okOut != nil {
			*c.okOut = true
		}
		return true
	}
	if c.ch.IsClosed() {
		var zero T
		*c.slot = zero
		if c.okOut != nil {
			*c.okOut = false
		}
		return true
	}
	return false
}

func (c *recvCase[T]) registerSlow(co *Coroutine, tag *atomic.Bool) bool {
	c.w = &waiter[T]{co: co, selected: tag}
	out := c.ch.registerRecvWaiter(c.w)
	if out.fired {
		*c.slot = out.value
		if c.okOut != nil {
			*c.okOut = out.ok
		}
		return true
	}
	return false
}

func (c *recvCase[T]) applyIfFired() bool {
	if c.w == nil || !c.w.filled {
		return false
	}
	*c.slot = c.w.value
	if c.okOut != nil {
		*c.okOut = c.w.ok
	}
	return true
}

func (c *recvCase[T]) retract() {
	if c.w != nil {
		c.ch.unregisterRecvWaiter(c.w)
	}
}

type sendCase[T any] struct {
	ch  sendSink[T]
	val T
	w   *waiter[T]
}

func (c *sendCase[T]) tryFast() bool { return c.ch.TrySend(c.val) }

func (c *sendCase[T]) registerSlow(co *Coroutine, tag *atomic.Bool) bool {
	c.w = &waiter[T]{co: co, selected: tag, value: c.val}
	return c.ch.registerSendWaiter(c.w)
}

func (c *sendCase[T]) applyIfFired() bool {
	if c.w == nil || !c.w.filled {
		return false
	}
	if !c.w.ok {
		// Close ran while this send case was parked.
		panic(ErrSendOnClosed)
	}
	return true
}

func (c *sendCase[T]) retract() {
	if c.w != nil {
		c.ch.unregisterSendWaiter(c.w)
	}
}

// NewSelect begins a Select builder. Must be called from within a
// coroutine; every case registered on it is later parked against that same
// coroutine.
func NewSelect() *SelectBuilder {
	return &SelectBuilder{co: mustCurrent()}
}

// Recv adds a receive case reading into slot. If ch is closed and drained,
// the case still fires and slot is set to the zero value; use RecvOk to
// also learn the ok half of the native (value, ok) convention.
func Recv[T any](b *SelectBuilder, ch recvSource[T], slot *T) *SelectBuilder {
	b.cases = append(b.cases, &recvCase[T]{ch: ch, slot: slot})
	return b
}

// RecvOk is Recv but also reports the closed/drained state into okOut.
func RecvOk[T any](b *SelectBuilder, ch recvSource[T], slot *T, okOut *bool) *SelectBuilder {
	b.cases = append(b.cases, &recvCase[T]{ch: ch, slot: slot, okOut: okOut})
	return b
}

// Send adds a send case offering v. Exactly like a plain Send, it panics
// with ErrSendOnClosed if this case is the one chosen against a closed
// channel.
func Send[T any](b *SelectBuilder, ch sendSink[T], v T) *SelectBuilder {
	b.cases = append(b.cases, &sendCase[T]{ch: ch, val: v})
	return b
}

// Default makes Run non-blocking: if no case is immediately ready, Run
// returns SelectDefault instead of suspending.
func (b *SelectBuilder) Default() *SelectBuilder {
	b.hasDefault = true
	return b
}

// Timeout adds an implicit extra case equivalent to Recv on After(d); Run
// returns SelectTimeout if it is the one that fires.
func (b *SelectBuilder) Timeout(d time.Duration) *SelectBuilder {
	b.hasTimeout = true
	b.timeout = d
	return b
}

const (
	// SelectDefault is returned by Run when Default was set and no case
	// was immediately ready.
	SelectDefault = -1
	// SelectTimeout is returned by Run when the Timeout case fired.
	SelectTimeout = -2
)

// Run executes the two-phase select and returns the index (into the order
// Recv/Send were called) of the case that fired, or SelectDefault /
// SelectTimeout.
func (b *SelectBuilder) Run() int {
	n := len(b.cases)
	if n == 0 && !b.hasTimeout {
		if b.hasDefault {
			return SelectDefault
		}
		panic(&FatalError{Reason: "select has no cases, no timeout, and no default"})
	}

	for _, i := range shuffledIndices(n) {
		if b.cases[i].tryFast() {
			return i
		}
	}
	if b.hasDefault {
		return SelectDefault
	}

	tag := new(atomic.Bool)
	cases := b.cases
	timeoutIdx := -1
	var timeoutSlot time.Time
	if b.hasTimeout {
		tch := After(b.timeout)
		cases = append(cases, &recvCase[time.Time]{ch: tch, slot: &timeoutSlot})
		timeoutIdx = len(cases) - 1
	}

	fastWin := -1
	registered := 0
	for i, c := range cases {
		if c.registerSlow(b.co, tag) {
			tag.Store(true)
			fastWin = i
			break
		}
		registered = i + 1
	}
	if fastWin >= 0 {
		for i := 0; i < registered; i++ {
			cases[i].retract()
		}
		return resultIndex(fastWin, timeoutIdx)
	}

	b.co.suspend()

	winner := -1
	for i, c := range cases {
		if c.applyIfFired() {
			winner = i
			break
		}
	}
	if winner < 0 {
		panic(&FatalError{Reason: "select woke with no case fired"})
	}
	for i, c := range cases {
		if i != winner {
			c.retract()
		}
	}
	return resultIndex(winner, timeoutIdx)
}

func resultIndex(i, timeoutIdx int) int {
	if i == timeoutIdx {
		return SelectTimeout
	}
	return i
}

// shuffledIndices returns a random permutation of [0, n), matching native
// Go's fairness-by-randomization in runtime.selectgo's fast path. The pack
// did not surface a confirmed PRNG surface on code.hybscloud.com/atomix, so
// this uses the spec's explicitly sanctioned fallback, math/rand/v2,
// documented in DESIGN.md.
func shuffledIndices(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	rand.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return order
}
