// Package bmpmc is the bounded multi-producer multi-consumer queue of
// spec.md §2's sync-primitives component (the 10%-budget piece DESIGN.md
// originally claimed was covered by the spinlock alone — it wasn't; this
// package is that gap filled in). It backs BufferedChannel's ring buffer
// (see buffered.go) in place of a plain slice-plus-indices, even though
// BufferedChannel's own spinlock already serializes every access to it:
// the point is to exercise the teacher pack's SCQ algorithm itself, not to
// claim a throughput win over a lock already held.
//
// Grounded directly on hayabusa-cloud-lfq/mpmc.go: the FAA-based Scalable
// Circular Queue (Nikolaev, DISC 2019), 2n physical slots for capacity n,
// cycle-tagged slots for ABA safety, and the same
// code.hybscloud.com/{atomix,spin} primitives syncx.Spinlock already
// builds on.
package bmpmc

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"code.hybscloud.com/iox"
)

// ErrWouldBlock is returned by Enqueue/Dequeue when the queue is full or
// empty, respectively — the same iox-aliased control-flow signal used
// throughout arsenal's error taxonomy (see errors.go's IsWouldBlock).
var ErrWouldBlock = iox.ErrWouldBlock

type pad [64]byte
type padShort [64 - 8]byte

type slot[T any] struct {
	cycle atomix.Uint64
	data  T
	_     padShort
}

// Queue is a bounded, cache-line-padded SCQ MPMC ring buffer.
type Queue[T any] struct {
	_         pad
	tail      atomix.Uint64
	_         pad
	head      atomix.Uint64
	_         pad
	threshold atomix.Int64
	_         pad
	draining  atomix.Bool
	_         pad
	buffer    []slot[T]
	capacity  uint64
	size      uint64
	mask      uint64
}

// New creates a bounded queue. Capacity rounds up to the next power of 2
// and reserves 2n physical slots for capacity n, per the SCQ algorithm.
func New[T any](capacity int) *Queue[T] {
	if capacity < 2 {
		panic("bmpmc: capacity must be >= 2")
	}
	n := uint64(roundToPow2(capacity))
	size := n * 2

	q := &Queue[T]{
		buffer:   make([]slot[T], size),
		capacity: n,
		size:     size,
		mask:     size - 1,
	}
	q.threshold.StoreRelaxed(3*int64(n) - 1)
	for i := uint64(0); i < size; i++ {
		q.buffer[i].cycle.StoreRelaxed(i / n)
	}
	return q
}

// Enqueue adds v to the queue, returning ErrWouldBlock if it is full.
func (q *Queue[T]) Enqueue(v T) error {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		head := q.head.LoadAcquire()
		if tail >= head+q.capacity {
			return ErrWouldBlock
		}

		myTail := q.tail.AddAcqRel(1) - 1
		s := &q.buffer[myTail&q.mask]
		expectedCycle := myTail / q.capacity
		slotCycle := s.cycle.LoadAcquire()

		if slotCycle == expectedCycle {
			s.data = v
			s.cycle.StoreRelease(expectedCycle + 1)
			q.threshold.StoreRelaxed(3*int64(q.capacity) - 1)
			return nil
		}
		if int64(slotCycle) < int64(expectedCycle) {
			return ErrWouldBlock
		}
		sw.Once()
	}
}

// Dequeue removes and returns an element, or ErrWouldBlock if empty.
func (q *Queue[T]) Dequeue() (T, error) {
	if !q.draining.LoadAcquire() && q.threshold.LoadRelaxed() < 0 {
		var zero T
		return zero, ErrWouldBlock
	}

	sw := spin.Wait{}
	for {
		myHead := q.head.AddAcqRel(1) - 1
		s := &q.buffer[myHead&q.mask]
		expectedCycle := myHead/q.capacity + 1
		slotCycle := s.cycle.LoadAcquire()

		if slotCycle == expectedCycle {
			v := s.data
			var zero T
			s.data = zero
			nextEnqCycle := (myHead + q.size) / q.capacity
			s.cycle.StoreRelease(nextEnqCycle)
			return v, nil
		}
		if int64(slotCycle) < int64(expectedCycle) {
			nextEnqCycle := (myHead + q.size) / q.capacity
			s.cycle.CompareAndSwapAcqRel(slotCycle, nextEnqCycle)

			tail := q.tail.LoadAcquire()
			if tail <= myHead+1 {
				q.catchup(tail, myHead+1)
				q.threshold.AddAcqRel(-1)
				var zero T
				return zero, ErrWouldBlock
			}
			if q.threshold.AddAcqRel(-1) <= 0 && !q.draining.LoadAcquire() {
				var zero T
				return zero, ErrWouldBlock
			}
		}
		sw.Once()
	}
}

// Drain signals that no more enqueues will occur, letting Dequeue skip the
// livelock-prevention threshold and drain whatever remains.
func (q *Queue[T]) Drain() { q.draining.StoreRelease(true) }

func (q *Queue[T]) catchup(tail, head uint64) {
	for tail < head {
		if q.tail.CompareAndSwapRelaxed(tail, head) {
			break
		}
		tail = q.tail.LoadRelaxed()
		head = q.head.LoadRelaxed()
	}
}

// Cap returns the queue's usable capacity (n, not the 2n physical slots).
func (q *Queue[T]) Cap() int { return int(q.capacity) }

// Len reports the number of elements currently enqueued. Unlike Enqueue/
// Dequeue it is not itself linearizable against concurrent access from
// multiple goroutines — arsenal only calls it from inside BufferedChannel,
// whose own spinlock already serializes every Queue access, so the
// tail-minus-head read is exact in practice even though the type alone
// would not guarantee that under true concurrent use.
func (q *Queue[T]) Len() int {
	return int(q.tail.LoadAcquire() - q.head.LoadAcquire())
}

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
