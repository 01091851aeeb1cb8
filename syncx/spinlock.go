// Package syncx holds the spinlock the coroutine runtime's channels use for
// the short, sub-microsecond critical sections that guard their waiter
// lists (§3, §4.4). It contains no queues: BufferedChannel's bounded buffer
// is internal/bmpmc, and the scheduler's ready queue is internal/lfqueue.
//
// The CAS-loop-with-backoff shape is grounded directly on
// hayabusa-cloud-lfq/mpmc.go's Enqueue/Dequeue retry loops, using the same
// explicit-memory-ordering atomics and spin-backoff libraries.
package syncx

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// Spinlock is a simple test-and-test-and-set spinlock. It is appropriate
// only for the very short critical sections arsenal uses it for (splicing a
// waiter into or out of a channel's linked list) — never hold it across a
// blocking call.
type Spinlock struct {
	locked atomix.Bool
}

// Lock blocks until the spinlock is acquired.
func (l *Spinlock) Lock() {
	sw := spin.Wait{}
	for {
		if !l.locked.LoadAcquire() && l.locked.CompareAndSwapAcqRel(false, true) {
			return
		}
		sw.Once()
	}
}

// TryLock attempts to acquire the spinlock without blocking.
func (l *Spinlock) TryLock() bool {
	return l.locked.CompareAndSwapAcqRel(false, true)
}

// Unlock releases the spinlock. The caller must hold it.
func (l *Spinlock) Unlock() {
	l.locked.StoreRelease(false)
}
