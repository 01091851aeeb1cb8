package arsenal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSleepBlocksForDuration: Sleep suspends the calling coroutine for at
// least d (§4.6).
func TestSleepBlocksForDuration(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	const d = 20 * time.Millisecond
	var elapsed time.Duration
	sched.Spawn(func(co *Coroutine) {
		start := time.Now()
		Sleep(d)
		elapsed = time.Since(start)
	})
	sched.Run()
	require.GreaterOrEqual(t, elapsed, d)
}

// TestZeroDurationTimerFires is the §8 boundary behavior: a zero-duration
// timer fires on the next scheduler iteration.
func TestZeroDurationTimerFires(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	fired := false
	sched.Spawn(func(co *Coroutine) {
		After(0).Recv()
		fired = true
	})
	sched.Run()
	require.True(t, fired)
}

// TestTimerOrdering: timers fire in deadline order regardless of spawn
// order.
func TestTimerOrdering(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	var order []int
	sched.Spawn(func(co *Coroutine) {
		After(30 * time.Millisecond).Recv()
		order = append(order, 3)
	})
	sched.Spawn(func(co *Coroutine) {
		After(10 * time.Millisecond).Recv()
		order = append(order, 1)
	})
	sched.Spawn(func(co *Coroutine) {
		After(20 * time.Millisecond).Recv()
		order = append(order, 2)
	})
	sched.Run()
	require.Equal(t, []int{1, 2, 3}, order)
}
