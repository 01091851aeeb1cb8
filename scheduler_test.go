package arsenal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSpawnRunsToCompletion is the basic §4.2/§4.3 lifecycle: a spawned
// coroutine runs and transitions to StateDone.
func TestSpawnRunsToCompletion(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	ran := false
	co := sched.Spawn(func(c *Coroutine) {
		ran = true
		require.Equal(t, StateRunning, c.State())
	})
	sched.Run()
	require.True(t, ran)
	require.Equal(t, StateDone, co.State())
}

// TestYieldNowReschedulesFIFO: a coroutine that yields is re-enqueued behind
// others already ready, matching §8's FIFO invariant.
func TestYieldNowReschedulesFIFO(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	var order []int
	sched.Spawn(func(co *Coroutine) {
		co.YieldNow()
		order = append(order, 1)
	})
	sched.Spawn(func(co *Coroutine) {
		order = append(order, 2)
	})
	sched.Run()
	require.Equal(t, []int{2, 1}, order)
}

// TestPanicPropagatePolicyMarksDone verifies a panicking coroutine under
// PanicPropagate ends Done without crashing the scheduler.
func TestPanicPropagatePolicyMarksDone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PanicPolicy = PanicPropagate
	sched, err := NewScheduler(cfg)
	require.NoError(t, err)

	other := false
	co := sched.Spawn(func(c *Coroutine) {
		panic("boom")
	})
	sched.Spawn(func(c *Coroutine) {
		other = true
	})

	sched.Run()

	require.Equal(t, StateDone, co.State())
	require.True(t, other)
}

// TestRunUntilIdleDoesNotBlockOnTimers: RunUntilIdle drains only what is
// already runnable and returns without waiting out a pending timer.
func TestRunUntilIdleDoesNotBlockOnTimers(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	started := false
	co := sched.Spawn(func(co *Coroutine) {
		started = true
		After(time.Hour).Recv()
	})
	sched.RunUntilIdle()
	require.True(t, started)
	require.Equal(t, StateSuspended, co.State())
}

// TestNewSchedulerRejectsShareStack covers the Open Question #3 resolution:
// ShareStack: true must be rejected at construction, not silently ignored.
func TestNewSchedulerRejectsShareStack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ShareStack = true
	sched, err := NewScheduler(cfg)
	require.Error(t, err)
	require.ErrorIs(t, err, errUnsupportedConfig)
	require.Nil(t, sched)
}

// TestFreeYieldNowFunction covers the exported package-level YieldNow,
// required as the yield_now() external symbol (§6's Runtime row).
func TestFreeYieldNowFunction(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	var order []int
	sched.Spawn(func(co *Coroutine) {
		YieldNow()
		order = append(order, 1)
	})
	sched.Spawn(func(co *Coroutine) {
		order = append(order, 2)
	})
	sched.Run()
	require.Equal(t, []int{2, 1}, order)
}
