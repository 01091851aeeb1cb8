package arsenal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSelectDefaultOnly is the §8 boundary behavior: a select with only a
// default case always takes it.
func TestSelectDefaultOnly(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	var result int
	sched.Spawn(func(co *Coroutine) {
		result = NewSelect().Default().Run()
	})
	sched.Run()
	require.Equal(t, SelectDefault, result)
}

// TestSelectTimeout is scenario 3 of §8: select over recv(ch) and
// timeout(50ms), no sender appears, the timeout branch fires at monotonic
// time >= 50ms after the call.
func TestSelectTimeout(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	ch := NewChannel[int]()
	const timeout = 50 * time.Millisecond

	var result int
	var elapsed time.Duration
	sched.Spawn(func(co *Coroutine) {
		var slot int
		start := time.Now()
		b := Recv(NewSelect(), ch, &slot)
		b.Timeout(timeout)
		result = b.Run()
		elapsed = time.Since(start)
	})
	sched.Run()

	require.Equal(t, SelectTimeout, result)
	require.GreaterOrEqual(t, elapsed, timeout)
}

// TestSelectFanIn is scenario 5 of §8: two producers send 100 items each
// into their own buffered channels; one consumer selects-recv over both
// 200 times. All 200 items observed, no duplicates, no drops.
func TestSelectFanIn(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	a := NewBufferedChannel[int](8)
	b := NewBufferedChannel[int](8)

	sched.Spawn(func(co *Coroutine) {
		for i := 0; i < 100; i++ {
			a.Send(i)
		}
	})
	sched.Spawn(func(co *Coroutine) {
		for i := 0; i < 100; i++ {
			b.Send(1000 + i)
		}
	})

	seen := make(map[int]bool, 200)
	sched.Spawn(func(co *Coroutine) {
		for i := 0; i < 200; i++ {
			var va, vb int
			sel := Recv(Recv(NewSelect(), a, &va), b, &vb)
			switch sel.Run() {
			case 0:
				seen[va] = true
			case 1:
				seen[vb] = true
			}
		}
	})

	sched.Run()

	require.Len(t, seen, 200)
	for i := 0; i < 100; i++ {
		require.True(t, seen[i])
		require.True(t, seen[1000+i])
	}
}

// TestSelectSendCase covers a Select that resolves via a send case rather
// than a recv case.
func TestSelectSendCase(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	ch := NewChannel[string]()

	var received string
	var chosen int
	sched.Spawn(func(co *Coroutine) {
		received, _ = ch.Recv()
	})
	sched.Spawn(func(co *Coroutine) {
		b := Send(NewSelect(), ch, "hello")
		chosen = b.Run()
	})

	sched.Run()

	require.Equal(t, 0, chosen)
	require.Equal(t, "hello", received)
}

// TestSelectRetractsLosingWaiter verifies a losing recv case's waiter is
// unlinked from its channel rather than left parked: once the winning case
// (the timeout) fires, the loser channel's receivers list must be empty, so
// a later direct Send on it completes immediately against a fresh Recv
// rather than handing off to the stale select waiter.
func TestSelectRetractsLosingWaiter(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	loser := NewChannel[int]()
	selectDone := NewChannel[struct{}]()

	var selectResult int
	var lateRecv int
	sched.Spawn(func(co *Coroutine) {
		var slot int
		b := Recv(NewSelect(), loser, &slot)
		b.Timeout(10 * time.Millisecond)
		selectResult = b.Run()
		selectDone.Close()
	})
	sched.Spawn(func(co *Coroutine) {
		_, _ = selectDone.Recv()
		loser.Send(42)
	})
	sched.Spawn(func(co *Coroutine) {
		_, _ = selectDone.Recv()
		v, ok := loser.Recv()
		require.True(t, ok)
		lateRecv = v
	})

	sched.Run()

	require.Equal(t, SelectTimeout, selectResult)
	require.Equal(t, 42, lateRecv)
}
