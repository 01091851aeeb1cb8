package arsenal

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestPingPongRendezvous is scenario 2 of §8: one token bounced between two
// coroutines over two unbuffered channels for N iterations with no leaked
// waiter records (the run terminates with both coroutines Done).
func TestPingPongRendezvous(t *testing.T) {
	const iterations = 200
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)

	ping := NewChannel[int]()
	pong := NewChannel[int]()

	var received []int
	var a, b *Coroutine
	a = sched.Spawn(func(co *Coroutine) {
		for i := 0; i < iterations; i++ {
			ping.Send(i)
			v, ok := pong.Recv()
			require.True(t, ok)
			received = append(received, v)
		}
	})
	b = sched.Spawn(func(co *Coroutine) {
		for i := 0; i < iterations; i++ {
			v, ok := ping.Recv()
			require.True(t, ok)
			pong.Send(v * 2)
		}
	})

	sched.Run()

	require.Equal(t, StateDone, a.State())
	require.Equal(t, StateDone, b.State())
	require.Len(t, received, iterations)
	for i, v := range received {
		require.Equal(t, i*2, v)
	}
}

// TestBufferedProducerConsumer is scenario 1 of §8: capacity-4 buffered
// channel, producer sends 1..1000, consumer sums; expected 500500 and the
// channel ends non-closed.
func TestBufferedProducerConsumer(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	ch := NewBufferedChannel[int](4)

	var sum int
	var producer, consumer *Coroutine
	producer = sched.Spawn(func(co *Coroutine) {
		for i := 1; i <= 1000; i++ {
			ch.Send(i)
		}
	})
	consumer = sched.Spawn(func(co *Coroutine) {
		for i := 0; i < 1000; i++ {
			v, ok := ch.Recv()
			require.True(t, ok)
			sum += v
		}
	})

	sched.Run()

	require.Equal(t, 500500, sum)
	require.False(t, ch.IsClosed())
	require.Equal(t, StateDone, producer.State())
	require.Equal(t, StateDone, consumer.State())
}

// TestCloseWakesAllReceivers is scenario 4 of §8: three coroutines parked on
// Recv, a fourth closes the channel; all three observe the closed signal.
func TestCloseWakesAllReceivers(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	ch := NewChannel[int]()

	var mu sync.Mutex
	oks := make([]bool, 0, 3)
	for i := 0; i < 3; i++ {
		sched.Spawn(func(co *Coroutine) {
			_, ok := ch.Recv()
			mu.Lock()
			oks = append(oks, ok)
			mu.Unlock()
		})
	}
	sched.Spawn(func(co *Coroutine) {
		ch.Close()
	})

	sched.Run()

	require.Len(t, oks, 3)
	for _, ok := range oks {
		require.False(t, ok)
	}
	require.True(t, ch.IsClosed())
}

// TestSendOnClosedPanics covers the ErrSendOnClosed usage-violation path.
func TestSendOnClosedPanics(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	ch := NewChannel[int]()
	ch.Close()

	var panicked any
	sched.Spawn(func(co *Coroutine) {
		defer func() { panicked = recover() }()
		ch.Send(1)
	})

	sched.Run()
	require.Equal(t, ErrSendOnClosed, panicked)
}

// TestCloseIdempotence: only the first Close succeeds.
func TestCloseIdempotence(t *testing.T) {
	ch := NewChannel[int]()
	ch.Close()
	require.PanicsWithValue(t, ErrCloseOnClosed, func() { ch.Close() })
	require.True(t, ch.IsClosed())
}

// TestIsClosedMatchesBothUsageErrors covers the §6 IsClosed/IsWouldBlock
// pairing: IsClosed recognizes both ErrSendOnClosed and ErrCloseOnClosed,
// and rejects unrelated errors.
func TestIsClosedMatchesBothUsageErrors(t *testing.T) {
	require.True(t, IsClosed(ErrSendOnClosed))
	require.True(t, IsClosed(ErrCloseOnClosed))
	require.False(t, IsClosed(ErrNoCoroutineContext))
	require.False(t, IsClosed(nil))
}

// TestBufferedCloseDrainsBuffer verifies a receiver observes the remaining
// buffered values before the closed signal.
func TestBufferedCloseDrainsBuffer(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	ch := NewBufferedChannel[int](4)
	ch.TrySend(1)
	ch.TrySend(2)

	var got []int
	var oks []bool
	sched.Spawn(func(co *Coroutine) {
		for i := 0; i < 3; i++ {
			v, ok := ch.Recv()
			got = append(got, v)
			oks = append(oks, ok)
		}
	})
	sched.Spawn(func(co *Coroutine) {
		ch.Close()
	})

	sched.Run()

	require.Equal(t, []int{1, 2, 0}, got)
	require.Equal(t, []bool{true, true, false}, oks)
}
