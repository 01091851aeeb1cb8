package bmpmc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	q := New[int](4)
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Enqueue(i))
	}
	require.ErrorIs(t, q.Enqueue(99), ErrWouldBlock)
	for i := 0; i < 4; i++ {
		v, err := q.Dequeue()
		require.NoError(t, err)
		require.Equal(t, i, v)
	}
	_, err := q.Dequeue()
	require.ErrorIs(t, err, ErrWouldBlock)
}

func TestCapRoundsUpToPowerOfTwo(t *testing.T) {
	q := New[int](3)
	require.Equal(t, 4, q.Cap())
}

func TestLenTracksEnqueueDequeue(t *testing.T) {
	q := New[string](8)
	require.Equal(t, 0, q.Len())
	require.NoError(t, q.Enqueue("a"))
	require.NoError(t, q.Enqueue("b"))
	require.Equal(t, 2, q.Len())
	_, err := q.Dequeue()
	require.NoError(t, err)
	require.Equal(t, 1, q.Len())
}

func TestConcurrentProducersConsumers(t *testing.T) {
	q := New[int](64)
	const producers, perProducer = 4, 200
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for q.Enqueue(i) != nil {
				}
			}
		}()
	}

	got := 0
	var mu sync.Mutex
	var consumerWg sync.WaitGroup
	consumerWg.Add(producers)
	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	for c := 0; c < producers; c++ {
		go func() {
			defer consumerWg.Done()
			for {
				select {
				case <-done:
					for {
						if _, err := q.Dequeue(); err != nil {
							return
						}
						mu.Lock()
						got++
						mu.Unlock()
					}
				default:
					if _, err := q.Dequeue(); err == nil {
						mu.Lock()
						got++
						mu.Unlock()
					}
				}
			}
		}()
	}
	consumerWg.Wait()
	require.Equal(t, producers*perProducer, got)
}
