package lfqueue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 100; i++ {
		q.Push(i)
	}
	for i := 0; i < 100; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		require.Equal(t, i, v)
	}
	_, ok := q.Pop()
	require.False(t, ok)
}

func TestConcurrentPushPop(t *testing.T) {
	q := New[int]()
	const producers, perProducer = 4, 1000
	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()

	count := 0
	for {
		if _, ok := q.Pop(); !ok {
			break
		}
		count++
	}
	require.Equal(t, producers*perProducer, count)
}
