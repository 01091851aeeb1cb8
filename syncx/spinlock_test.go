package syncx

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpinlockMutualExclusion(t *testing.T) {
	var l Spinlock
	var counter int
	var wg sync.WaitGroup
	const goroutines, perGoroutine = 8, 1000
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				l.Lock()
				counter++
				l.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, goroutines*perGoroutine, counter)
}

func TestSpinlockTryLock(t *testing.T) {
	var l Spinlock
	require.True(t, l.TryLock())
	require.False(t, l.TryLock())
	l.Unlock()
	require.True(t, l.TryLock())
}
