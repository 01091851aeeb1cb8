package gls

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetGetPerGoroutine(t *testing.T) {
	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			defer wg.Done()
			Set(i)
			v, ok := Get()
			require.True(t, ok)
			require.Equal(t, i, v)
			Clear()
			_, ok = Get()
			require.False(t, ok)
		}()
	}
	wg.Wait()
}

func TestGetWithoutSet(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, ok := Get()
		require.False(t, ok)
	}()
	<-done
}
