package arsenal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMustCurrentOutsideCoroutinePanics: coroutine-only primitives must
// reject use outside any coroutine context (§4.2).
func TestMustCurrentOutsideCoroutinePanics(t *testing.T) {
	require.PanicsWithValue(t, ErrNoCoroutineContext, func() {
		mustCurrent()
	})
}

// TestCurrentIdentifiesRunningCoroutine: current() resolves to exactly the
// coroutine whose goroutine is calling it, never another's.
func TestCurrentIdentifiesRunningCoroutine(t *testing.T) {
	sched, err := NewScheduler(DefaultConfig())
	require.NoError(t, err)
	var seen []uint64
	a := sched.Spawn(func(co *Coroutine) {
		c, ok := current()
		require.True(t, ok)
		seen = append(seen, c.ID())
	})
	b := sched.Spawn(func(co *Coroutine) {
		c, ok := current()
		require.True(t, ok)
		seen = append(seen, c.ID())
	})
	sched.Run()
	require.ElementsMatch(t, []uint64{a.ID(), b.ID()}, seen)
}
