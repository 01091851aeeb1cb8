// Package gls provides goroutine-local storage for the "current coroutine"
// lookup (§4.2's current()). §9 explicitly warns against a process-wide
// scheduler singleton; a process-wide *table keyed by goroutine identity* is
// a different thing — it is the standard Go idiom for emulating true
// thread-local storage, since each of arsenal's coroutines is pinned to one
// dedicated goroutine for its entire lifetime (see SPEC_FULL.md §3's "Stack
// representation" note).
//
// No pack example ships a usable goroutine-id library (the sibling
// goroutineid package in joeycumines-go-utilpkg has no retrievable source,
// and no other example imports one), so this narrow piece of plumbing is
// grounded on the standard library's own runtime.Stack, the well-known
// portable idiom for this exact problem when an assembly-based id accessor
// isn't available (see DESIGN.md).
package gls

import (
	"runtime"
	"strconv"
	"sync"
)

var (
	mu    sync.RWMutex
	table = make(map[uint64]any, 64)
)

// ID returns a best-effort identifier for the calling goroutine, parsed from
// the header line of its own stack trace ("goroutine 123 [running]:"). It
// is stable for the lifetime of the goroutine and unique among live
// goroutines, but is not part of any public Go API guarantee.
func ID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if len(b) <= len(prefix) {
		return 0
	}
	b = b[len(prefix):]
	i := 0
	for i < len(b) && b[i] != ' ' {
		i++
	}
	id, _ := strconv.ParseUint(string(b[:i]), 10, 64)
	return id
}

// Set associates v with the calling goroutine.
func Set(v any) {
	id := ID()
	mu.Lock()
	table[id] = v
	mu.Unlock()
}

// Get returns the value associated with the calling goroutine, if any.
func Get() (any, bool) {
	id := ID()
	mu.RLock()
	v, ok := table[id]
	mu.RUnlock()
	return v, ok
}

// Clear removes any value associated with the calling goroutine.
func Clear() {
	id := ID()
	mu.Lock()
	delete(table, id)
	mu.Unlock()
}
