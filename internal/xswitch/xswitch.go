// Package xswitch is the context switcher (§4.1): the one primitive the rest
// of the runtime builds suspension on.
//
// The distilled spec models this as register/stack-pointer save-restore, the
// way a systems-language implementation would. Go gives no userspace
// primitive for that (stacks are heap-allocated, GC-relocatable, and grown by
// the runtime itself), so arsenal grounds the switcher on the same technique
// the teacher repo (alphadose/zenq's ThreadParker, see
// lib_runtime_linkage.go) reaches for: linking directly against the
// runtime's own parking primitive via go:linkname. Unlike the teacher, this
// package does not additionally link runtime.gopark/goready/mcall/casgstatus
// or the raw *g pointer obtained by its GetG() — those require a
// per-GOARCH assembly stub the retrieved example pack did not include, and
// arsenal cannot validate hand-written assembly without building it (see
// DESIGN.md). sync.runtime_Semacquire/runtime_Semrelease is the same
// technique at one layer up: it is the exact primitive sync.Mutex and
// sync.WaitGroup are themselves built on, has been stable across Go versions
// for a decade, and gives the identical "block until released" contract
// without touching a raw goroutine pointer.
package xswitch

import _ "unsafe" // for go:linkname

//go:linkname runtimeSemacquire sync.runtime_Semacquire
func runtimeSemacquire(s *uint32)

//go:linkname runtimeSemrelease sync.runtime_Semrelease
func runtimeSemrelease(s *uint32, handoff bool, skipframes int)

// Gate is the context-switch handoff primitive. Park suspends the calling
// goroutine until a matching Ready call releases it; Ready never blocks.
// At most one outstanding Ready is needed to release one Park — if Ready
// runs before Park, the semaphore count is already positive and Park
// returns immediately without blocking, exactly the "switch cannot fail"
// contract §4.1 requires.
//
// Gate is the Go-native analogue of the switch(from, to) primitive: the
// scheduler's switchTo "saves" the caller into its own Gate (by parking on
// it after handing off) and "restores" the target by calling Ready on the
// target's Gate.
type Gate struct {
	sema uint32
}

// Park blocks the calling goroutine until Ready is called.
func (g *Gate) Park() { runtimeSemacquire(&g.sema) }

// Ready releases one blocked (or future) Park call. Never blocks.
func (g *Gate) Ready() { runtimeSemrelease(&g.sema, false, 0) }
