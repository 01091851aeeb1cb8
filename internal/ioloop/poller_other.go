//go:build !linux && !darwin

package ioloop

import (
	"errors"
	"time"
)

// ErrUnsupported is returned by every stubPoller method: arsenal's I/O
// primitives degrade to "no poller available" rather than failing to
// build on platforms the retrieved pack's eventloop package does not cover
// (it ships only poller_linux.go/poller_darwin.go; no poller_windows.go
// was present in the pack to ground an IOCP backend on, see DESIGN.md).
// Coroutines, channels, select, and timers all work identically here —
// only non-blocking network I/O (arsenal's Listener/Conn) is unavailable.
var ErrUnsupported = errors.New("ioloop: no poller backend for this platform")

type stubPoller struct{}

func New() Poller { return stubPoller{} }

func (stubPoller) Init() error                                 { return ErrUnsupported }
func (stubPoller) Close() error                                { return nil }
func (stubPoller) RegisterFD(int, Events, Callback) error      { return ErrUnsupported }
func (stubPoller) ModifyFD(int, Events) error                  { return ErrUnsupported }
func (stubPoller) UnregisterFD(int) error                      { return ErrUnsupported }
func (stubPoller) Poll(time.Duration) (int, error)             { return 0, ErrUnsupported }
