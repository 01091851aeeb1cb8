package arsenal

import (
	"fmt"
	"os"
	"strconv"
)

// PollerBackend selects the platform multiplexer the event loop drives (§4.7).
type PollerBackend string

const (
	PollerAuto   PollerBackend = "auto"
	PollerEpoll  PollerBackend = "epoll"
	PollerKqueue PollerBackend = "kqueue"
	PollerIOCP   PollerBackend = "iocp"
)

// PanicPolicy selects what happens when a running coroutine panics (§4.3, §7).
type PanicPolicy string

const (
	// PanicAbort kills the process with a diagnostic. This is the default,
	// matching §4.3's stated default.
	PanicAbort PanicPolicy = "abort"
	// PanicPropagate marks the coroutine finished, logs, and continues the
	// scheduler.
	PanicPropagate PanicPolicy = "propagate"
)

// SchedulerPolicy names the ready-queue discipline. Only "fifo" exists today;
// the field is kept so Config's shape matches §6 exactly and so a future
// policy can be added without an API break.
type SchedulerPolicy string

const SchedulerFIFO SchedulerPolicy = "fifo"

// Config is the configuration recognized at runtime init, per §6's table.
type Config struct {
	// DefaultStackSize is the requested per-coroutine stack size. Default
	// 64 KiB. It is carried in Config only: coroutines run on ordinary
	// goroutine stacks, which Go's runtime grows on its own, and nothing in
	// arsenal applies this value (or its [2 KiB, 8 MiB] clamp in
	// clampedStackSize) to them.
	DefaultStackSize int
	// ShareStack, if true, requests the "share stack" strategy from the
	// original spec. NewScheduler rejects this with an error: see
	// DESIGN.md's Open Question resolution #3.
	ShareStack bool
	// SchedulerPolicy is always "fifo" today.
	SchedulerPolicy SchedulerPolicy
	// PollerBackend names epoll/kqueue/iocp or "auto". Every value yields
	// the one backend built for the current GOOS; it does not select a
	// different multiplexer.
	PollerBackend PollerBackend
	// PanicPolicy selects abort-the-process or log-and-continue.
	PanicPolicy PanicPolicy
}

const (
	minStackSize     = 2 * 1024
	maxStackSize     = 8 * 1024 * 1024
	defaultStackSize = 64 * 1024
)

// DefaultConfig returns the configuration documented in §6, before any
// environment-variable overrides are applied.
func DefaultConfig() Config {
	return Config{
		DefaultStackSize: defaultStackSize,
		ShareStack:       false,
		SchedulerPolicy:  SchedulerFIFO,
		PollerBackend:    PollerAuto,
		PanicPolicy:      PanicAbort,
	}
}

// ConfigFromEnv returns DefaultConfig with ARSENAL_STACK_SIZE and
// ARSENAL_PANIC_POLICY overrides applied, per §6's "Environment variables".
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("ARSENAL_STACK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.DefaultStackSize = n
		}
	}
	if v := os.Getenv("ARSENAL_PANIC_POLICY"); v != "" {
		switch PanicPolicy(v) {
		case PanicAbort, PanicPropagate:
			cfg.PanicPolicy = PanicPolicy(v)
		}
	}
	return cfg
}

func (c Config) clampedStackSize() int {
	switch {
	case c.DefaultStackSize < minStackSize:
		return minStackSize
	case c.DefaultStackSize > maxStackSize:
		return maxStackSize
	default:
		return c.DefaultStackSize
	}
}

func (c Config) validate() error {
	if c.ShareStack {
		return fmt.Errorf("arsenal: share-stack mode is not supported (see DESIGN.md Open Question #3): %w", errUnsupportedConfig)
	}
	switch c.SchedulerPolicy {
	case SchedulerFIFO:
	default:
		return fmt.Errorf("arsenal: unknown scheduler policy %q: %w", c.SchedulerPolicy, errUnsupportedConfig)
	}
	switch c.PanicPolicy {
	case PanicAbort, PanicPropagate:
	default:
		return fmt.Errorf("arsenal: unknown panic policy %q: %w", c.PanicPolicy, errUnsupportedConfig)
	}
	return nil
}
