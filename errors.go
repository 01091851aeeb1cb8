package arsenal

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// Sentinel user errors (§7: "user errors" — surfaced as panics of typed values,
// mirroring how Go's own native channels signal send-on-closed and double-close:
// both are programmer usage violations, not steady-state control flow).
var (
	// ErrSendOnClosed is raised when Send is called on a closed channel.
	ErrSendOnClosed = errors.New("arsenal: send on closed channel")
	// ErrCloseOnClosed is raised when Close is called on an already-closed channel.
	ErrCloseOnClosed = errors.New("arsenal: close of already-closed channel")
	// ErrNoCoroutineContext is raised when a coroutine-only primitive (Send, Recv,
	// YieldNow, Sleep, Select) is called outside of a running coroutine.
	ErrNoCoroutineContext = errors.New("arsenal: operation requires a coroutine context")

	// errUnsupportedConfig marks a Config field combination NewScheduler refuses.
	errUnsupportedConfig = errors.New("arsenal: unsupported configuration")
)

// IsWouldBlock reports whether err is iox's would-block control-flow signal.
// Delegates to code.hybscloud.com/iox for ecosystem consistency with the
// bounded queue (internal/bmpmc), which returns iox.ErrWouldBlock directly.
func IsWouldBlock(err error) bool { return iox.IsWouldBlock(err) }

// IsClosed reports whether err is one of the closed-channel usage errors
// (send on closed, double close). §6 pairs this with IsWouldBlock as the
// two sentinel predicates user code is expected to check panics/errors
// against rather than comparing to the sentinels directly.
func IsClosed(err error) bool {
	return errors.Is(err, ErrSendOnClosed) || errors.Is(err, ErrCloseOnClosed)
}

// IOErrorKind classifies environmental I/O failures (§6, §7).
type IOErrorKind uint8

const (
	// IOWouldBlock indicates a non-blocking syscall would have blocked.
	IOWouldBlock IOErrorKind = iota
	// IOCancelled indicates a registration's fd was closed by another coroutine
	// while this one was suspended waiting on it.
	IOCancelled
	// IOEof indicates the peer closed its end of the connection.
	IOEof
	// IOOther wraps any other platform error code.
	IOOther
)

func (k IOErrorKind) String() string {
	switch k {
	case IOWouldBlock:
		return "would-block"
	case IOCancelled:
		return "cancelled"
	case IOEof:
		return "eof"
	default:
		return "other"
	}
}

// IOError is the environmental-error kind from §6/§7: a classified I/O failure
// surfaced with a kind enum plus, for IOOther, the wrapped platform error.
type IOError struct {
	Kind IOErrorKind
	Err  error
}

func (e *IOError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("arsenal: io error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("arsenal: io error (%s)", e.Kind)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIOErrorKind reports whether err is an *IOError of the given kind.
func IsIOErrorKind(err error, kind IOErrorKind) bool {
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return ioErr.Kind == kind
	}
	return false
}

// FatalError models the third error kind (§7): stack overflow, context-switch
// corruption, or invariant violation. Fatal errors are never caught by user
// select/channel code; only the scheduler's top-level recover observes them,
// and the panic policy decides whether to abort the process or log-and-continue.
type FatalError struct {
	Reason string
	Cause  error
}

func (e *FatalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("arsenal: fatal: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("arsenal: fatal: %s", e.Reason)
}

func (e *FatalError) Unwrap() error { return e.Cause }

// StackOverflow constructs the fatal error for a coroutine stack overflow.
// Nothing in arsenal calls it or sets a stack ceiling: a goroutine stack
// overflow is reported by Go's runtime as its own unrecoverable fatal error.
func StackOverflow(cause error) *FatalError {
	return &FatalError{Reason: "stack overflow", Cause: cause}
}
