package socketcan

import "errors"

// Sentinel errors, classified per the taxonomy callers care about:
// transient non-readiness, elapsed deadlines, exhausted transmit queues and
// released handles are all distinguishable via errors.Is.
var (
	// ErrClosed is returned by any operation on a socket whose handle has
	// been released with Close.
	ErrClosed = errors.New("socketcan: socket closed")

	// ErrWouldBlock is returned by Try operations when the handle is not
	// immediately ready. The caller may retry, poll, or fall back to a
	// suspending variant.
	ErrWouldBlock = errors.New("socketcan: operation would block")

	// ErrTimeout is returned by deadline-bounded operations when the
	// deadline elapses first. The handle remains usable.
	ErrTimeout = errors.New("socketcan: operation timed out")

	// ErrTxQueueFull is returned when the kernel reports the interface
	// transmit queue as full (ENOBUFS). Retryable, unlike permanent
	// transport errors.
	ErrTxQueueFull = errors.New("socketcan: transmit queue full")
)
