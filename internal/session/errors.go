package session

import "errors"

var (
	// ErrNotStarted is returned when an operation is submitted before
	// Start has been called.
	ErrNotStarted = errors.New("session not started")

	// ErrNotReady is returned when an operation is submitted while the
	// session is still warming up.
	ErrNotReady = errors.New("session still warming up")

	// ErrClosed is returned when an operation is submitted after the
	// session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrWarmupFailed is returned by Start when the automation surface
	// never became responsive within the warm-up budget.
	ErrWarmupFailed = errors.New("automation surface did not become " +
		"responsive")
)
