package bridge

import (
	"errors"
	"fmt"

	"github.com/dgower/olbridge/internal/mapi"
)

var (
	// ErrNotFound is returned when a supplied identifier does not resolve
	// to a live item in the store. It aliases the backend sentinel so
	// callers can match either.
	ErrNotFound = mapi.ErrNotFound

	// ErrFolderNotFound is returned when a logical folder name does not
	// resolve to any folder in the store. It is surfaced to the caller
	// and never retried.
	ErrFolderNotFound = errors.New("folder not found")

	// ErrNotReady is returned when an operation is attempted before the
	// session finished warming up, or after it was closed.
	ErrNotReady = errors.New("session not ready")
)

// ValidationError reports caller-supplied input that fails a domain
// constraint. It is produced before any call reaches the store, so a
// mutating operation that fails validation has changed nothing.
type ValidationError struct {
	// Field is the name of the offending input field.
	Field string

	// Reason describes the constraint that was violated.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// validationErrf constructs a ValidationError for the given field.
func validationErrf(field, format string, args ...any) error {
	return &ValidationError{
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

// AutomationError reports a fault raised by the automation surface during
// an operation: the remote process was unreachable, busy, or failed the
// call. It wraps the underlying fault for debugging and is never silently
// swallowed.
type AutomationError struct {
	// Op names the bridge operation that observed the fault.
	Op string

	// Err is the underlying fault.
	Err error
}

// Error implements the error interface.
func (e *AutomationError) Error() string {
	return fmt.Sprintf("automation fault in %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying fault.
func (e *AutomationError) Unwrap() error {
	return e.Err
}

// automationErr wraps err as an AutomationError for the named operation.
// A nil err returns nil so call sites can wrap unconditionally.
func automationErr(op string, err error) error {
	if err == nil {
		return nil
	}

	return &AutomationError{Op: op, Err: err}
}

// ErrorKind classifies an operation error into the machine-readable kinds
// exposed by the CLI and MCP surfaces.
type ErrorKind string

const (
	// KindNotFound means the identifier did not resolve to a live item.
	KindNotFound ErrorKind = "not_found"

	// KindFolderNotFound means a logical folder name did not resolve.
	KindFolderNotFound ErrorKind = "folder_not_found"

	// KindValidation means caller input failed a domain constraint
	// before any store call was attempted.
	KindValidation ErrorKind = "validation"

	// KindAutomation means the automation surface raised a fault.
	KindAutomation ErrorKind = "automation"
)

// Classify maps an operation error to its ErrorKind. Unrecognized errors
// classify as automation faults, the catch-all for transport trouble.
func Classify(err error) ErrorKind {
	var vErr *ValidationError

	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound

	case errors.Is(err, ErrFolderNotFound):
		return KindFolderNotFound

	case errors.As(err, &vErr):
		return KindValidation

	default:
		return KindAutomation
	}
}
