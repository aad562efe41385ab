package utils

import (
	"errors"
	"fmt"
)

// Sentinel errors for the three recoverable error kinds the engine
// defines (allocation, corrupt region, malformed query) plus a
// not-found lookup error (precondition violations are panics, not errors).
var (
	ErrAllocFailed   = errors.New("allocation failed")
	ErrCorruptRegion = errors.New("corrupt region")
	ErrMalformedQuery = errors.New("malformed query")
	ErrNotFound      = errors.New("not found")
)

// DBError wraps a sentinel kind with operation context, the same way the
// teacher's H5Error carries a context string over an underlying cause.
type DBError struct {
	Context string
	Kind    error
	Cause   error
}

// Error implements the error interface.
func (e *DBError) Error() string {
	if e.Cause != nil && e.Cause != e.Kind {
		return fmt.Sprintf("%s: %v: %v", e.Context, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %v", e.Context, e.Kind)
}

// Unwrap exposes the sentinel kind first so errors.Is matches it.
func (e *DBError) Unwrap() error {
	return e.Kind
}

// WrapError creates a contextual error chained to cause. Returns nil
// when cause is nil so call sites can `return WrapError(...)` unconditionally.
func WrapError(context string, cause error) error {
	if cause == nil {
		return nil
	}
	return &DBError{Context: context, Kind: cause, Cause: cause}
}

// WrapKind creates a contextual error of a specific sentinel kind,
// recording the original cause separately in the Cause field. Unwrap
// yields only the kind; the cause is reached through errors.As and Cause.
func WrapKind(context string, kind, cause error) error {
	return &DBError{Context: context, Kind: kind, Cause: cause}
}
