// Package errs provides the structured error type returned by docvault operations.
//
// Errors carry a Kind so callers can branch on the failure class. They are turned
// into display strings only at the outermost boundary (CLI output, admin JSON).
package errs

import (
	"errors"
)

// Kind is a machine-readable failure class.
type Kind string

const (
	KindUnknown        Kind = "UNKNOWN"
	KindPathResolution Kind = "PATH_RESOLUTION" // data directory unavailable
	KindOpen           Kind = "OPEN"            // database could not be opened
	KindMigration      Kind = "MIGRATION"       // a schema migration failed
	KindSourceIO       Kind = "SOURCE_IO"       // file-side I/O: import source or export target
	KindStoreIO        Kind = "STORE_IO"        // insert, blob write or commit failed
	KindNotFound       Kind = "NOT_FOUND"
	KindCanceled       Kind = "CANCELED"
)

// Error is the docvault error type.
type Error struct {
	Kind     Kind              // failure class
	Message  string            // short description, safe to show to a user
	Metadata map[string]string // extra context for logs
	Cause    error             // wrapped underlying error
}

// Error includes the cause so logged errors keep full detail.
func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error with a kind and message.
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
	}
}

// Wrap creates an error that wraps an underlying cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Cause:   cause,
	}
}

// WrapWithMetadata creates an error with both metadata and a cause.
func WrapWithMetadata(kind Kind, message string, metadata map[string]string, cause error) *Error {
	return &Error{
		Kind:     kind,
		Message:  message,
		Metadata: metadata,
		Cause:    cause,
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Display returns the short, user-facing description of err.
func Display(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
