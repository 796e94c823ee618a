// Package errs defines the error kinds shared by every rifflux component.
//
// The core never returns raw database or filesystem errors to a caller;
// every failure is classified into one of the kinds below so the tool
// boundary (internal/mcp) and the background worker (internal/jobqueue)
// can decide, respectively, how to present it and whether to retry it.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry and presentation purposes.
type Kind string

const (
	// NotFound means the requested chunk_id or path is not indexed.
	NotFound Kind = "not_found"
	// Transient means a retryable failure such as a database lock/busy
	// condition or a recoverable I/O error. Only the background worker
	// retries this kind.
	Transient Kind = "transient"
	// Schema means the database structure is incompatible with what the
	// code expects. Fatal for the operation; the operator must rebuild.
	Schema Kind = "schema"
	// InvalidInput means malformed input (bad query, out-of-range top_k,
	// unknown mode). Rejected at the boundary, never reaches the core.
	InvalidInput Kind = "invalid_input"
	// EmbedderUnavailable means a query embedding could not be produced.
	// Semantic search degrades to an empty result; lexical is unaffected.
	EmbedderUnavailable Kind = "embedder_unavailable"
	// Internal is anything else: corrupt vector length, unexpected state.
	Internal Kind = "internal"
)

// Error is the structured error type returned by the core.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is enables errors.Is(err, target) to match by Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping an existing error.
// Returns nil if err is nil.
func Wrap(kind Kind, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: err}
}

// KindOf extracts the Kind from err, or Internal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// IsRetryable reports whether err should be retried by the background worker.
func IsRetryable(err error) bool {
	return KindOf(err) == Transient
}
