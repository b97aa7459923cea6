package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity or persisted artifact does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// Catalog Errors.

	// ErrCorruptData indicates a persisted artifact could not be parsed.
	ErrCorruptData = errors.New("corrupt data")

	// ErrIndexCorrupt indicates the vector index and catalog store disagree.
	// The catalog must not serve queries in this state.
	ErrIndexCorrupt = errors.New("index corrupt")

	// ErrDimensionMismatch indicates a query vector does not match the index dimension.
	// Usually an embedding model and index version skew.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrOutOfRange indicates a catalog position past the end of the store.
	// Callers skip the offending hit and continue.
	ErrOutOfRange = errors.New("position out of range")

	// ErrCatalogNotLoaded indicates no catalog has been loaded yet.
	ErrCatalogNotLoaded = errors.New("catalog not loaded")

	// Query Errors.

	// ErrInvalidQuery indicates the query or its parameters were rejected
	// before any index or embedding work.
	ErrInvalidQuery = errors.New("invalid query")

	// Service Errors.

	// ErrEmbeddingUnavailable indicates the embedding function failed or is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrIndexUnavailable indicates the vector index is not loaded or was closed.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// Conversation Errors.

	// ErrSessionExpired indicates the session exceeded its idle lifetime.
	ErrSessionExpired = errors.New("session expired")
)

// Error carries the kind of failure plus the operation and field that caused it,
// so callers can decide whether retrying with a different query makes sense.
// errors.Is matches against Kind.
type Error struct {
	// Op is the operation that failed, e.g. "search" or "load catalog".
	Op string

	// Field names the offending parameter, if any.
	Field string

	// Kind is one of the sentinel errors above.
	Kind error

	// Err is the underlying cause, if any.
	Err error
}

// NewError builds an *Error.
func NewError(op, field string, kind, cause error) *Error {
	return &Error{Op: op, Field: field, Kind: kind, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Field)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// FieldOf returns the offending field recorded in err, or "".
func FieldOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Field
	}
	return ""
}
