// Package toolserver implements the framed tool protocol: a registry of
// named operations with schema-checked parameters, served over stdio or
// HTTP.
package toolserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/codescope/codescope/domain/store"
	"github.com/codescope/codescope/infrastructure/breaker"
	"github.com/codescope/codescope/infrastructure/provider"
)

// Kind is the stable error tag callers branch on.
type Kind string

// Kind values.
const (
	KindValidation         Kind = "validation"
	KindUnknownTool        Kind = "unknown_tool"
	KindParse              Kind = "parse"
	KindUnsupported        Kind = "unsupported"
	KindTimeout            Kind = "timeout"
	KindCircuitOpen        Kind = "circuit_open"
	KindStoreUnavailable   Kind = "store_unavailable"
	KindEmbeddingFailure   Kind = "embedding_failure"
	KindRateLimited        Kind = "rate_limited"
	KindConfirmationDenied Kind = "confirmation_denied"
	KindSQLRejected        Kind = "sql_rejected"
	KindExecution          Kind = "execution"
)

// Error is a tagged tool failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError creates a tagged Error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates a tagged Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError tags an underlying error.
func WrapError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// KindOf classifies an arbitrary error into a Kind. Tagged errors keep
// their kind; known infrastructure failures map to their category;
// everything else is an execution error.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	switch {
	case errors.Is(err, breaker.ErrOpen):
		return KindCircuitOpen
	case errors.Is(err, provider.ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		return KindStoreUnavailable
	}
	var providerErr *provider.Error
	if errors.As(err, &providerErr) {
		return KindEmbeddingFailure
	}
	return KindExecution
}
