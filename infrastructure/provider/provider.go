// Package provider supplies embedding backends for the retrieval pipeline.
// A backend turns text into fixed-dimension vectors; everything else in the
// pipeline treats vectors as opaque.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrRateLimited indicates the provider rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrDimensionMismatch indicates the provider returned vectors of an
	// unexpected dimension. This is fatal: mixed-dimension vectors poison
	// the similarity index, so callers must not retry past it.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Embedder turns a batch of texts into one vector per text, in order.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float64, error)

	// Dimension returns the vector dimension this embedder produces.
	Dimension() int
}

// Error carries the failing operation and upstream status for an embedding
// failure.
type Error struct {
	Operation  string
	StatusCode int
	Message    string
	Err        error
}

// NewError creates a provider Error.
func NewError(operation string, statusCode int, message string, err error) *Error {
	return &Error{
		Operation:  operation,
		StatusCode: statusCode,
		Message:    message,
		Err:        err,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }
