package store

import (
	"errors"
	"fmt"
)

// Backend identifies which store surface raised an error.
type Backend string

// Backend values.
const (
	BackendVector   Backend = "vector"
	BackendMetadata Backend = "metadata"
	BackendGraph    Backend = "graph"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Error is a typed store error carrying the backend that raised it. The
// retriever uses the backend tag to pick a degradation tier.
type Error struct {
	backend Backend
	err     error
}

// NewError wraps err as a store error for the given backend.
func NewError(backend Backend, err error) *Error {
	return &Error{backend: backend, err: err}
}

// Backend returns the surface that raised the error.
func (e *Error) Backend() Backend { return e.backend }

func (e *Error) Error() string {
	return fmt.Sprintf("%s store: %v", e.backend, e.err)
}

func (e *Error) Unwrap() error { return e.err }

// BackendOf returns the backend tag of err if it is a store error.
func BackendOf(err error) (Backend, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se.backend, true
	}
	return "", false
}
