package unit

import "errors"

// Validation errors for extracted units.
var (
	ErrEmptyIdentifier = errors.New("unit identifier must not be empty")
	ErrUnknownType     = errors.New("unit type is not in the known set")
	ErrMissingVia      = errors.New("dependency is missing its via key")
)
