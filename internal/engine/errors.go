package engine

import (
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/mcp-kgmatch-libsql-go/internal/matching"
)

var (
	// ErrValidation matches every request validation failure.
	ErrValidation = errors.New("invalid request")
	// ErrNotFound matches lookups of ids absent from the supplied data.
	ErrNotFound = errors.New("not found")
	// ErrMissingEmbedding is wrapped by the validation error returned when a
	// query entity has no vector.
	ErrMissingEmbedding = matching.ErrMissingEmbedding
)

// ValidationError describes a rejected request field.
//
// It matches ErrValidation under errors.Is; the underlying cause (if any) can
// be accessed via errors.Unwrap.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.cause }

// NotFoundError reports an id missing from the caller-supplied data.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func invalid(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}
