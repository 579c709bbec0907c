package core

import (
	"errors"
	"fmt"
)

// Sentinel errors matched by the typed errors below through errors.Is.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrSourceUnavailable = errors.New("match source unavailable")
)

// ValidationError reports a bad input value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an unknown indicator, hunt job or match id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError reports an operation that is illegal in the resource's current state,
// such as deleting a running hunt job.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Resource, e.ID, e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NewConflictError builds a ConflictError.
func NewConflictError(resource, id, reason string) error {
	return &ConflictError{Resource: resource, ID: id, Reason: reason}
}

// SourceUnavailableError wraps a failure of a match source to complete a query.
type SourceUnavailableError struct {
	Source MatchSourceKind
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s source unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

func (e *SourceUnavailableError) Is(target error) bool { return target == ErrSourceUnavailable }
