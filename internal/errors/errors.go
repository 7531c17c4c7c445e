// Package errors holds the error taxonomy shared by the marketplace services.
//
// Handlers map these values to HTTP status codes; services and repositories
// wrap them with fmt.Errorf("...: %w", err) so callers can match with Is/As.
package errors

import (
	stderrors "errors"
	"fmt"
)

var (
	// ErrNotFound covers both an absent entity and an ownership mismatch.
	ErrNotFound = stderrors.New("not found")

	// ErrConflict is returned when a uniqueness rule is violated.
	ErrConflict = stderrors.New("conflict")

	// ErrInvalidState is returned when an operation is not allowed in the
	// aggregate's current state, e.g. checkout on an empty cart.
	ErrInvalidState = stderrors.New("invalid state")

	// ErrUpstreamUnavailable marks a failed collaborator call. It is absorbed
	// by the caller and never reaches the end user.
	ErrUpstreamUnavailable = stderrors.New("upstream unavailable")

	ErrUnauthorized = stderrors.New("unauthorized")
	ErrForbidden    = stderrors.New("forbidden")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a validation error for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if stderrors.As(err, &v) {
		return v, true
	}
	return nil, false
}
