// Package common holds the error taxonomy shared by services and handlers.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed client input.
	ErrValidation = errors.New("validation error")
	// ErrConflict is returned when an identity with the same username exists.
	ErrConflict = errors.New("already exists")
	// ErrUnauthenticated means the request carried no usable credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnauthorized means the supplied username/password pair was rejected.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound covers both missing records and records owned by someone else.
	ErrNotFound = errors.New("not found")
	// ErrRateLimited is returned when a client exceeds its request quota.
	ErrRateLimited = errors.New("rate limited")
	// ErrStoreUnavailable is a transient store failure, safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInternal is anything unanticipated.
	ErrInternal = errors.New("internal error")
)

// ValidationError describes a single rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError returns a *ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
