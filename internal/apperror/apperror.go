// Package apperror defines the application's error taxonomy.
//
// Storage and service code wrap one of the sentinel errors below; the HTTP
// layer maps them to status codes in exactly one place (writeError). Callers
// check with errors.Is — the sentinels survive any amount of %w wrapping.
//
// Note what is deliberately NOT an error in this application: a watchlist
// entry whose model label or object id no longer resolves. Models and rows
// can disappear from under the watchlist at any time; code that encounters a
// stale reference reports "not on watchlist" or no-ops instead of returning
// anything from this package.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")
)

// AppError carries a sentinel for classification plus a human-readable
// message for the API response.
type AppError struct {
	Err     error  // sentinel (classifies the error)
	Message string // human-readable error message
	Field   string // optional: input field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound reports that a resource doesn't exist. HTTP handlers map this
// to 404.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// ValidationFailed reports malformed client input — a missing model label,
// a non-numeric object id. HTTP handlers map this to 400.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a uniqueness collision, e.g. registering an email that
// is already taken. HTTP handlers map this to 409.
func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden reports that the caller lacks permission. HTTP handlers map
// this to 403.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}
