// Package apperror defines the domain error taxonomy shared by every layer.
//
// Services return these errors; only the HTTP layer decides which status code
// each one becomes. Callers match on the sentinel values with errors.Is and
// pull out the human-readable message with errors.As(&*AppError).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthenticated = errors.New("unauthenticated")
)

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type AppError struct {
	Err     error        // sentinel
	Message string       // Human-readable error message
	Field   string       // Optional: field causing the error
	Details []FieldError // Optional: every invalid field, for validation errors
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Details: []FieldError{{Field: field, Message: message}},
	}
}

// Invalid reports several field failures at once. The first field becomes
// Field so single-field callers keep working.
func Invalid(details []FieldError) *AppError {
	e := &AppError{
		Err:     ErrValidation,
		Message: "invalid input",
		Details: details,
	}
	if len(details) > 0 {
		e.Field = details[0].Field
	}
	return e
}

// Conflict reports a storage-level consistency failure such as a constraint
// violation inside a transaction.
func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthenticated is returned when an operation needs a verified identity
// and none was supplied.
func Unauthenticated(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthenticated,
		Message: message,
	}
}
