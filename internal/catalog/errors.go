package catalog

import (
	"errors"
	"fmt"
	"strings"
)

// The error taxonomy shared by every store and consumer of the catalog. Stores
// wrap these sentinels with additional context; callers should test for them
// using errors.Is rather than comparing error strings.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("already exists")
	ErrValidation   = errors.New("validation failed")
)

type (
	// FieldError describes a single field which failed validation.
	FieldError struct {
		Field   string `json:"field"`
		Message string `json:"message"`
	}

	// ValidationError is returned when a request to the catalog contains
	// invalid input. It unwraps to ErrValidation.
	ValidationError struct {
		Fields []FieldError
	}
)

func (err *ValidationError) Error() string {
	if len(err.Fields) == 0 {
		return ErrValidation.Error()
	}

	msgs := make([]string, len(err.Fields))
	for k, v := range err.Fields {
		msgs[k] = fmt.Sprintf("%s %s", v.Field, v.Message)
	}

	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (err *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError is a convinience constructor for a ValidationError
// concerning only a single field.
func NewValidationError(field string, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// NotFoundf returns an error wrapping ErrNotFound with the formatted message.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Unauthorizedf returns an error wrapping ErrUnauthorized with the formatted message.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnauthorized)
}

// Conflictf returns an error wrapping ErrConflict with the formatted message.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}
