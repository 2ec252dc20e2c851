package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation is returned when a candidate document or point fails validation.
	ErrValidation = errors.New("validation failed")
	// ErrIndexOutOfRange is returned when a point index does not exist.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrFormat is returned for malformed input text.
	ErrFormat = errors.New("malformed input")
	// ErrConfiguration is returned when the schema or settings cannot be loaded.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound is returned when a map does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a map with the same ID already exists.
	ErrConflict = errors.New("already exists")
)

// ValidationResult is the outcome of validating a candidate.
// Errors is empty if and only if Valid is true.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// Valid returns a passing result.
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid returns a failing result carrying errs.
func Invalid(errs ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}

// Append adds errs to the result, flipping it to invalid when any are given.
func (r ValidationResult) Append(errs ...string) ValidationResult {
	if len(errs) == 0 {
		return r
	}
	out := ValidationResult{Valid: false, Errors: make([]string, 0, len(r.Errors)+len(errs))}
	out.Errors = append(out.Errors, r.Errors...)
	out.Errors = append(out.Errors, errs...)
	return out
}

// ValidationError carries a failed ValidationResult through an error return.
type ValidationError struct {
	Result ValidationResult
}

// NewValidationError wraps a failed result.
func NewValidationError(r ValidationResult) *ValidationError {
	return &ValidationError{Result: r}
}

func (e *ValidationError) Error() string {
	if len(e.Result.Errors) == 0 {
		return ErrValidation.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(e.Result.Errors, "; "))
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
