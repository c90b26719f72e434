package domain

import (
	"errors"
	"fmt"
)

// Scoring errors. All of them are precondition failures on the current input
// and are not retryable.
var (
	// ErrInvalidCurveLength indicates mismatched coordinate sequence lengths
	// within a curve, or a candidate with fewer than two samples.
	ErrInvalidCurveLength = errors.New("invalid curve length")

	// ErrDegenerateCandidate indicates that no two candidate samples have
	// distinct first coordinates, so no interpolation bracket exists.
	ErrDegenerateCandidate = errors.New("degenerate candidate")

	// ErrEmptyTemplate indicates a template curve with no samples.
	ErrEmptyTemplate = errors.New("empty template")

	// ErrNonFiniteSample indicates a NaN or infinite coordinate value.
	ErrNonFiniteSample = errors.New("non-finite sample")

	// ErrUnknownChannel indicates a pairing that references a channel the
	// trajectory does not record.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrNoScores indicates that no pairing produced a usable score.
	ErrNoScores = errors.New("no scores provided for aggregation")
)

// Common domain errors that can occur during state and configuration handling.
var (
	// ErrInvalidState indicates that a State operation received invalid input.
	ErrInvalidState = errors.New("invalid state")

	// ErrKeyNotFound indicates that a requested StateKey does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// CurveError records which repetition and pairing a scoring failure belongs to.
type CurveError struct {
	// Repetition is the zero-based index of the repetition being scored.
	Repetition int

	// Pairing is the channel pairing being scored.
	Pairing Pairing

	// Err is the underlying scoring error.
	Err error
}

// Error implements the error interface for CurveError.
func (e *CurveError) Error() string {
	return fmt.Sprintf("repetition %d, pairing %s: %v", e.Repetition, e.Pairing.Label(), e.Err)
}

// Unwrap returns the underlying error, supporting errors.Is and errors.As.
func (e *CurveError) Unwrap() error { return e.Err }

// NewCurveError creates a new CurveError with the given details.
func NewCurveError(repetition int, pairing Pairing, err error) *CurveError {
	return &CurveError{
		Repetition: repetition,
		Pairing:    pairing,
		Err:        err,
	}
}

// StateError represents an error that occurred during State operations.
type StateError struct {
	// Key is the name of the state key involved in the failed operation.
	Key string

	// Operation describes what operation was being performed when the error occurred.
	Operation string

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	return fmt.Sprintf("state error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *StateError) Unwrap() error { return e.Err }

// NewStateError creates a new StateError with the given details.
func NewStateError(key string, operation string, err error) *StateError {
	return &StateError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// Unwrap lets callers match validation failures with ErrInvalidConfiguration.
func (e *ValidationError) Unwrap() error { return ErrInvalidConfiguration }

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}
