package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur while loading datasets or
// persisting reports.
var (
	// ErrDatasetNotFound indicates that the requested dataset does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrMalformedRecord indicates that a stored record could not be parsed.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrReportNotFound indicates that no report exists for a run ID.
	ErrReportNotFound = errors.New("report not found")

	// ErrConfigNotFound indicates that required configuration is missing.
	ErrConfigNotFound = errors.New("configuration not found")
)

// RecordError locates a parsing failure inside an external file.
type RecordError struct {
	// Path is the file that failed to parse.
	Path string

	// Line is the 1-based line number of the offending record, or 0 when
	// the failure is not tied to one line.
	Line int

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for RecordError.
func (e *RecordError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *RecordError) Unwrap() error { return e.Err }

// NewRecordError creates a RecordError for the given location.
func NewRecordError(path string, line int, err error) *RecordError {
	return &RecordError{Path: path, Line: line, Err: err}
}
