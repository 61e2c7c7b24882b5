// =============================================================================
// OPEX Variance Pipeline - Error Taxonomy
// =============================================================================
//
// Every failure surfaced by the pipeline is one of three kinds:
//
//   NotFoundError   - a declared input location does not exist
//   ValidationError - a structural precondition was violated (missing
//                     columns, empty table, bad parameter)
//   UnexpectedError - anything else (I/O, corrupt input), with the cause kept
//
// Callers classify errors with errors.As. ExitCode maps each kind to the
// process exit status used by the CLI.
//
// =============================================================================

package validation

import (
	"errors"
	"fmt"
)

// Exit codes returned by the CLI for each error kind.
const (
	ExitOK         = 0
	ExitUnexpected = 1
	ExitValidation = 2
	ExitNotFound   = 3
)

// =============================================================================
// VALIDATION ERROR
// =============================================================================

// ValidationError reports a violated structural precondition.
type ValidationError struct {
	// Message is a human-readable description of the problem.
	Message string

	// Fields lists every offending column or parameter known when the
	// error was raised.
	Fields []string

	// Cause is the lower-level error, if any.
	Cause error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates a validation error for the given fields.
func NewValidationError(message string, fields ...string) *ValidationError {
	return &ValidationError{Message: message, Fields: fields}
}

// WrapValidationError creates a validation error that keeps its cause.
func WrapValidationError(message string, cause error) *ValidationError {
	return &ValidationError{Message: message, Cause: cause}
}

// =============================================================================
// NOT FOUND ERROR
// =============================================================================

// NotFoundError reports a missing input location. It is never retried.
type NotFoundError struct {
	// Path is the location that does not exist.
	Path string

	// Hint tells the operator how to produce the missing input.
	Hint string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("input data file not found: %s\n%s", e.Path, e.Hint)
	}
	return fmt.Sprintf("input data file not found: %s", e.Path)
}

// NewNotFoundError creates a not found error for path.
func NewNotFoundError(path, hint string) *NotFoundError {
	return &NotFoundError{Path: path, Hint: hint}
}

// =============================================================================
// UNEXPECTED ERROR
// =============================================================================

// UnexpectedError wraps any other failure with the operation that hit it.
type UnexpectedError struct {
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *UnexpectedError) Error() string {
	return fmt.Sprintf("unexpected error during %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *UnexpectedError) Unwrap() error {
	return e.Cause
}

// NewUnexpectedError wraps cause. Errors that are already classified are
// returned unchanged.
func NewUnexpectedError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	if IsClassified(cause) {
		return cause
	}
	return &UnexpectedError{Op: op, Cause: cause}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsClassified reports whether err already carries one of the three kinds.
func IsClassified(err error) bool {
	var ue *UnexpectedError
	return IsValidation(err) || IsNotFound(err) || errors.As(err, &ue)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsNotFound(err):
		return ExitNotFound
	case IsValidation(err):
		return ExitValidation
	default:
		return ExitUnexpected
	}
}
