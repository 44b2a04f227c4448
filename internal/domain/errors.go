// Package domain defines core types, interfaces, and errors for the SCIM server.
package domain

import "fmt"

// SCIM error type keywords (RFC 7644 §3.12) carried by the typed errors
// below and surfaced in the error response envelope.
const (
	ScimTypeInvalidFilter = "invalidFilter"
	ScimTypeInvalidPath   = "invalidPath"
	ScimTypeInvalidValue  = "invalidValue"
	ScimTypeNoTarget      = "noTarget"
	ScimTypeUniqueness    = "uniqueness"
	ScimTypeMutability    = "mutability"
	ScimTypeInvalidVers   = "invalidVers"
)

// InvalidFilterError indicates a filter expression that failed to tokenize,
// parse, or reference a known operator.
type InvalidFilterError struct {
	Message string
}

func (e *InvalidFilterError) Error() string { return e.Message }

// InvalidPathError indicates a PATCH path that could not be classified or
// resolved against the target resource.
type InvalidPathError struct {
	Message string
}

func (e *InvalidPathError) Error() string { return e.Message }

// InvalidValueError indicates a value whose type or shape does not fit the
// target attribute.
type InvalidValueError struct {
	Message string
}

func (e *InvalidValueError) Error() string { return e.Message }

// NoTargetError indicates a value-path filter that matched no elements on an
// operation that requires a target.
type NoTargetError struct {
	Message string
}

func (e *NoTargetError) Error() string { return e.Message }

// UniquenessError indicates an identifier collision within a tenant scope.
type UniquenessError struct {
	Message string
}

func (e *UniquenessError) Error() string { return e.Message }

// VersionMismatchError indicates a failed If-Match precondition.
type VersionMismatchError struct {
	Message string
}

func (e *VersionMismatchError) Error() string { return e.Message }

// MutabilityError indicates an attempt to modify a read-only attribute.
type MutabilityError struct {
	Message string
}

func (e *MutabilityError) Error() string { return e.Message }

// NotFoundError indicates a resource was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// ValidationError indicates invalid input outside the SCIM-specific kinds.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ErrInvalidFilter creates an InvalidFilterError with a formatted message.
func ErrInvalidFilter(format string, args ...interface{}) *InvalidFilterError {
	return &InvalidFilterError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidPath creates an InvalidPathError with a formatted message.
func ErrInvalidPath(format string, args ...interface{}) *InvalidPathError {
	return &InvalidPathError{Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidValue creates an InvalidValueError with a formatted message.
func ErrInvalidValue(format string, args ...interface{}) *InvalidValueError {
	return &InvalidValueError{Message: fmt.Sprintf(format, args...)}
}

// ErrNoTarget creates a NoTargetError with a formatted message.
func ErrNoTarget(format string, args ...interface{}) *NoTargetError {
	return &NoTargetError{Message: fmt.Sprintf(format, args...)}
}

// ErrUniqueness creates a UniquenessError with a formatted message.
func ErrUniqueness(format string, args ...interface{}) *UniquenessError {
	return &UniquenessError{Message: fmt.Sprintf(format, args...)}
}

// ErrVersionMismatch creates a VersionMismatchError with a formatted message.
func ErrVersionMismatch(format string, args ...interface{}) *VersionMismatchError {
	return &VersionMismatchError{Message: fmt.Sprintf(format, args...)}
}

// ErrMutability creates a MutabilityError with a formatted message.
func ErrMutability(format string, args ...interface{}) *MutabilityError {
	return &MutabilityError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrPatchOp annotates an error with the 1-based index of the failing
// PATCH operation, preserving the wrapped type for errors.As.
func ErrPatchOp(index int, err error) error {
	return fmt.Errorf("operation %d: %w", index+1, err)
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
