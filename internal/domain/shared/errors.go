package shared

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a domain error for callers that need to map it to a
// transport-level response or decide on retry behaviour. Conflict errors are
// never retried automatically; the caller must re-fetch and re-decide.
type ErrorKind string

const (
	KindValidation    ErrorKind = "VALIDATION"
	KindConflict      ErrorKind = "CONFLICT"
	KindAuthorization ErrorKind = "AUTHORIZATION"
	KindPeriodLocked  ErrorKind = "PERIOD_LOCKED"
	KindNotFound      ErrorKind = "NOT_FOUND"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error of the given kind
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a Validation error
func NewValidationError(code, message string) *DomainError {
	return NewDomainError(KindValidation, code, message)
}

// NewConflictError creates a Conflict error
func NewConflictError(code, message string) *DomainError {
	return NewDomainError(KindConflict, code, message)
}

// NewAuthorizationError creates an Authorization error
func NewAuthorizationError(code, message string) *DomainError {
	return NewDomainError(KindAuthorization, code, message)
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError(KindValidation, "ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(KindConflict, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(KindAuthorization, "UNAUTHORIZED", "Not authorized to perform this action")
	ErrForbidden           = NewDomainError(KindAuthorization, "FORBIDDEN", "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError(KindValidation, "INVALID_STATE", "Operation not allowed in current state")
)

// PeriodLockedError is returned when a mutation touches dates that fall inside
// locked accounting periods and no override was supplied. It carries the
// offending "TYPE:KEY" strings so callers can surface them.
type PeriodLockedError struct {
	LockedPeriods []string
}

// Error implements the error interface
func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("operation touches locked periods: %s", strings.Join(e.LockedPeriods, ", "))
}

// NewPeriodLockedError creates a PeriodLockedError for the given period keys
func NewPeriodLockedError(lockedPeriods []string) *PeriodLockedError {
	return &PeriodLockedError{LockedPeriods: lockedPeriods}
}

// KindOf extracts the error kind from an error, unwrapping as needed.
// Unknown errors report an empty kind.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	var ple *PeriodLockedError
	if errors.As(err, &ple) {
		return KindPeriodLocked
	}
	return ""
}

// IsConflict reports whether the error is a concurrency conflict
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsNotFound reports whether the error is a not-found error
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
