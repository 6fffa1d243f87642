package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound represents a business key that does not resolve
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeStore represents graph store query, mutate or commit failures
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeForbidden represents an ownership or permission check failure
	ErrorTypeForbidden ErrorType = "forbidden"
	// ErrorTypeValidation represents rejected input
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeContext represents context cancellation/timeout errors
	ErrorTypeContext ErrorType = "context"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// Base returns the embedded base error so typed errors can be classified
// through errors.As.
func (e *BaseError) Base() *BaseError {
	return e
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Resolution Errors

// ErrNotFound is returned when a username, postId, commentId or hashtag does not resolve
type ErrNotFound struct {
	*BaseError
	Kind string
	Key  string
}

func NewNotFound(kind, key string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s not found: %s", kind, key), nil),
		Kind:      kind,
		Key:       key,
	}
}

// Store Errors

// ErrStoreFailed is returned when a graph store operation fails; the transaction has been discarded
type ErrStoreFailed struct {
	*BaseError
	Operation string
}

func NewStoreFailed(operation string, err error) *ErrStoreFailed {
	errType := ErrorTypeStore
	if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
		errType = ErrorTypeContext
	}
	return &ErrStoreFailed{
		BaseError: NewBaseError(errType, fmt.Sprintf("store operation failed: %s", operation), err),
		Operation: operation,
	}
}

// Permission Errors

// ErrForbidden is returned when the caller does not own the entity it tries to change
type ErrForbidden struct {
	*BaseError
	Username string
	Target   string
}

func NewForbidden(username, target string) *ErrForbidden {
	return &ErrForbidden{
		BaseError: NewBaseError(ErrorTypeForbidden, fmt.Sprintf("%s may not modify %s", username, target), nil),
		Username:  username,
		Target:    target,
	}
}

// Validation Errors

// ErrInvalidInput is returned when an argument is rejected before touching the store
type ErrInvalidInput struct {
	*BaseError
	Field  string
	Reason string
}

func NewInvalidInput(field, reason string) *ErrInvalidInput {
	return &ErrInvalidInput{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("invalid %s: %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Outcomes

// Result is the tagged outcome of a core operation.
type Result string

const (
	ResultOk         Result = "ok"
	ResultNotFound   Result = "not_found"
	ResultForbidden  Result = "forbidden"
	ResultInvalid    Result = "invalid"
	ResultStoreError Result = "store_error"
)

// Outcome classifies err into the tagged result a caller can branch on.
// Context timeouts and cancellations count as store errors.
func Outcome(err error) Result {
	if err == nil {
		return ResultOk
	}
	var typed interface{ Base() *BaseError }
	if !stderrors.As(err, &typed) {
		return ResultStoreError
	}
	switch typed.Base().Type {
	case ErrorTypeNotFound:
		return ResultNotFound
	case ErrorTypeForbidden:
		return ResultForbidden
	case ErrorTypeValidation:
		return ResultInvalid
	default:
		return ResultStoreError
	}
}

// Helper functions

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	var typed interface{ Base() *BaseError }
	if stderrors.As(err, &typed) {
		return typed.Base().Type == errType
	}
	return false
}

// IsNotFound reports whether err is a resolution failure
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsRetryable checks if an error is retryable. Commit conflicts are already
// retried inside the engine; this informs callers about the remaining failures.
func IsRetryable(err error) bool {
	if IsErrorType(err, ErrorTypeContext) {
		return false
	}
	return IsErrorType(err, ErrorTypeStore)
}
