package models

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory is an explicit tag carried on error values so that callers
// never have to match on error-message text to decide how to react.
type ErrorCategory string

const (
	// CategoryValidation marks bad configuration input, surfaced
	// synchronously and never retried.
	CategoryValidation ErrorCategory = "VALIDATION"
	// CategoryAuthentication marks adapter-reported credential failures.
	// Retrying a credential failure cannot succeed, so these fail fast.
	CategoryAuthentication ErrorCategory = "AUTHENTICATION"
	// CategoryConnection marks transient network failures. Retried.
	CategoryConnection ErrorCategory = "CONNECTION"
	// CategoryTimeout marks bounded-timeout expiry on a remote call. Retried.
	CategoryTimeout ErrorCategory = "TIMEOUT"
	// CategoryCancelled marks operator or shutdown cancellation of an
	// in-flight execution.
	CategoryCancelled ErrorCategory = "CANCELLED"
	// CategoryInternal is the fallback for anything unrecognized.
	CategoryInternal ErrorCategory = "INTERNAL"
)

// CategorizedError wraps an underlying error with its category tag and the
// source it occurred against.
type CategorizedError struct {
	Category ErrorCategory
	Source   string
	Message  string
	Wrapped  error
}

func (e *CategorizedError) Error() string {
	if e.Source != "" && e.Wrapped != nil {
		return fmt.Sprintf("%s error for %s: %s: %v", e.Category, e.Source, e.Message, e.Wrapped)
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Category, e.Message, e.Wrapped)
	}
	if e.Source != "" {
		return fmt.Sprintf("%s error for %s: %s", e.Category, e.Source, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Category, e.Message)
}

func (e *CategorizedError) Unwrap() error {
	return e.Wrapped
}

// NewCategorizedError creates a tagged error.
func NewCategorizedError(category ErrorCategory, source, message string, wrapped error) *CategorizedError {
	return &CategorizedError{Category: category, Source: source, Message: message, Wrapped: wrapped}
}

// NewValidationError tags a configuration-input failure.
func NewValidationError(field, message string) *CategorizedError {
	return &CategorizedError{Category: CategoryValidation, Source: field, Message: message}
}

// NewAuthenticationError tags a credential failure against a source.
func NewAuthenticationError(source string, wrapped error) *CategorizedError {
	return &CategorizedError{Category: CategoryAuthentication, Source: source, Message: "authentication failed", Wrapped: wrapped}
}

// NewConnectionError tags a transient network failure against a source.
func NewConnectionError(source string, wrapped error) *CategorizedError {
	return &CategorizedError{Category: CategoryConnection, Source: source, Message: "connection failed", Wrapped: wrapped}
}

// NewTimeoutError tags a timed-out remote call against a source.
func NewTimeoutError(source string, wrapped error) *CategorizedError {
	return &CategorizedError{Category: CategoryTimeout, Source: source, Message: "operation timed out", Wrapped: wrapped}
}

// NewInternalError tags an unexpected failure inside the engine itself,
// such as a datastore write going wrong mid-execution.
func NewInternalError(source string, wrapped error) *CategorizedError {
	return &CategorizedError{Category: CategoryInternal, Source: source, Message: "internal failure", Wrapped: wrapped}
}

// NewCancelledError tags cancellation of an in-flight operation.
func NewCancelledError(source string, wrapped error) *CategorizedError {
	return &CategorizedError{Category: CategoryCancelled, Source: source, Message: "operation cancelled", Wrapped: wrapped}
}

// CategoryOf extracts the category tag from an error chain. Context
// cancellation and deadline expiry are recognized even when untagged;
// everything else unrecognized maps to CategoryInternal.
func CategoryOf(err error) ErrorCategory {
	if err == nil {
		return ""
	}
	var ce *CategorizedError
	if errors.As(err, &ce) {
		return ce.Category
	}
	if errors.Is(err, context.Canceled) {
		return CategoryCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	return CategoryInternal
}

// IsTransient reports whether an error category is worth retrying.
// Only connection and timeout failures can plausibly succeed on retry.
func IsTransient(category ErrorCategory) bool {
	return category == CategoryConnection || category == CategoryTimeout
}
