package errors

import (
	"fmt"
	"strings"
)

// ErrorCategory classifies failures so callers can decide how to react
type ErrorCategory string

const (
	// Critical errors that should stop the component
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryBroker        ErrorCategory = "BROKER"
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Non-critical errors that can be retried or degraded around
	ErrorCategoryNetwork    ErrorCategory = "NETWORK"
	ErrorCategoryTimeout    ErrorCategory = "TIMEOUT"
	ErrorCategoryValidation ErrorCategory = "VALIDATION"
	ErrorCategoryOrder      ErrorCategory = "ORDER"
	ErrorCategoryStorage    ErrorCategory = "STORAGE"

	// Temporary errors
	ErrorCategoryTemporary ErrorCategory = "TEMPORARY"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
)

// PlatformError is a categorized error with component context
type PlatformError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Retryable  bool
}

// Error implements the error interface
func (e *PlatformError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *PlatformError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *PlatformError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the caller outright
func (e *PlatformError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal ||
		e.Category == ErrorCategoryCredentials ||
		e.Category == ErrorCategoryConfiguration
}

// New creates a new categorized platform error
func New(category ErrorCategory, component, operation, message string) *PlatformError {
	return &PlatformError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Retryable: isRetryableCategory(category),
	}
}

// Wrap wraps an existing error with platform error context
func Wrap(err error, category ErrorCategory, component, operation string) *PlatformError {
	if err == nil {
		return nil
	}
	return &PlatformError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Retryable:  isRetryableCategory(category),
	}
}

// WithRetryable overrides the retryable flag
func (e *PlatformError) WithRetryable(retryable bool) *PlatformError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryNetwork, ErrorCategoryTimeout, ErrorCategoryTemporary, ErrorCategoryRateLimit:
		return true
	case ErrorCategoryFatal, ErrorCategoryCredentials, ErrorCategoryConfiguration, ErrorCategoryValidation:
		return false
	default:
		return false
	}
}

// Categorize classifies a generic error from a component boundary
func Categorize(err error, component, operation string) *PlatformError {
	if err == nil {
		return nil
	}
	if perr, ok := err.(*PlatformError); ok {
		return perr
	}

	msg := strings.ToLower(err.Error())

	if strings.Contains(msg, "timeout") || strings.Contains(msg, "context deadline exceeded") {
		return Wrap(err, ErrorCategoryTimeout, component, operation)
	}
	if strings.Contains(msg, "connection") || strings.Contains(msg, "network") ||
		strings.Contains(msg, "dns") || strings.Contains(msg, "dial") {
		return Wrap(err, ErrorCategoryNetwork, component, operation)
	}
	if strings.Contains(msg, "unauthorized") || strings.Contains(msg, "authentication") ||
		strings.Contains(msg, "api key") {
		return Wrap(err, ErrorCategoryCredentials, component, operation)
	}
	if strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") {
		return Wrap(err, ErrorCategoryRateLimit, component, operation)
	}
	if strings.Contains(msg, "rejected") || strings.Contains(msg, "insufficient") {
		return Wrap(err, ErrorCategoryOrder, component, operation).WithRetryable(false)
	}

	return Wrap(err, ErrorCategoryTemporary, component, operation)
}

// Common constructors

func NewBrokerError(component, operation string, err error) *PlatformError {
	return Wrap(err, ErrorCategoryBroker, component, operation)
}

func NewStorageError(component, operation string, err error) *PlatformError {
	return Wrap(err, ErrorCategoryStorage, component, operation)
}

func NewValidationError(component, operation, message string) *PlatformError {
	return New(ErrorCategoryValidation, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *PlatformError {
	return New(ErrorCategoryConfiguration, component, operation, message)
}

func NewOrderError(component, operation string, err error) *PlatformError {
	return Wrap(err, ErrorCategoryOrder, component, operation)
}
