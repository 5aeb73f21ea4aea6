package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeNetwork       ErrorType = "network"
	ErrorTypeExtraction    ErrorType = "extraction"
	ErrorTypeStorage       ErrorType = "storage"
	ErrorTypeExhausted     ErrorType = "exhausted"
	ErrorTypeInternal      ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. Two domain errors match when their types match.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Wrap returns a fresh error with the sentinel's type and message and err as
// its cause. Sentinels themselves are shared and must not be mutated.
func Wrap(sentinel *DomainError, err error) *DomainError {
	return NewDomainError(sentinel.Type, sentinel.Message, err)
}

// Wrapf is Wrap with a formatted message replacing the sentinel's.
func Wrapf(sentinel *DomainError, err error, format string, args ...interface{}) *DomainError {
	return NewDomainError(sentinel.Type, fmt.Sprintf(format, args...), err)
}

var (
	// Validation Errors
	ErrEmptyPrompt = NewDomainError(ErrorTypeValidation, "prompt cannot be empty", nil)

	// Not Found Errors
	ErrProviderNotFound = NewDomainError(ErrorTypeNotFound, "provider not found", nil)

	// Configuration Errors
	ErrProviderNotConfigured = NewDomainError(ErrorTypeConfiguration, "provider credential not configured", nil)

	// Network Errors
	ErrProviderUnreachable = NewDomainError(ErrorTypeNetwork, "provider request failed", nil)

	// Extraction Errors
	ErrProviderBadResponse = NewDomainError(ErrorTypeExtraction, "provider response has unexpected shape", nil)

	// Storage Errors
	ErrCacheUnavailable = NewDomainError(ErrorTypeStorage, "cache operation failed", nil)

	// Terminal Errors
	ErrAllProvidersFailed = NewDomainError(ErrorTypeExhausted, "all providers are currently unavailable", nil)

	// Internal Errors
	ErrInternal = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

// Helper functions for error type checking

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsConfigurationError checks if an error is a configuration error
func IsConfigurationError(err error) bool {
	return isType(err, ErrorTypeConfiguration)
}

// IsNetworkError checks if an error is a network error
func IsNetworkError(err error) bool {
	return isType(err, ErrorTypeNetwork)
}

// IsExtractionError checks if an error is an extraction error
func IsExtractionError(err error) bool {
	return isType(err, ErrorTypeExtraction)
}

// IsStorageError checks if an error is a storage error
func IsStorageError(err error) bool {
	return isType(err, ErrorTypeStorage)
}

// IsExhaustedError checks if every provider candidate failed
func IsExhaustedError(err error) bool {
	return isType(err, ErrorTypeExhausted)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// GetErrorType returns the error type of a domain error, or internal
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ErrorTypeInternal
}

// GetErrorDetails returns the details of a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}
