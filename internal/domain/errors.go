package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeStructure  ErrorType = "structure"
	ErrorTypeConversion ErrorType = "conversion"
	ErrorTypeExtraction ErrorType = "extraction"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeIO         ErrorType = "io"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeCapacity   ErrorType = "capacity"
	ErrorTypeCanceled   ErrorType = "canceled"
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Detail returns the message with the cause appended, without the type tag.
// It is the form recorded in status records and returned to HTTP clients.
func (e *DomainError) Detail() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Message, Describe(e.Err))
	}
	return e.Message
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func StructureError(message string, err error) *DomainError {
	return NewError(ErrorTypeStructure, message, err)
}

func ConversionError(message string, err error) *DomainError {
	return NewError(ErrorTypeConversion, message, err)
}

func ExtractionError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtraction, message, err)
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}

func NotFoundError(message string, err error) *DomainError {
	return NewError(ErrorTypeNotFound, message, err)
}

func CapacityError(message string, err error) *DomainError {
	return NewError(ErrorTypeCapacity, message, err)
}

func CanceledError(message string, err error) *DomainError {
	return NewError(ErrorTypeCanceled, message, err)
}

// HTTPStatus maps an error to the HTTP status code recorded for it.
// Errors that are not DomainErrors are treated as internal failures.
func HTTPStatus(err error) int {
	var de *DomainError
	if !errors.As(err, &de) {
		return http.StatusInternalServerError
	}

	switch de.Type {
	case ErrorTypeValidation, ErrorTypeStructure:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeCapacity, ErrorTypeCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Describe returns the client-facing description of err.
func Describe(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Detail()
	}
	return err.Error()
}
