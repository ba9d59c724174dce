package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Validation Errors
	ErrorCodeValidation    ErrorCode = "VALIDATION_ERROR"
	ErrorCodeInvalidAmount ErrorCode = "INVALID_AMOUNT"

	// Not Found Errors (*_NOT_FOUND)
	ErrorCodePaymentNotFound    ErrorCode = "PAYMENT_NOT_FOUND"
	ErrorCodeCourseNotFound     ErrorCode = "COURSE_NOT_FOUND"
	ErrorCodeLearnerNotFound    ErrorCode = "LEARNER_NOT_FOUND"
	ErrorCodeEnrollmentNotFound ErrorCode = "ENROLLMENT_NOT_FOUND"

	// Payment lifecycle errors
	ErrorCodeAlreadyPaid            ErrorCode = "ALREADY_PAID"
	ErrorCodeInvalidTransition      ErrorCode = "INVALID_TRANSITION"
	ErrorCodeInvalidPaymentStatus   ErrorCode = "INVALID_PAYMENT_STATUS"
	ErrorCodeAmountMismatch         ErrorCode = "AMOUNT_MISMATCH"
	ErrorCodeVerificationFailed     ErrorCode = "VERIFICATION_FAILED"
	ErrorCodeEnrollmentFailed       ErrorCode = "ENROLLMENT_FAILED"
	ErrorCodeRefundFailed           ErrorCode = "REFUND_FAILED"
	ErrorCodeConcurrentModification ErrorCode = "CONCURRENT_MODIFICATION"

	// Payment Gateway Errors (GATEWAY_*)
	ErrorCodeGatewayError   ErrorCode = "GATEWAY_ERROR"
	ErrorCodeGatewayTimeout ErrorCode = "GATEWAY_TIMEOUT"

	// Authentication & Authorization Errors
	ErrorCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrorCodeUnauthorized    ErrorCode = "UNAUTHORIZED"

	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError carrying the same code, so wrapped copies of
// the sentinels below still satisfy errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// Validationf builds a VALIDATION_ERROR for a single field.
func Validationf(field, format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrorCodeValidation, fmt.Sprintf(format, args...)).WithDetail("field", field)
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	switch GetErrorCode(err) {
	case ErrorCodePaymentNotFound, ErrorCodeCourseNotFound,
		ErrorCodeLearnerNotFound, ErrorCodeEnrollmentNotFound:
		return true
	}
	return false
}

// IsGatewayError checks if an error is a payment gateway error
func IsGatewayError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeGatewayError || code == ErrorCodeGatewayTimeout
}

// IsOutcomeUnknown reports whether the remote side may or may not have
// acted on the request. Callers must not change payment status on these.
func IsOutcomeUnknown(err error) bool {
	return IsGatewayError(err)
}

var (
	ErrValidation    = NewDomainError(ErrorCodeValidation, "validation failed")
	ErrInvalidAmount = NewDomainError(ErrorCodeInvalidAmount, "invalid amount")

	ErrPaymentNotFound    = NewDomainError(ErrorCodePaymentNotFound, "payment not found")
	ErrCourseNotFound     = NewDomainError(ErrorCodeCourseNotFound, "course not found")
	ErrLearnerNotFound    = NewDomainError(ErrorCodeLearnerNotFound, "learner not found")
	ErrEnrollmentNotFound = NewDomainError(ErrorCodeEnrollmentNotFound, "enrollment not found")

	ErrAlreadyPaid            = NewDomainError(ErrorCodeAlreadyPaid, "course already paid for")
	ErrInvalidTransition      = NewDomainError(ErrorCodeInvalidTransition, "invalid payment status transition")
	ErrInvalidPaymentStatus   = NewDomainError(ErrorCodeInvalidPaymentStatus, "payment is not in a refundable status")
	ErrAmountMismatch         = NewDomainError(ErrorCodeAmountMismatch, "gateway amount does not match payment amount")
	ErrVerificationFailed     = NewDomainError(ErrorCodeVerificationFailed, "payment verification failed")
	ErrEnrollmentFailed       = NewDomainError(ErrorCodeEnrollmentFailed, "payment completed but enrollment failed")
	ErrRefundFailed           = NewDomainError(ErrorCodeRefundFailed, "refund rejected by gateway")
	ErrConcurrentModification = NewDomainError(ErrorCodeConcurrentModification, "payment was modified concurrently")

	ErrGatewayError   = NewDomainError(ErrorCodeGatewayError, "payment gateway error")
	ErrGatewayTimeout = NewDomainError(ErrorCodeGatewayTimeout, "payment gateway timeout")

	ErrUnauthenticated = NewDomainError(ErrorCodeUnauthenticated, "authentication required")
	ErrUnauthorized    = NewDomainError(ErrorCodeUnauthorized, "not allowed to act on this payment")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
)
