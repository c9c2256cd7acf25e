package errors

import (
	"fmt"
	"net/http"

	"github.com/estate-sync/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategorySession represents wallet/session errors
	CategorySession ErrorCategory = "session"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryLedger represents remote ledger read errors
	CategoryLedger ErrorCategory = "ledger"
	// CategoryTransaction represents rejected or reverted writes
	CategoryTransaction ErrorCategory = "transaction"
	// CategoryValidation represents invalid caller input
	CategoryValidation ErrorCategory = "validation"
	// CategorySystem represents internal errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// NewNoProviderError indicates no wallet capability is available.
func NewNoProviderError() *CategorizedError {
	return &CategorizedError{
		Category:   CategorySession,
		StatusCode: http.StatusServiceUnavailable,
		Code:       types.CodeNoProvider,
		Message:    "no wallet capability is configured",
	}
}

// NewUnauthenticatedError indicates the operation requires an active session.
func NewUnauthenticatedError(operation string) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySession,
		StatusCode: http.StatusUnauthorized,
		Code:       types.CodeUnauthenticated,
		Message:    fmt.Sprintf("%s requires a connected wallet session", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewUserDeniedError indicates the wallet holder refused access.
func NewUserDeniedError(cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySession,
		StatusCode: http.StatusForbidden,
		Code:       types.CodeUserDenied,
		Message:    "wallet access was denied",
		Cause:      cause,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id interface{}) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       types.CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %v", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewRemoteUnavailableError wraps a transient ledger read failure.
func NewRemoteUnavailableError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLedger,
		StatusCode: http.StatusBadGateway,
		Code:       types.CodeRemoteUnavailable,
		Message:    fmt.Sprintf("ledger unavailable during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewTransactionFailedError reports a rejected or reverted write. The reason
// is the most specific one available: provider reason > message > generic.
func NewTransactionFailedError(reason string, cause error) *CategorizedError {
	if reason == "" && cause != nil {
		reason = cause.Error()
	}
	if reason == "" {
		reason = "transaction failed"
	}
	return &CategorizedError{
		Category:   CategoryTransaction,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       types.CodeTransactionFailed,
		Message:    reason,
		Cause:      cause,
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	// If already categorized, return as-is
	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	// If it's a ServiceError, convert it
	if svcErr, ok := err.(*types.ServiceError); ok {
		return categorizeServiceError(svcErr)
	}

	// Default to internal error
	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	switch err.Code {
	case types.CodeNoProvider:
		return &CategorizedError{Category: CategorySession, StatusCode: http.StatusServiceUnavailable, Code: err.Code, Message: err.Message, Details: err.Details}
	case types.CodeUnauthenticated:
		return &CategorizedError{Category: CategorySession, StatusCode: http.StatusUnauthorized, Code: err.Code, Message: err.Message, Details: err.Details}
	case types.CodeUserDenied:
		return &CategorizedError{Category: CategorySession, StatusCode: http.StatusForbidden, Code: err.Code, Message: err.Message, Details: err.Details}
	case types.CodeNotFound:
		return &CategorizedError{Category: CategoryNotFound, StatusCode: http.StatusNotFound, Code: err.Code, Message: err.Message, Details: err.Details}
	case types.CodeRemoteUnavailable:
		return &CategorizedError{Category: CategoryLedger, StatusCode: http.StatusBadGateway, Code: err.Code, Message: err.Message, Details: err.Details}
	case types.CodeTransactionFailed:
		return &CategorizedError{Category: CategoryTransaction, StatusCode: http.StatusUnprocessableEntity, Code: err.Code, Message: err.Message, Details: err.Details}
	default:
		return &CategorizedError{Category: CategorySystem, StatusCode: http.StatusInternalServerError, Code: err.Code, Message: err.Message, Details: err.Details}
	}
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is worth retrying. Transaction failures
// are never retried automatically; callers resubmit explicitly.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryLedger:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsSoft reports whether an error can be surfaced alongside retained data
// (a transient read failure with a previous good snapshot still in place).
func IsSoft(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Category == CategoryLedger
}
