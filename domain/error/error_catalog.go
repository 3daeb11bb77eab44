package error

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes for different categories
const (
	// Authentication Errors (1xxx)
	ErrCodeUnauthorized       ErrorCode = "AUTH_1001"
	ErrCodeIdentityUnknown    ErrorCode = "AUTH_1002"
	ErrCodeCredentialMismatch ErrorCode = "AUTH_1003"

	// Validation Errors (2xxx)
	ErrCodeInvalidRequest ErrorCode = "VALID_2001"
	ErrCodeInvalidAmount  ErrorCode = "VALID_2002"
	ErrCodeInvalidAction  ErrorCode = "VALID_2003"
	ErrCodeMissingClient  ErrorCode = "VALID_2004"

	// Rate Limiting Errors (3xxx)
	ErrCodeRateLimitExceeded ErrorCode = "RATE_3001"

	// Hold Errors (4xxx)
	ErrCodeLimitHeld    ErrorCode = "HOLD_4001"
	ErrCodeHoldNotFound ErrorCode = "HOLD_4002"

	// Server Errors (6xxx)
	ErrCodeInternalServerError ErrorCode = "SERVER_6001"
	ErrCodeAuditFailure        ErrorCode = "SERVER_6002"
	ErrCodeConfigurationError  ErrorCode = "SERVER_6003"

	// Security Errors (7xxx)
	ErrCodeLockdown          ErrorCode = "SEC_7001"
	ErrCodeInjectionDetected ErrorCode = "SEC_7002"
	ErrCodePatternDetected   ErrorCode = "SEC_7003"
	ErrCodeMaximumBreach     ErrorCode = "SEC_7004"
	ErrCodeUrgencyDetected   ErrorCode = "SEC_7005"
)

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on code so callers can use errors.Is against the constructors below.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// Admin errors. Unauthorized never says which part of the credential failed.
func ErrUnauthorized() *AppError {
	return NewAppError(ErrCodeUnauthorized, "unauthorized", "", nil)
}

func ErrHoldNotFound(holdID string) *AppError {
	return NewAppError(ErrCodeHoldNotFound, "pending transfer not found", fmt.Sprintf("Hold ID: %s", holdID), nil)
}

func ErrInvalidAction(action string) *AppError {
	return NewAppError(ErrCodeInvalidAction, "action must be approve or deny", fmt.Sprintf("Action: %s", action), nil)
}

// Validation errors
func ErrInvalidRequest(details string) *AppError {
	return NewAppError(ErrCodeInvalidRequest, "Invalid request", details, nil)
}

func ErrInvalidAmount(details string) *AppError {
	return NewAppError(ErrCodeInvalidAmount, "Invalid amount", details, nil)
}

func ErrMissingClient() *AppError {
	return NewAppError(ErrCodeMissingClient, "Missing required field", "Field: client_id", nil)
}

// Rate limiting errors
func ErrRateLimitExceeded(attempts int, window string) *AppError {
	return NewAppError(ErrCodeRateLimitExceeded, "Too many requests", fmt.Sprintf("Attempts: %d, Window: %s", attempts, window), nil)
}

// Server errors
func ErrAuditFailure(cause error) *AppError {
	return NewAppError(ErrCodeAuditFailure, "audit ledger append failed", "", cause)
}

func ErrInternalServerError(details string, cause error) *AppError {
	return NewAppError(ErrCodeInternalServerError, "Internal server error", details, cause)
}

func ErrConfigurationError(config string) *AppError {
	return NewAppError(ErrCodeConfigurationError, "Configuration error", fmt.Sprintf("Config: %s", config), nil)
}

var statusByCode = map[ErrorCode]int{
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeIdentityUnknown:     http.StatusForbidden,
	ErrCodeCredentialMismatch:  http.StatusUnauthorized,
	ErrCodeInvalidRequest:      http.StatusBadRequest,
	ErrCodeInvalidAmount:       http.StatusUnprocessableEntity,
	ErrCodeInvalidAction:       http.StatusBadRequest,
	ErrCodeMissingClient:       http.StatusUnprocessableEntity,
	ErrCodeRateLimitExceeded:   http.StatusTooManyRequests,
	ErrCodeLimitHeld:           http.StatusAccepted,
	ErrCodeHoldNotFound:        http.StatusNotFound,
	ErrCodeInternalServerError: http.StatusInternalServerError,
	ErrCodeAuditFailure:        http.StatusInternalServerError,
	ErrCodeConfigurationError:  http.StatusInternalServerError,
	ErrCodeLockdown:            http.StatusLocked,
	ErrCodeInjectionDetected:   http.StatusForbidden,
	ErrCodePatternDetected:     http.StatusForbidden,
	ErrCodeMaximumBreach:       http.StatusForbidden,
	ErrCodeUrgencyDetected:     http.StatusForbidden,
}

// StatusForCode returns the HTTP status associated with code.
func StatusForCode(code ErrorCode) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetHTTPStatusCode maps an error to an HTTP status code
func GetHTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return StatusForCode(appErr.Code)
	}
	return http.StatusInternalServerError
}

// ErrorResponse structure for API responses
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *AppError `json:"error"`
	TraceID string    `json:"trace_id,omitempty"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *AppError, traceID string) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
		TraceID: traceID,
	}
}
