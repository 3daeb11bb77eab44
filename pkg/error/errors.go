package error

import (
	"errors"
	"net/http"

	domainerr "github.com/fixora/tollgate/domain/error"
)

// AppError is the HTTP-facing error shape handlers write.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Unauthorized", Status: http.StatusUnauthorized}
	ErrNotFound     = &AppError{Code: "NOT_FOUND", Message: "Not found", Status: http.StatusNotFound}
)

func NewInternalServer(message string) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: message, Status: http.StatusInternalServerError}
}

// MapError converts any error into the HTTP shape. Domain errors keep their
// catalog code and status; internal causes are never exposed. Unauthorized
// always carries the same message.
func MapError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var domainErr *domainerr.AppError
	if errors.As(err, &domainErr) {
		status := domainerr.StatusForCode(domainErr.Code)
		switch {
		case domainErr.Code == domainerr.ErrCodeUnauthorized:
			return ErrUnauthorized
		case status >= http.StatusInternalServerError:
			return &AppError{Code: string(domainErr.Code), Message: domainErr.Message, Status: status}
		}
		message := domainErr.Message
		if domainErr.Details != "" {
			message = message + ": " + domainErr.Details
		}
		return &AppError{Code: string(domainErr.Code), Message: message, Status: status}
	}

	return NewInternalServer("An unexpected error occurred")
}
