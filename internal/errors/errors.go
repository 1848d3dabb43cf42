package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"

	"github.com/lib/pq"
)

// AppError represents an application-specific error
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Field      string `json:"field,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Cause      error  `json:"-"`
	File       string `json:"file,omitempty"`
	Line       int    `json:"line,omitempty"`
	Operation  string `json:"operation,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error. The recorded location is the
// caller of the code-specific constructor.
func NewAppError(code, message string, cause error) *AppError {
	_, file, line, _ := runtime.Caller(2)
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
		File:    file,
		Line:    line,
	}
}

// WithOperation adds operation context to the error
func (e *AppError) WithOperation(operation string) *AppError {
	e.Operation = operation
	return e
}

// WithDetails adds additional details to the error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithField names the request field the error refers to
func (e *AppError) WithField(field string) *AppError {
	e.Field = field
	return e
}

// WithStatus overrides the HTTP status derived from the error code
func (e *AppError) WithStatus(status int) *AppError {
	e.StatusCode = status
	return e
}

// Status returns the HTTP status code for the error
func (e *AppError) Status() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	switch e.Code {
	case ErrCodeValidationError, ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUpstreamError:
		return upstreamStatus(e.Cause)
	default:
		return http.StatusInternalServerError
	}
}

// Common error codes
const (
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeDatabaseError   = "DATABASE_ERROR"
	ErrCodeValidationError = "VALIDATION_ERROR"
	ErrCodeUpstreamError   = "UPSTREAM_ERROR"
)

// pqQueryCanceled is raised by Postgres when statement_timeout fires or the
// query is cancelled by the client.
const pqQueryCanceled = "57014"

// Common error constructors
func NotFound(message string, cause error) *AppError {
	return NewAppError(ErrCodeNotFound, message, cause)
}

func InvalidInput(message string, cause error) *AppError {
	return NewAppError(ErrCodeInvalidInput, message, cause)
}

func InternalError(message string, cause error) *AppError {
	return NewAppError(ErrCodeInternalError, message, cause)
}

func DatabaseError(message string, cause error) *AppError {
	return NewAppError(ErrCodeDatabaseError, message, cause)
}

func ValidationError(message string, cause error) *AppError {
	return NewAppError(ErrCodeValidationError, message, cause)
}

func UpstreamError(message string, cause error) *AppError {
	return NewAppError(ErrCodeUpstreamError, message, cause)
}

// Is reports whether err carries an AppError with the given code anywhere in
// its chain.
func Is(err error, code string) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Cause
	}
	return false
}

// Transform converts any error into an AppError. AppErrors pass through
// untouched, anything else becomes an internal error wrapping the original.
func Transform(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	if isTimeout(err) {
		return InternalError(err.Error(), err).WithStatus(http.StatusGatewayTimeout)
	}
	return InternalError(err.Error(), err)
}

func upstreamStatus(cause error) int {
	if cause == nil {
		return http.StatusInternalServerError
	}
	if isTimeout(cause) {
		return http.StatusGatewayTimeout
	}
	var appErr *AppError
	if stderrors.As(cause, &appErr) {
		return appErr.Status()
	}
	var statusErr interface{ StatusCode() int }
	if stderrors.As(cause, &statusErr) {
		return statusErr.StatusCode()
	}
	return http.StatusInternalServerError
}

func isTimeout(err error) bool {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) && string(pqErr.Code) == pqQueryCanceled {
		return true
	}
	var netErr interface{ Timeout() bool }
	return stderrors.As(err, &netErr) && netErr.Timeout()
}
