// Package errors defines the structured error taxonomy shared by the
// realtime services and HTTP handlers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents application-specific error codes
type ErrorCode string

const (
	// Validation errors
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// Authentication errors
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Not found errors
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeUserNotFound    ErrorCode = "USER_NOT_FOUND"
	ErrCodeMessageNotFound ErrorCode = "MESSAGE_NOT_FOUND"
	ErrCodeCallNotFound    ErrorCode = "CALL_NOT_FOUND"

	// Realtime errors
	ErrCodeReceiverOffline ErrorCode = "RECEIVER_OFFLINE"
	ErrCodeSignaling       ErrorCode = "SIGNALING_FAILURE"

	// Internal errors
	ErrCodePersistence ErrorCode = "PERSISTENCE_FAILURE"
	ErrCodeInternal    ErrorCode = "INTERNAL_ERROR"
)

// AppError represents a structured application error with code, message,
// and the HTTP status it maps to at the REST boundary.
type AppError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	StatusCode int       `json:"-"`
	Err        error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the given code and message
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

// NewWithStatus creates a new AppError with a specific HTTP status code
func NewWithStatus(code ErrorCode, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an existing error with an AppError, preserving the original
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// AsAppError extracts an *AppError from an error chain, or wraps it as an
// internal error when it carries no code.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(ErrCodeInternal, "internal error", err)
}

// Code returns the error code in err's chain, or ErrCodeInternal.
func Code(err error) ErrorCode {
	return AsAppError(err).Code
}

// Authentication errors

func UnauthorizedError(message string) *AppError {
	return NewWithStatus(ErrCodeUnauthorized, message, http.StatusUnauthorized)
}

func InvalidTokenError(message string) *AppError {
	return NewWithStatus(ErrCodeInvalidToken, message, http.StatusUnauthorized)
}

// Validation errors

func ValidationError(message string) *AppError {
	return NewWithStatus(ErrCodeValidation, message, http.StatusBadRequest)
}

// Not found errors

func UserNotFoundError(message string) *AppError {
	return NewWithStatus(ErrCodeUserNotFound, message, http.StatusNotFound)
}

func MessageNotFoundError(message string) *AppError {
	return NewWithStatus(ErrCodeMessageNotFound, message, http.StatusNotFound)
}

func CallNotFoundError(message string) *AppError {
	return NewWithStatus(ErrCodeCallNotFound, message, http.StatusNotFound)
}

// Realtime errors

func ReceiverOfflineError(message string) *AppError {
	return NewWithStatus(ErrCodeReceiverOffline, message, http.StatusConflict)
}

func SignalingError(message string, err error) *AppError {
	return &AppError{
		Code:       ErrCodeSignaling,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Err:        err,
	}
}

// Persistence errors

func PersistenceError(message string, err error) *AppError {
	return &AppError{
		Code:       ErrCodePersistence,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}
