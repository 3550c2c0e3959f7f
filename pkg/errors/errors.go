package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError provides a structured error that can be rendered to API consumers.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As compatibility.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is reports whether target matches this error by code, so that wrapped copies
// produced by WithInternal still satisfy errors.Is against the sentinel.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return e != nil && other != nil && e.Code == other.Code
}

// WithInternal returns a copy of the AppError with an attached internal error.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// Sync cycle error taxonomy. Every failure inside a poll cycle is handled
// locally and maps onto exactly one of these categories.
var (
	// ErrFetch covers network failures, non-2xx responses and malformed
	// payloads from the insight feed. A fetch failure aborts the cycle with no
	// state change.
	ErrFetch = &AppError{
		Code:       "FEED_FETCH_FAILED",
		Message:    "Failed to fetch the insight feed",
		StatusCode: http.StatusBadGateway,
	}

	// ErrPersistence covers cursor storage read/write failures.
	ErrPersistence = &AppError{
		Code:       "CURSOR_PERSISTENCE_FAILED",
		Message:    "Failed to read or write the sync cursor",
		StatusCode: http.StatusInternalServerError,
	}

	// ErrDelivery covers failures to hand a notification to the device.
	ErrDelivery = &AppError{
		Code:       "NOTIFICATION_DELIVERY_FAILED",
		Message:    "Failed to deliver a notification",
		StatusCode: http.StatusBadGateway,
	}

	// ErrNavigationNotReady signals that a tap event arrived before the
	// navigation layer reported itself usable; the event is deferred.
	ErrNavigationNotReady = &AppError{
		Code:       "NAVIGATION_NOT_READY",
		Message:    "Navigation is not ready to accept commands",
		StatusCode: http.StatusConflict,
	}
)

// Common errors exposed to API consumers.
var (
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalServer = &AppError{
		Code:       "INTERNAL_SERVER_ERROR",
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// New builds a new application error with the provided metadata.
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap turns any error into an AppError while keeping the original error for logging.
func Wrap(err error, message string) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}

// FromError converts a generic error into an AppError, defaulting to ErrInternalServer.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest wraps validation errors with a helpful message.
func NewBadRequest(message string) *AppError {
	return &AppError{
		Code:       ErrBadRequest.Code,
		Message:    message,
		StatusCode: ErrBadRequest.StatusCode,
	}
}
