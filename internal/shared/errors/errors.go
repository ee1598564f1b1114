// Package errors provides application-level error types and the sentinel errors
// shared by the retry and dunning engine.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation_error"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeInternal     ErrorType = "internal_error"
	ErrorTypeBadRequest   ErrorType = "bad_request"
	ErrorTypeUnavailable  ErrorType = "unavailable"
	// ErrorTypeConfiguration marks a missing or invalid policy/config. Operations
	// hitting it are skipped and not retried.
	ErrorTypeConfiguration ErrorType = "configuration_error"
)

// AppError represents an application error with additional context
type AppError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
	Code    int       `json:"code"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func newAppError(t ErrorType, code int, message string, details []string) *AppError {
	return &AppError{
		Type:    t,
		Message: message,
		Code:    code,
		Details: strings.Join(details, "; "),
	}
}

func NewValidationError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeValidation, http.StatusBadRequest, message, details)
}

func NewNotFoundError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeNotFound, http.StatusNotFound, message, details)
}

func NewConflictError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeConflict, http.StatusConflict, message, details)
}

func NewUnauthorizedError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnauthorized, http.StatusUnauthorized, message, details)
}

func NewForbiddenError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeForbidden, http.StatusForbidden, message, details)
}

func NewInternalError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeInternal, http.StatusInternalServerError, message, details)
}

func NewBadRequestError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeBadRequest, http.StatusBadRequest, message, details)
}

// NewUnavailableError reports a transient condition the caller should retry.
func NewUnavailableError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeUnavailable, http.StatusServiceUnavailable, message, details)
}

// NewConfigurationError reports that no usable policy or dunning config exists.
func NewConfigurationError(message string, details ...string) *AppError {
	return newAppError(ErrorTypeConfiguration, http.StatusUnprocessableEntity, message, details)
}

// Engine sentinels. Callers compare with errors.Is.
var (
	// ErrScheduleResolved is returned when mutating a resolved retry schedule.
	ErrScheduleResolved = errors.New("retry schedule already resolved")
	// ErrRunResolved is returned when mutating a resolved dunning run.
	ErrRunResolved = errors.New("dunning run already resolved")
	// ErrStepNotDue is returned when a dunning step is executed before its due date.
	ErrStepNotDue = errors.New("dunning step not due")
	// ErrAlreadyProcessed is returned by the ledger for a consumed idempotency key.
	ErrAlreadyProcessed = errors.New("idempotency key already processed")
	// ErrVersionConflict signals a lost optimistic-lock race.
	ErrVersionConflict = errors.New("version conflict")
	// ErrLockNotAcquired is returned when a per-key lease is held elsewhere.
	ErrLockNotAcquired = errors.New("lock not acquired")
)

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Classify returns the AppError in err's chain, translating the engine
// sentinels into the status a caller should see. It returns nil for anything
// else.
func Classify(err error) *AppError {
	if appErr := GetAppError(err); appErr != nil {
		return appErr
	}
	switch {
	case errors.Is(err, ErrLockNotAcquired):
		return NewUnavailableError("resource is busy, retry shortly")
	case errors.Is(err, ErrAlreadyProcessed):
		return NewConflictError("request already processed")
	case errors.Is(err, ErrVersionConflict):
		return NewConflictError("resource was modified concurrently")
	case errors.Is(err, ErrScheduleResolved), errors.Is(err, ErrRunResolved):
		return NewConflictError(err.Error())
	case errors.Is(err, ErrStepNotDue):
		return NewConflictError(err.Error())
	}
	return nil
}

func isType(err error, t ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == t
}

func IsConflictError(err error) bool      { return isType(err, ErrorTypeConflict) }
func IsNotFoundError(err error) bool      { return isType(err, ErrorTypeNotFound) }
func IsValidationError(err error) bool    { return isType(err, ErrorTypeValidation) }
func IsConfigurationError(err error) bool { return isType(err, ErrorTypeConfiguration) }

// IsDuplicateError checks if the error is a database duplicate key error
func IsDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	// mysql, postgres, sqlite
	return strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}
