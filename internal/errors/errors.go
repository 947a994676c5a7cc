package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrTypeNotFound represents unknown playlist or job identifiers
	ErrTypeNotFound ErrorType = "not_found"
	// ErrTypeAlreadyInProgress represents a duplicate sync start
	ErrTypeAlreadyInProgress ErrorType = "already_in_progress"
	// ErrTypeAPI represents metadata API failures (network, auth, bad id)
	ErrTypeAPI ErrorType = "api"
	// ErrTypeProcessSpawn represents a downloader that could not be launched
	ErrTypeProcessSpawn ErrorType = "process_spawn"
	// ErrTypeProcessExit represents a downloader that exited nonzero
	ErrTypeProcessExit ErrorType = "process_exit"
	// ErrTypeFileSystem represents scan or cleanup failures
	ErrTypeFileSystem ErrorType = "filesystem"
	// ErrTypeValidation represents invalid caller input
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeUnknown represents uncategorized errors
	ErrTypeUnknown ErrorType = "unknown"
)

// AppError represents an application error with context
type AppError struct {
	Type       ErrorType
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
		Retryable:  false,
	}
}

// NewAlreadyInProgressError creates an error for a duplicate sync start
func NewAlreadyInProgressError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeAlreadyInProgress,
		Message:    message,
		StatusCode: http.StatusConflict,
		Retryable:  false,
	}
}

// NewAPIError creates a new metadata API error
func NewAPIError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeAPI,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewProcessSpawnError creates an error for an unlaunchable downloader
func NewProcessSpawnError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeProcessSpawn,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  false,
		Cause:      cause,
	}
}

// NewProcessExitError creates an error for a downloader that exited nonzero
func NewProcessExitError(code int) *AppError {
	return &AppError{
		Type:       ErrTypeProcessExit,
		Message:    fmt.Sprintf("exited with code %d", code),
		StatusCode: http.StatusInternalServerError,
		Retryable:  true,
	}
}

// NewFileSystemError creates a new file system error
func NewFileSystemError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrTypeFileSystem,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Retryable:  true,
		Cause:      cause,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrTypeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Retryable:  false,
	}
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetErrorType returns the error type from an error
func GetErrorType(err error) ErrorType {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrTypeUnknown
}

// StatusCode returns the HTTP status an error maps to
func StatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return GetErrorType(err) == ErrTypeNotFound
}

// IsAlreadyInProgress checks if an error is a duplicate sync start
func IsAlreadyInProgress(err error) bool {
	return GetErrorType(err) == ErrTypeAlreadyInProgress
}

// IsAPIError checks if an error is a metadata API error
func IsAPIError(err error) bool {
	return GetErrorType(err) == ErrTypeAPI
}
