// Package errors defines the failure taxonomy shared by the pipeline, the
// external service clients and the HTTP API.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind categorizes a pipeline failure.
type Kind string

const (
	// KindConfigurationMissing blocks a run before any job is touched.
	KindConfigurationMissing Kind = "configuration_missing"
	// KindTimeout indicates an external call exceeded its wall-clock budget.
	KindTimeout Kind = "timeout"
	// KindServiceError indicates a non-success answer from an external service.
	KindServiceError Kind = "service_error"
	// KindMalformedResponse indicates expected reply blocks were missing or unparseable.
	KindMalformedResponse Kind = "malformed_response"
	// KindCompilationError indicates the compilation service rejected the document.
	KindCompilationError Kind = "compilation_error"
	// KindNotFound indicates the referenced job does not exist.
	KindNotFound Kind = "not_found"
	// KindConflict indicates the operation collides with work already in progress.
	KindConflict Kind = "conflict"
	// KindInternal is the fallback for anything unclassified.
	KindInternal Kind = "internal"
)

// AppError is a classified error. It supports errors.Is and errors.As through Unwrap.
type AppError struct {
	Kind    Kind
	Message string
	Cause   error
	// StatusCode is the HTTP status returned by an external service, when there was one.
	StatusCode int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates an AppError of the given kind.
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

// Newf creates an AppError of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *AppError {
	return &AppError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies cause under kind.
func Wrap(kind Kind, message string, cause error) *AppError {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

// ConfigurationMissing reports which settings are absent.
func ConfigurationMissing(fields ...string) *AppError {
	msg := "configuration missing"
	if len(fields) > 0 {
		msg = fmt.Sprintf("configuration missing: %v", fields)
	}
	return New(KindConfigurationMissing, msg)
}

// Timeout wraps a deadline failure of the named service.
func Timeout(service string, cause error) *AppError {
	return Wrap(KindTimeout, service+" request timed out", cause)
}

// ServiceError builds an error carrying the service-provided message and status.
func ServiceError(message string, status int) *AppError {
	return &AppError{Kind: KindServiceError, Message: message, StatusCode: status}
}

// Malformed builds a MalformedResponse error.
func Malformed(message string) *AppError {
	return New(KindMalformedResponse, message)
}

// Compilation builds a CompilationError carrying the raw diagnostic text.
func Compilation(diagnostic string, status int) *AppError {
	return &AppError{
		Kind:       KindCompilationError,
		Message:    "LaTeX compilation failed: " + diagnostic,
		StatusCode: status,
	}
}

// Transport maps a transport-level failure of the named service to Timeout
// when a deadline fired, and to ServiceError otherwise.
func Transport(service string, err error) *AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(service, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(service, err)
	}
	return Wrap(KindServiceError, service+" request failed", err)
}

// NotFoundf creates a NotFound error with a formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return Newf(KindNotFound, format, args...)
}

// KindOf returns the Kind of the first AppError in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}
