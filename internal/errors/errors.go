package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError for HTTP translation.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindAuth          Kind = "auth"
	KindNotFound      Kind = "not_found"
	KindQuotaExceeded Kind = "quota_exceeded"
	KindConflict      Kind = "conflict"
	KindUpstream      Kind = "upstream"
	KindInternal      Kind = "internal"
	KindSignature     Kind = "signature"
)

// AppError represents a custom application error
type AppError struct {
	Kind    Kind   `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails returns a copy of the error carrying extra detail text.
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// StatusCode maps the error kind onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Kind {
	case KindValidation, KindSignature:
		return http.StatusBadRequest
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindQuotaExceeded:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Validation reports malformed input.
func Validation(message string) *AppError {
	return &AppError{Kind: KindValidation, Code: "VALIDATION_FAILED", Message: message}
}

// Unauthorized reports a missing or invalid session.
func Unauthorized(message string) *AppError {
	return &AppError{Kind: KindAuth, Code: "UNAUTHORIZED", Message: message}
}

// NotFound covers both absent and not-owned resources.
func NotFound(resource string) *AppError {
	return &AppError{Kind: KindNotFound, Code: "NOT_FOUND", Message: resource + " not found"}
}

// QuotaExceeded reports that the monthly analysis allowance is used up.
func QuotaExceeded(used, limit int) *AppError {
	return &AppError{
		Kind:    KindQuotaExceeded,
		Code:    "QUOTA_EXCEEDED",
		Message: "Monthly analysis limit reached",
		Details: fmt.Sprintf("used %d of %d analyses this month", used, limit),
	}
}

// Conflict reports a duplicate resource.
func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Code: "CONFLICT", Message: message}
}

// Upstream wraps a third-party service failure.
func Upstream(service string, err error) *AppError {
	return &AppError{Kind: KindUpstream, Code: "UPSTREAM_FAILED", Message: service + " request failed", Err: err}
}

// Internal wraps an unexpected failure.
func Internal(message string, err error) *AppError {
	return &AppError{Kind: KindInternal, Code: "INTERNAL_ERROR", Message: message, Err: err}
}

// Signature reports a webhook payload whose signature could not be verified.
func Signature(err error) *AppError {
	return &AppError{Kind: KindSignature, Code: "INVALID_SIGNATURE", Message: "Webhook signature verification failed", Err: err}
}

// From converts any error into an AppError, treating unknown errors as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Kind == kind
}
