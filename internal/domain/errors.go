package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures so callers can tell network failure, malformed
// request and upstream logic failure apart.
type ErrorKind string

const (
	ErrKindValidation    ErrorKind = "validation_error"
	ErrKindNotFound      ErrorKind = "not_found"
	ErrKindUpstreamAgent ErrorKind = "upstream_agent_error"
	ErrKindUpstreamLogic ErrorKind = "upstream_logic_error"
	ErrKindQuota         ErrorKind = "quota_exceeded"
	ErrKindPersistence   ErrorKind = "persistence_error"
	ErrKindInternal      ErrorKind = "internal_error"
)

// Error is a classified error.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the kind to a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case ErrKindValidation:
		return http.StatusBadRequest
	case ErrKindNotFound:
		return http.StatusNotFound
	case ErrKindUpstreamAgent, ErrKindUpstreamLogic:
		return http.StatusBadGateway
	case ErrKindQuota:
		return http.StatusTooManyRequests
	case ErrKindPersistence:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// NewValidationError returns a validation error.
func NewValidationError(format string, args ...any) *Error {
	return &Error{Kind: ErrKindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError returns a not-found error.
func NewNotFoundError(format string, args ...any) *Error {
	return &Error{Kind: ErrKindNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewUpstreamAgentError wraps a transport-level agent failure.
func NewUpstreamAgentError(message string, err error) *Error {
	return &Error{Kind: ErrKindUpstreamAgent, Message: message, Err: err}
}

// NewUpstreamLogicError reports an agent that answered but did not succeed.
func NewUpstreamLogicError(message string) *Error {
	return &Error{Kind: ErrKindUpstreamLogic, Message: message}
}

// NewQuotaError reports a quota rejection surfaced by the quota layer.
func NewQuotaError(message string) *Error {
	return &Error{Kind: ErrKindQuota, Message: message}
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(message string, err error) *Error {
	return &Error{Kind: ErrKindPersistence, Message: message, Err: err}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, err error) *Error {
	return &Error{Kind: ErrKindInternal, Message: message, Err: err}
}

// KindOf returns the kind of err, or ErrKindInternal for unclassified errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ErrKindInternal
}

// AsError returns err as a classified error, wrapping unclassified errors as internal.
func AsError(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return NewInternalError("unexpected error", err)
}
