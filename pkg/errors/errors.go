package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

// Code is the stable machine-readable error class sent to register clients.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
	// CodeGateway is a card terminal or payment provider failure.
	CodeGateway Code = "GATEWAY_ERROR"
	// CodeReconciliation marks money that moved without a persisted order.
	CodeReconciliation Code = "RECONCILIATION_REQUIRED"
)

// Metadata describes how a code is surfaced over HTTP. Retryable means the
// client may resend the same request, with the same Idempotency-Key when the
// route takes one.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

func meta(status int, retryable bool, msg string, details bool) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: msg, DetailsAllowed: details}
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:     meta(http.StatusBadRequest, false, "validation failed", true),
	CodeUnauthorized:   meta(http.StatusUnauthorized, false, "authentication required", false),
	CodeForbidden:      meta(http.StatusForbidden, false, "access denied", false),
	CodeNotFound:       meta(http.StatusNotFound, false, "resource not found", false),
	CodeConflict:       meta(http.StatusConflict, false, "conflict detected", false),
	CodeStateConflict:  meta(http.StatusUnprocessableEntity, false, "state transition disallowed", true),
	CodeIdempotency:    meta(http.StatusConflict, false, "idempotency key reused", true),
	CodeRateLimit:      meta(http.StatusTooManyRequests, false, "rate limit exceeded", false),
	CodeInternal:       meta(http.StatusInternalServerError, true, "internal server error", false),
	CodeDependency:     meta(http.StatusServiceUnavailable, true, "dependency unavailable", true),
	CodeGateway:        meta(http.StatusBadGateway, false, "payment gateway error", true),
	CodeReconciliation: meta(http.StatusInternalServerError, false, "payment captured but order was not recorded; manual reconciliation required", true),
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

// WithDetail sets one key on a map[string]any details payload, creating it
// when absent. Details of any other shape are replaced.
func (e *Error) WithDetail(key string, value any) *Error {
	if e == nil {
		return nil
	}
	m, ok := e.details.(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	m[key] = value
	e.details = m
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether err carries the provided code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
