// Package fault defines the closed set of error kinds the arbitration core
// returns to its callers. Callers discriminate with errors.As / Is rather
// than string matching, and the web layer maps kinds to HTTP statuses.
package fault

import (
	"errors"
	"fmt"
)

// Kind identifies a category of failure.
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"      // 404
	KindCaseNotReady  Kind = "CASE_NOT_READY" // 422
	KindLockConflict  Kind = "LOCK_CONFLICT"  // 409, retryable: generation already in progress
	KindQuotaExceeded Kind = "QUOTA_EXCEEDED" // 429, retryable next day
	KindAIService     Kind = "AI_SERVICE"     // 503, upstream failure after retries
	KindValidation    Kind = "VALIDATION"     // 400, unrepairable input or AI output
	KindUnauthorized  Kind = "UNAUTHORIZED"   // 401
	KindForbidden     Kind = "FORBIDDEN"      // 403
	KindInternal      Kind = "INTERNAL"       // 500
)

// Error carries a kind plus a human-readable message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a fault with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a fault that records an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or KindInternal if err carries none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code the web layer responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return 404
	case KindCaseNotReady:
		return 422
	case KindLockConflict:
		return 409
	case KindQuotaExceeded:
		return 429
	case KindAIService:
		return 503
	case KindValidation:
		return 400
	case KindUnauthorized:
		return 401
	case KindForbidden:
		return 403
	default:
		return 500
	}
}
