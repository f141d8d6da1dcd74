package transport

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request. Classification happens exactly once, at
// the transport boundary; layers above switch on the kind and never
// re-inspect raw status codes.
type Kind string

const (
	KindNetwork      Kind = "network"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
	KindRateLimited  Kind = "rate_limited"
	KindServer       Kind = "server"
	KindCancelled    Kind = "cancelled"
	KindUnknown      Kind = "unknown"
)

// Error is the one failure type every request surfaces. It is produced by the
// transport and never re-wrapped into a second Error downstream.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Payload map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a transport error. Exposed so the session gate can surface
// its normalized session-expired failure with the same type callers already
// handle.
func NewError(kind Kind, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, cause: cause}
}

// KindOf extracts the classification from err, or KindUnknown when err did
// not originate at the transport boundary.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	var te *Error
	return errors.As(err, &te) && te.Kind == kind
}

// kindForStatus maps an HTTP status to a classification. Statuses the
// taxonomy does not name map to KindUnknown.
func kindForStatus(status int) Kind {
	switch {
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindForbidden
	case status == 409:
		return KindConflict
	case status == 422:
		return KindValidation
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}
