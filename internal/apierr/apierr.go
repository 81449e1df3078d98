package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an operation failure.
type Kind int

const (
	// KindUnknown is the zero value; errors without a kind map to 500.
	KindUnknown Kind = iota
	// KindValidation marks missing or malformed request fields.
	KindValidation
	// KindNotFound marks a missing record or an owner mismatch. Foreign
	// records are reported as not found, never as forbidden, so existence
	// does not leak across owners.
	KindNotFound
	// KindConflict marks duplicate submissions and invalid state
	// transitions, such as re-finalizing a completed session.
	KindConflict
	// KindUpstream marks object store or transcription capability failures.
	KindUpstream
	// KindAuth marks a missing, invalid or expired credential.
	KindAuth
)

// Error is an operation failure tagged with a Kind. Construct values with
// the helper functions below rather than directly.
type Error struct {
	kind Kind
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

// Unwrap exposes the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the error classification.
func (e *Error) Kind() Kind { return e.kind }

// Validation returns a KindValidation error.
func Validation(format string, args ...any) error {
	return &Error{kind: KindValidation, msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{kind: KindNotFound, msg: fmt.Sprintf(format, args...)}
}

// Conflict returns a KindConflict error.
func Conflict(format string, args ...any) error {
	return &Error{kind: KindConflict, msg: fmt.Sprintf(format, args...)}
}

// Auth returns a KindAuth error.
func Auth(format string, args ...any) error {
	return &Error{kind: KindAuth, msg: fmt.Sprintf(format, args...)}
}

// Upstream returns a KindUpstream error wrapping the failure from the
// external capability.
func Upstream(msg string, err error) error {
	return &Error{kind: KindUpstream, msg: msg, err: err}
}

// KindOf extracts the Kind from err, or KindUnknown when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

// HTTPStatus maps an error to its HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindAuth:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
