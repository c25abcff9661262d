// Package apperr defines the error categories shared by the registries,
// the payment pipeline and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation           = errors.New("validation failed")
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrStorageMisconfigured = errors.New("storage misconfigured")
	ErrUnsupported          = errors.New("unsupported")
)

// Error carries a caller-facing message and the category it belongs to.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Unwrap lets errors.Is match on the category.
func (e *Error) Unwrap() error { return e.Kind }

func newf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Validation reports a missing or malformed field.
func Validation(format string, args ...any) error { return newf(ErrValidation, format, args...) }

// NotFound reports that the named record does not exist.
func NotFound(what string) error { return newf(ErrNotFound, "%s not found", what) }

// Forbidden never includes details about the protected resource.
func Forbidden() error { return &Error{Kind: ErrForbidden, Msg: "forbidden"} }

// Conflict reports an invalid state transition.
func Conflict(format string, args ...any) error { return newf(ErrConflict, format, args...) }

// Upstream wraps a failed call to a cloud backend.
func Upstream(backend string, err error) error {
	return &Error{Kind: ErrUpstreamUnavailable, Msg: fmt.Sprintf("%s unavailable: %v", backend, err)}
}

// Misconfigured reports a request that needs a backend that was never configured.
func Misconfigured(format string, args ...any) error {
	return newf(ErrStorageMisconfigured, format, args...)
}

// Message returns the caller-facing text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
