// Package apperror defines the error kinds surfaced by the booking core.
// Every failure returned from the service layer is an *Error carrying one of
// the sentinel kinds below together with a human readable message.  Callers
// branch on the kind with errors.Is and show Message to the client.
package apperror

import (
	"errors"
	"net/http"
)

// Error kinds.  They are compared with errors.Is and never returned bare by
// the service layer.
var (
	// ErrNotFound: the requested reservation, slot, guest or court does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists: a slot-exclusivity or slot-uniqueness rule was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrInvalidArgument: a business precondition failed (past date, status, same slot).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorage: the persistence layer failed.  Transient.
	ErrStorage = errors.New("storage failure")
	// ErrForbidden: the caller may not act on the resource.
	ErrForbidden = errors.New("forbidden")
)

// Error is a classified failure.  Kind is one of the sentinels above, Message
// is safe to return to clients and Err optionally holds the underlying cause.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind error, msg string) *Error { return &Error{Kind: kind, Message: msg} }

// NotFound, AlreadyExists and InvalidArgument are shorthands for New.
func NotFound(msg string) *Error        { return New(ErrNotFound, msg) }
func AlreadyExists(msg string) *Error   { return New(ErrAlreadyExists, msg) }
func InvalidArgument(msg string) *Error { return New(ErrInvalidArgument, msg) }

// Storage wraps a persistence failure.  A nil err yields nil so call sites
// can wrap unconditionally.  Errors that are already classified pass through.
func Storage(msg string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: ErrStorage, Message: msg, Err: err}
}

// Message returns the client-facing message of err.  Unclassified errors
// collapse to a generic text so driver details do not leak.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Message
	}
	return "internal error"
}

// HTTPStatus maps an error to the status code handlers respond with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
