// Package apperrors is the error taxonomy shared by services and handlers.
package apperrors

import (
	"errors"
	"time"
)

type Kind int

const (
	Internal Kind = iota
	NotFound
	Conflict
	Unauthorized
	Forbidden
	Gone
	Unavailable
	Rejected
	RateLimited
	BadRequest
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case Gone:
		return "gone"
	case Unavailable:
		return "unavailable"
	case Rejected:
		return "rejected"
	case RateLimited:
		return "rate_limited"
	case BadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// Error is returned by every service operation that rejects a request.
// Type is a stable machine-readable reason ("account_locked", "pin_expired", ...).
type Error struct {
	Kind      Kind
	Type      string
	Message   string
	LockUntil *time.Time
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by Kind and Type so sentinels declared with New
// can be compared with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Type == t.Type
}

func New(kind Kind, typ, msg string) *Error {
	return &Error{Kind: kind, Type: typ, Message: msg}
}

func Wrap(kind Kind, typ, msg string, err error) *Error {
	return &Error{Kind: kind, Type: typ, Message: msg, Err: err}
}

// WithLockUntil returns a copy of e carrying the lock expiry.
func (e *Error) WithLockUntil(t time.Time) *Error {
	cp := *e
	u := t.UTC()
	cp.LockUntil = &u
	return &cp
}

// KindOf reports the Kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
