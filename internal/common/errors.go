// Package common defines shared constants and the error taxonomy used across
// the client layers. Callers should branch on Kind (KindOf or errors.Is with the
// sentinel values) and show Error() to the user.
package common

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category.
type Kind int

const (
	KindUnknown Kind = iota

	// KindValidation: the server (or a local check) rejected the input.
	KindValidation

	// KindAuthorizationExpired: 401 that survived the one-shot session refresh.
	KindAuthorizationExpired

	// KindTimeout: no response within the request ceiling.
	KindTimeout

	// KindTransport: network failure or a non-validation server error.
	KindTransport

	// KindInvalidMeasurement: non-positive weight or height.
	KindInvalidMeasurement

	// KindNotFound: the referenced object does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorizationExpired:
		return "authorization_expired"
	case KindTimeout:
		return "timeout"
	case KindTransport:
		return "transport"
	case KindInvalidMeasurement:
		return "invalid_measurement"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrValidation           = &Error{Kind: KindValidation}
	ErrAuthorizationExpired = &Error{Kind: KindAuthorizationExpired}
	ErrTimeout              = &Error{Kind: KindTimeout}
	ErrTransport            = &Error{Kind: KindTransport}
	ErrInvalidMeasurement   = &Error{Kind: KindInvalidMeasurement}
	ErrNotFound             = &Error{Kind: KindNotFound}
)

// Fallback messages used when the server does not provide one.
const (
	MsgSessionExpired = "your session has expired, please log in again"
	MsgTimeout        = "the server did not respond in time"
	MsgUnavailable    = "the server is unavailable"
	MsgRequestFailed  = "request failed"
)

// Error is a tagged error carrying a Kind and a human-readable message.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status code, 0 when no response was received.
	Status int
	Err    error
}

// Error returns the human-readable message.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a sentinel of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Message != "" || t.Err != nil || t.Status != 0 {
		return e == t
	}
	return e.Kind == t.Kind
}

// NewError builds an *Error of the given kind.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf builds an *Error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// WithFallback returns err unchanged when it already carries a message, otherwise
// a copy of it with message set. Non-*Error values are wrapped as KindUnknown.
func WithFallback(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return &Error{Kind: KindUnknown, Message: message, Err: err}
	}
	if e.Message != "" {
		return err
	}
	cp := *e
	cp.Message = message
	return &cp
}
