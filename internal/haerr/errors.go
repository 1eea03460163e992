// Package haerr classifies the failures a Home Assistant client can surface
// to callers. Classification drives retry behavior: connection errors feed
// the reconnection supervisor, authentication errors disable it, and per-call
// failures (timeout, rejection, unsupported feature) go straight to the
// caller and are never retried implicitly.
//
// Entity unavailability is deliberately not represented here. An unknown or
// stale entity is normal data, modeled as a sentinel record in the store.
package haerr

import (
	"errors"
	"fmt"
)

// Kind is the classification of a client error.
type Kind int

const (
	// KindConnection covers transport drops and failed dials. Recoverable;
	// drives the supervisor's backoff.
	KindConnection Kind = iota
	// KindAuth means the hub rejected the credential. Terminal for the
	// session; auto-reconnect must not retry with the same token.
	KindAuth
	// KindTimeout means no matching response arrived within the call bound.
	// Recoverable per call; does not affect connection state.
	KindTimeout
	// KindCallRejected means the hub explicitly refused a command.
	// Surfaced verbatim to the caller, never retried automatically.
	KindCallRejected
	// KindFeatureNotSupported is a client-side pre-check failure raised
	// before any network traffic.
	KindFeatureNotSupported
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindAuth:
		return "auth"
	case KindTimeout:
		return "timeout"
	case KindCallRejected:
		return "call_rejected"
	case KindFeatureNotSupported:
		return "feature_not_supported"
	default:
		return "unknown"
	}
}

// Error is a classified client error. Code carries the hub's machine-readable
// error code when the hub reported one.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s - %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target is an *Error of the same kind, so sentinel
// comparisons like errors.Is(err, haerr.New(haerr.KindTimeout, "")) work.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// New creates a classified error.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, preserving it for errors.Unwrap.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: cause}
}

// Rejected creates a KindCallRejected error carrying the hub's error code.
func Rejected(code, message string) *Error {
	return &Error{Kind: KindCallRejected, Code: code, Message: message}
}

// KindOf extracts the classification from err. ok is false when err is not a
// classified client error anywhere in its chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsAuth reports whether err is an authentication failure.
func IsAuth(err error) bool { return hasKind(err, KindAuth) }

// IsConnection reports whether err is a transport-level failure.
func IsConnection(err error) bool { return hasKind(err, KindConnection) }

// IsTimeout reports whether err is a call timeout.
func IsTimeout(err error) bool { return hasKind(err, KindTimeout) }

// IsCallRejected reports whether the hub refused the command.
func IsCallRejected(err error) bool { return hasKind(err, KindCallRejected) }

// IsFeatureNotSupported reports whether a client-side capability pre-check
// failed.
func IsFeatureNotSupported(err error) bool { return hasKind(err, KindFeatureNotSupported) }

func hasKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
