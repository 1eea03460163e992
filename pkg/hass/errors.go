package hass

import "github.com/dlwiest/hass-go/internal/haerr"

// Error-classification predicates. Connection-level failures surface only as
// session state (Err, Status); per-call failures come back from the call
// site itself and can be distinguished with these helpers.

// IsAuthError reports whether err means the hub rejected the credential.
// Auth failures are terminal: the supervisor stops retrying until the token
// changes.
func IsAuthError(err error) bool { return haerr.IsAuth(err) }

// IsConnectionError reports whether err is a transport-level failure,
// including calls issued with no live connection.
func IsConnectionError(err error) bool { return haerr.IsConnection(err) }

// IsTimeoutError reports whether a call got no response within the bound.
func IsTimeoutError(err error) bool { return haerr.IsTimeout(err) }

// IsCallRejectedError reports whether the hub explicitly refused a command.
func IsCallRejectedError(err error) bool { return haerr.IsCallRejected(err) }

// IsFeatureNotSupportedError reports whether a client-side capability
// pre-check failed before any network traffic.
func IsFeatureNotSupportedError(err error) bool { return haerr.IsFeatureNotSupported(err) }
