// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import (
	"errors"
	"fmt"
)

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., entry already configured).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnauthorized indicates a rejected API caller.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates temporary lock of credential validation.
	ErrRateLimited = errors.New("rate limited")

	// ErrInvalidInput indicates a request the caller must correct.
	ErrInvalidInput = errors.New("invalid input")
)

// Vendor client taxonomy. ErrAuthentication and ErrCommunication both match ErrClient.
var (
	// ErrClient is the base of every failure raised by the API wrapper.
	ErrClient = errors.New("bonusdrive client error")

	// ErrAuthentication indicates the vendor rejected the credentials.
	ErrAuthentication = fmt.Errorf("%w: authentication", ErrClient)

	// ErrCommunication indicates any other vendor failure.
	ErrCommunication = fmt.Errorf("%w: communication", ErrClient)
)

// Coordinator outcomes reported to the entry lifecycle.
var (
	// ErrAuthFailed means credentials must be re-entered before data can flow again.
	ErrAuthFailed = errors.New("auth failed")

	// ErrUpdateFailed means a refresh cycle failed; the previous snapshot is kept.
	ErrUpdateFailed = errors.New("update failed")

	// ErrNotReady means the eager first refresh failed for a non-auth reason.
	ErrNotReady = errors.New("not ready")
)

// Authentication wraps cause as an authentication error carrying msg.
func Authentication(msg string, cause error) error {
	return &clientError{kind: ErrAuthentication, msg: msg, cause: cause}
}

// Communication wraps cause as a communication error carrying msg.
func Communication(msg string, cause error) error {
	return &clientError{kind: ErrCommunication, msg: msg, cause: cause}
}

type clientError struct {
	kind  error
	msg   string
	cause error
}

func (e *clientError) Error() string { return e.msg }

// Unwrap exposes both the taxonomy sentinel and the underlying cause.
func (e *clientError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}
