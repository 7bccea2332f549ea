package clubAuth

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/clubAuth/internal/flows"
)

var (
	// ErrSessionNotFound is returned when a challenge id is unknown, already
	// consumed, or (for handoff confirm) no longer pending.
	ErrSessionNotFound = flows.ErrNotFound
	// ErrSessionExpired is returned when a challenge is touched at or after
	// its expiry. The challenge is removed.
	ErrSessionExpired = flows.ErrExpired
	// ErrAttemptsExceeded is returned when a code challenge runs out of
	// attempts. The challenge is removed.
	ErrAttemptsExceeded = flows.ErrAttemptsExceeded
	// ErrWrongCode matches every *WrongCodeError.
	ErrWrongCode = flows.ErrWrongCode
	// ErrInvalidToken is returned for malformed, tampered, or wrong-purpose tokens.
	ErrInvalidToken = flows.ErrInvalidToken
	// ErrTokenExpired is returned for tokens past their expiry.
	ErrTokenExpired = flows.ErrTokenExpired
	// ErrSubjectBlocked is returned when the principal is blocked.
	ErrSubjectBlocked = flows.ErrSubjectBlocked
	// ErrSubjectNotFound is returned when no principal matches. UserDirectory
	// implementations return it for unknown emails and ids.
	ErrSubjectNotFound = flows.ErrSubjectNotFound
	// ErrNotVerified is returned by ResetPassword before the reset code was
	// verified.
	ErrNotVerified = flows.ErrNotVerified
	// ErrValidation is returned for rejected input such as a short password.
	ErrValidation = flows.ErrValidation
	// ErrUnavailable wraps unexpected store, directory, or signing failures.
	ErrUnavailable = flows.ErrUnavailable

	// ErrNotificationFailure is never returned by an Engine operation. It is
	// the audit and log classification of a failed notification.
	ErrNotificationFailure = errors.New("notification delivery failed")
	// ErrEngineNotReady is returned by methods called on a nil or closed Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// WrongCodeError carries the attempts left after a mismatched code.
type WrongCodeError = flows.WrongCodeError

func wrapUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
