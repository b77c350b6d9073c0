package twofactor

import (
	"errors"

	"github.com/dmitrymomot/mfakit/pkg/totp"
)

var (
	// ErrInvalidCode covers wrong, malformed, expired or already consumed codes.
	// A backup code lost to a concurrent login is reported the same way.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrEntropyUnavailable is returned when no secure random source could
	// produce a secret or backup codes. Nothing is persisted in that case.
	ErrEntropyUnavailable = totp.ErrEntropyUnavailable

	// ErrStorage wraps every credential store failure. Callers fail closed on it.
	ErrStorage = errors.New("credential store failure")

	// ErrRecordNotFound is returned by CredentialStore.Get for unknown accounts.
	ErrRecordNotFound = errors.New("two-factor record not found")

	ErrAlreadyEnrolled  = errors.New("two-factor authentication already enabled")
	ErrNotEnrolled      = errors.New("two-factor authentication not enabled")
	ErrInvalidState     = errors.New("operation not allowed in current state")
	ErrPendingExpired   = errors.New("pending authentication expired")
	ErrSessionManager   = errors.New("session manager failure")
	ErrMissingAccountID = errors.New("missing account id")
	ErrInvalidConfig    = errors.New("invalid two-factor configuration")
)
