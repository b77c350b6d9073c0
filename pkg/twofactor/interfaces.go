package twofactor

import (
	"context"
	"time"
)

// CredentialStore persists Records keyed by account id.
type CredentialStore interface {
	// Get returns ErrRecordNotFound when the account has no record.
	Get(ctx context.Context, accountID string) (*Record, error)
	Put(ctx context.Context, accountID string, rec Record) error
	// Create stores rec only if the account has no enabled record, and returns
	// ErrAlreadyEnrolled otherwise. The check and the write are one atomic step.
	Create(ctx context.Context, accountID string, rec Record) error
	// Clear removes the secret and every backup code hash in one write.
	// Clearing an unknown account is not an error.
	Clear(ctx context.Context, accountID string) error
	// SwapBackupCodes replaces the hash set only if it still equals expected,
	// element for element. It returns false with a nil error when another
	// writer changed the set first.
	SwapBackupCodes(ctx context.Context, accountID string, expected, next []string) (bool, error)
}

// SessionManager owns the credentials issued at password verification.
// A credential becomes usable by the application only after Activate.
type SessionManager interface {
	Activate(ctx context.Context, credential, accountID string) error
	Revoke(ctx context.Context, credential string) error
}

// QRRenderer encodes a provisioning URI as an image.
type QRRenderer interface {
	Render(uri string) ([]byte, error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
