package totp

import "errors"

var (
	ErrEntropyUnavailable       = errors.New("secure random source unavailable")
	ErrMissingSecret            = errors.New("missing secret")
	ErrInvalidSecret            = errors.New("invalid secret")
	ErrMissingAccountName       = errors.New("missing account name")
	ErrMissingIssuer            = errors.New("missing issuer")
	ErrInvalidRecoveryCodeCount = errors.New("invalid recovery code count, must be greater than 0")
)
