package session

import "errors"

var (
	// ErrInvalidSession indicates a malformed session or an account mismatch
	ErrInvalidSession = errors.New("session.invalid")

	// ErrSessionExpired indicates the session has expired
	ErrSessionExpired = errors.New("session.expired")

	// ErrSessionNotFound indicates no session was found
	ErrSessionNotFound = errors.New("session.not_found")

	// ErrNotAuthenticated indicates the session exists but has not been activated
	ErrNotAuthenticated = errors.New("session.not_authenticated")

	// ErrTokenGeneration indicates token generation failed
	ErrTokenGeneration = errors.New("session.token_generation_failed")

	// ErrStore wraps failures of the backing store
	ErrStore = errors.New("session.store_failure")
)
