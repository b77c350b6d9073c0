package session

import "context"

// Store persists sessions keyed by token.
type Store interface {
	// Create stores a new session. It fails if the token is already taken.
	Create(ctx context.Context, session *Session) error

	// Get returns ErrSessionNotFound for unknown tokens.
	Get(ctx context.Context, token string) (*Session, error)

	// Update replaces an existing session.
	Update(ctx context.Context, session *Session) error

	// Delete removes a session. Deleting an unknown token is not an error.
	Delete(ctx context.Context, token string) error
}
