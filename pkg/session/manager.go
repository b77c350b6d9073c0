package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mfakit/pkg/logger"
)

// Manager mints, activates and revokes session credentials.
type Manager struct {
	store  Store
	config Config
	now    func() time.Time
	logger *slog.Logger
}

// New creates a session manager. A nil store falls back to an in-memory store.
func New(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		config: DefaultConfig(),
		now:    time.Now,
		logger: logger.Discard(),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.store == nil {
		m.store = NewMemoryStore(m.config.CleanupInterval)
	}
	m.logger = m.logger.With(logger.Component("session"))
	return m
}

// Mint creates an inactive session. Its token is a valid credential that the
// application must not honour until Activate is called.
func (m *Manager) Mint(ctx context.Context) (*Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	session := newSession(token, m.now(), m.config.PendingLifetime)
	if err := m.store.Create(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Activate binds the session to accountID and makes it usable. Activating an
// already active session for the same account is a no-op.
func (m *Manager) Activate(ctx context.Context, token, accountID string) error {
	if accountID == "" {
		return ErrInvalidSession
	}
	session, err := m.load(ctx, token)
	if err != nil {
		return err
	}
	if session.Active {
		if session.AccountID != accountID {
			return ErrInvalidSession
		}
		return nil
	}

	now := m.now()
	session.Active = true
	session.AccountID = accountID
	session.ActivatedAt = now
	session.ExpiresAt = now.Add(m.config.ActiveLifetime)
	if err := m.store.Update(ctx, session); err != nil {
		return err
	}

	m.logger.DebugContext(ctx, "session activated", logger.AccountID(accountID))
	return nil
}

// Revoke deletes the session. Revoking an unknown token succeeds.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidSession
	}
	return m.store.Delete(ctx, token)
}

// Authenticated returns the session only if it is active and unexpired.
func (m *Manager) Authenticated(ctx context.Context, token string) (*Session, error) {
	session, err := m.load(ctx, token)
	if err != nil {
		return nil, err
	}
	if !session.IsActive(m.now()) {
		return nil, ErrNotAuthenticated
	}
	return session, nil
}

func (m *Manager) load(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}
	session, err := m.store.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if session.IsExpired(m.now()) {
		_ = m.store.Delete(ctx, token)
		return nil, ErrSessionExpired
	}
	return session, nil
}

// generateToken creates a cryptographically secure token
func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Join(ErrTokenGeneration, err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
