package twofactor_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mfakit/pkg/credstore"
	"github.com/dmitrymomot/mfakit/pkg/session"
	"github.com/dmitrymomot/mfakit/pkg/totp"
	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

// env wires a Service to in-memory collaborators sharing one fake clock.
type env struct {
	svc      *twofactor.Service
	store    *credstore.MemoryStore
	sessions *session.Manager
	clock    *fakeClock
}

func newEnv(t *testing.T, opts ...twofactor.Option) *env {
	t.Helper()
	clock := newFakeClock()
	store := credstore.NewMemoryStore()
	sessions := session.New(session.NewMemoryStore(0), session.WithClock(clock.Now))

	base := []twofactor.Option{twofactor.WithIssuer("Acme"), twofactor.WithClock(clock)}
	svc, err := twofactor.NewService(store, sessions, append(base, opts...)...)
	require.NoError(t, err)
	return &env{svc: svc, store: store, sessions: sessions, clock: clock}
}

// enroll runs a full enrollment and returns the stored secret and plaintext codes.
func (e *env) enroll(t *testing.T, accountID string) (totp.Secret, []string) {
	t.Helper()
	ctx := context.Background()
	en, err := e.svc.BeginEnrollment(ctx, accountID, accountID+"@example.com")
	require.NoError(t, err)
	codes := en.BackupCodes()

	rec := e.secretOf(t, en.ManualEntryKey())
	require.NoError(t, en.Confirm(ctx, e.token(rec)))
	return rec, codes
}

func (e *env) secretOf(t *testing.T, encoded string) totp.Secret {
	t.Helper()
	secret, err := totp.DecodeSecret(encoded)
	require.NoError(t, err)
	return secret
}

func (e *env) token(secret totp.Secret) string {
	return totp.GenerateTOTPWithTime(secret, e.clock.Now())
}

// wrongToken returns a well-formed token far outside the skew window.
func (e *env) wrongToken(secret totp.Secret) string {
	return totp.GenerateTOTPWithTime(secret, e.clock.Now().Add(time.Hour))
}

// login mints a credential and runs password verification through a new gate.
func (e *env) login(t *testing.T, accountID string) (*twofactor.Gate, string) {
	t.Helper()
	ctx := context.Background()
	sess, err := e.sessions.Mint(ctx)
	require.NoError(t, err)

	gate := e.svc.NewGate()
	_, err = gate.OnPasswordVerified(ctx, sess.Token, accountID)
	require.NoError(t, err)
	return gate, sess.Token
}
