package twofactor_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mfakit/pkg/credstore"
	"github.com/dmitrymomot/mfakit/pkg/session"
	"github.com/dmitrymomot/mfakit/pkg/totp"
	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

func TestGate_AccountWithoutSecondFactor(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	gate, token := e.login(t, "bob")
	assert.Equal(t, twofactor.Active, gate.State())
	assert.Equal(t, "bob", gate.AccountID())
	assert.True(t, gate.ExpiresAt().IsZero())

	sess, err := e.sessions.Authenticated(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "bob", sess.AccountID)
}

func TestGate_TOTPVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	secret, _ := e.enroll(t, "alice")

	gate, token := e.login(t, "alice")
	assert.Equal(t, twofactor.Pending2FA, gate.State())
	assert.Equal(t, e.clock.Now().Add(twofactor.DefaultPendingTTL), gate.ExpiresAt())

	_, err := e.sessions.Authenticated(ctx, token)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated, "credential must stay inactive while pending")

	assert.ErrorIs(t, gate.Verify(ctx, e.wrongToken(secret)), twofactor.ErrInvalidCode)
	assert.ErrorIs(t, gate.Verify(ctx, "12345"), twofactor.ErrInvalidCode)
	assert.ErrorIs(t, gate.Verify(ctx, ""), twofactor.ErrInvalidCode)
	assert.Equal(t, twofactor.Pending2FA, gate.State())
	_, err = e.sessions.Authenticated(ctx, token)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated, "rejected codes never activate")

	require.NoError(t, gate.Verify(ctx, e.token(secret)))
	assert.Equal(t, twofactor.Active, gate.State())
	sess, err := e.sessions.Authenticated(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.AccountID)

	assert.ErrorIs(t, gate.Verify(ctx, e.token(secret)), twofactor.ErrInvalidState)
	assert.ErrorIs(t, gate.Cancel(ctx), twofactor.ErrInvalidState)
}

func TestGate_TOTPWithinSkewWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	secret, _ := e.enroll(t, "alice")

	gate, _ := e.login(t, "alice")
	previous := totp.GenerateTOTPWithTime(secret, e.clock.Now().Add(-30*time.Second))
	assert.NoError(t, gate.Verify(ctx, previous))
}

func TestGate_BackupCodeIsSingleUse(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	_, codes := e.enroll(t, "alice")

	gate, token := e.login(t, "alice")
	require.NoError(t, gate.Verify(ctx, codes[0]))
	assert.Equal(t, twofactor.Active, gate.State())
	_, err := e.sessions.Authenticated(ctx, token)
	require.NoError(t, err)

	status, err := e.svc.Status(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, status.RemainingBackupCodes)

	second, token2 := e.login(t, "alice")
	assert.ErrorIs(t, second.Verify(ctx, codes[0]), twofactor.ErrInvalidCode)
	assert.Equal(t, twofactor.Pending2FA, second.State())
	_, err = e.sessions.Authenticated(ctx, token2)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	// Case and separators do not matter.
	relaxed := strings.ToLower(strings.ReplaceAll(codes[1], "-", ""))
	require.NoError(t, second.Verify(ctx, relaxed))

	status, err = e.svc.Status(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 6, status.RemainingBackupCodes)
}

func TestGate_ExhaustedBackupCodesKeepTOTP(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t, twofactor.WithBackupCodeCount(1))
	secret, codes := e.enroll(t, "alice")
	require.Len(t, codes, 1)

	gate, _ := e.login(t, "alice")
	require.NoError(t, gate.Verify(ctx, codes[0]))

	status, err := e.svc.Status(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, status.Enabled)
	assert.Zero(t, status.RemainingBackupCodes)

	gate, _ = e.login(t, "alice")
	assert.Equal(t, twofactor.Pending2FA, gate.State())
	assert.NoError(t, gate.Verify(ctx, e.token(secret)))
}

func TestGate_CancelRevokes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	secret, _ := e.enroll(t, "alice")

	gate, token := e.login(t, "alice")
	require.NoError(t, gate.Cancel(ctx))
	assert.Equal(t, twofactor.Unauthenticated, gate.State())
	assert.True(t, gate.ExpiresAt().IsZero())

	_, err := e.sessions.Authenticated(ctx, token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)

	assert.ErrorIs(t, gate.Verify(ctx, e.token(secret)), twofactor.ErrInvalidState)
	assert.ErrorIs(t, gate.Cancel(ctx), twofactor.ErrInvalidState)
}

func TestGate_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	secret, _ := e.enroll(t, "alice")

	gate, token := e.login(t, "alice")
	e.clock.Advance(twofactor.DefaultPendingTTL - time.Second)
	assert.False(t, gate.Expired())

	e.clock.Advance(time.Second)
	assert.True(t, gate.Expired())

	err := gate.Verify(ctx, e.token(secret))
	assert.ErrorIs(t, err, twofactor.ErrPendingExpired)
	assert.Equal(t, twofactor.Unauthenticated, gate.State())
	assert.False(t, gate.Expired())

	_, err = e.sessions.Authenticated(ctx, token)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
}

func TestGate_CustomPendingTTL(t *testing.T) {
	t.Parallel()
	e := newEnv(t, twofactor.WithPendingTTL(time.Minute))
	e.enroll(t, "alice")

	gate, _ := e.login(t, "alice")
	assert.Equal(t, e.clock.Now().Add(time.Minute), gate.ExpiresAt())
	e.clock.Advance(time.Minute)
	assert.True(t, gate.Expired())
}

func TestGate_DisabledWhilePending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	secret, _ := e.enroll(t, "alice")

	gate, token := e.login(t, "alice")
	require.NoError(t, e.svc.Disable(ctx, "alice", e.token(secret)))

	assert.ErrorIs(t, gate.Verify(ctx, e.token(secret)), twofactor.ErrNotEnrolled)
	assert.Equal(t, twofactor.Pending2FA, gate.State())
	_, err := e.sessions.Authenticated(ctx, token)
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	require.NoError(t, gate.Cancel(ctx))
}

func TestGate_ConcurrentBackupCodeHasOneWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)
	_, codes := e.enroll(t, "alice")

	const attempts = 6
	gates := make([]*twofactor.Gate, attempts)
	for i := range gates {
		gates[i], _ = e.login(t, "alice")
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		wins     int
		rejected int
	)
	for _, g := range gates {
		wg.Add(1)
		go func(g *twofactor.Gate) {
			defer wg.Done()
			err := g.Verify(ctx, codes[2])
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, twofactor.ErrInvalidCode):
				rejected++
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, attempts-1, rejected)

	status, err := e.svc.Status(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 7, status.RemainingBackupCodes)
}

func TestGate_InvalidCalls(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := newEnv(t)

	gate := e.svc.NewGate()
	assert.Equal(t, twofactor.Unauthenticated, gate.State())
	assert.ErrorIs(t, gate.Verify(ctx, "123456"), twofactor.ErrInvalidState)
	assert.ErrorIs(t, gate.Cancel(ctx), twofactor.ErrInvalidState)

	_, err := gate.OnPasswordVerified(ctx, "credential", "")
	assert.ErrorIs(t, err, twofactor.ErrMissingAccountID)
	_, err = gate.OnPasswordVerified(ctx, "", "bob")
	assert.ErrorIs(t, err, twofactor.ErrInvalidState)
	assert.Equal(t, twofactor.Unauthenticated, gate.State())

	done, _ := e.login(t, "bob")
	_, err = done.OnPasswordVerified(ctx, "other", "bob")
	assert.ErrorIs(t, err, twofactor.ErrInvalidState)
}

// mockedRecord is an enabled record with a fixed secret and two backup codes.
func mockedRecord() (*twofactor.Record, totp.Secret) {
	secret := totp.Secret([]byte("12345678901234567890"))
	return &twofactor.Record{
		Enabled: true,
		Secret:  secret.Base32(),
		BackupCodeHashes: []string{
			totp.HashBackupCode("AAAA-BBBB"),
			totp.HashBackupCode("CCCC-DDDD"),
		},
	}, secret
}

func newMockedService(t *testing.T, store *MockCredentialStore, sessions *MockSessionManager, clock *fakeClock) *twofactor.Service {
	t.Helper()
	svc, err := twofactor.NewService(store, sessions, twofactor.WithIssuer("Acme"), twofactor.WithClock(clock))
	require.NoError(t, err)
	return svc
}

func TestGate_FailsClosedOnStoreError(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("at password verification", func(t *testing.T) {
		t.Parallel()
		store := new(MockCredentialStore)
		sessions := new(MockSessionManager)
		store.On("Get", mock.Anything, "alice").Return(nil, errors.New("connection reset"))

		gate := newMockedService(t, store, sessions, newFakeClock()).NewGate()
		state, err := gate.OnPasswordVerified(ctx, "cred", "alice")
		assert.ErrorIs(t, err, twofactor.ErrStorage)
		assert.Equal(t, twofactor.Unauthenticated, state)
		sessions.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
		sessions.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything)
	})

	t.Run("at verification", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		rec, secret := mockedRecord()
		store := new(MockCredentialStore)
		sessions := new(MockSessionManager)
		store.On("Get", mock.Anything, "alice").Return(rec, nil).Once()
		store.On("Get", mock.Anything, "alice").Return(nil, errors.New("connection reset")).Once()

		gate := newMockedService(t, store, sessions, clock).NewGate()
		state, err := gate.OnPasswordVerified(ctx, "cred", "alice")
		require.NoError(t, err)
		require.Equal(t, twofactor.Pending2FA, state)

		err = gate.Verify(ctx, totp.GenerateTOTPWithTime(secret, clock.Now()))
		assert.ErrorIs(t, err, twofactor.ErrStorage)
		assert.Equal(t, twofactor.Pending2FA, gate.State())
		sessions.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
		store.AssertExpectations(t)
	})

	t.Run("while consuming a backup code", func(t *testing.T) {
		t.Parallel()
		rec, _ := mockedRecord()
		store := new(MockCredentialStore)
		sessions := new(MockSessionManager)
		store.On("Get", mock.Anything, "alice").Return(rec, nil)
		store.On("SwapBackupCodes", mock.Anything, "alice", rec.BackupCodeHashes, mock.Anything).
			Return(false, errors.New("write timeout"))

		gate := newMockedService(t, store, sessions, newFakeClock()).NewGate()
		_, err := gate.OnPasswordVerified(ctx, "cred", "alice")
		require.NoError(t, err)

		assert.ErrorIs(t, gate.Verify(ctx, "AAAA-BBBB"), twofactor.ErrStorage)
		assert.Equal(t, twofactor.Pending2FA, gate.State())
		sessions.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGate_LostBackupCodeRace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	rec, _ := mockedRecord()
	store := new(MockCredentialStore)
	sessions := new(MockSessionManager)
	store.On("Get", mock.Anything, "alice").Return(rec, nil)
	store.On("SwapBackupCodes", mock.Anything, "alice", rec.BackupCodeHashes, rec.BackupCodeHashes[1:]).
		Return(false, nil)

	gate := newMockedService(t, store, sessions, newFakeClock()).NewGate()
	_, err := gate.OnPasswordVerified(ctx, "cred", "alice")
	require.NoError(t, err)

	assert.ErrorIs(t, gate.Verify(ctx, "aaaa bbbb"), twofactor.ErrInvalidCode)
	assert.Equal(t, twofactor.Pending2FA, gate.State())
	sessions.AssertNotCalled(t, "Activate", mock.Anything, mock.Anything, mock.Anything)
	store.AssertExpectations(t)
}

func TestGate_SessionManagerFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("activation without second factor", func(t *testing.T) {
		t.Parallel()
		store := new(MockCredentialStore)
		sessions := new(MockSessionManager)
		store.On("Get", mock.Anything, "bob").Return(nil, credstore.ErrNotFound)
		sessions.On("Activate", mock.Anything, "cred", "bob").Return(errors.New("unavailable"))
		sessions.On("Revoke", mock.Anything, "cred").Return(nil).Once()

		gate := newMockedService(t, store, sessions, newFakeClock()).NewGate()
		state, err := gate.OnPasswordVerified(ctx, "cred", "bob")
		assert.ErrorIs(t, err, twofactor.ErrSessionManager)
		assert.Equal(t, twofactor.Unauthenticated, state)
		sessions.AssertExpectations(t)
	})

	t.Run("activation and revocation without second factor", func(t *testing.T) {
		t.Parallel()
		store := new(MockCredentialStore)
		sessions := new(MockSessionManager)
		store.On("Get", mock.Anything, "bob").Return(nil, credstore.ErrNotFound)
		sessions.On("Activate", mock.Anything, "cred", "bob").Return(errors.New("unavailable"))
		sessions.On("Revoke", mock.Anything, "cred").Return(errors.New("still unavailable"))

		gate := newMockedService(t, store, sessions, newFakeClock()).NewGate()
		state, err := gate.OnPasswordVerified(ctx, "cred", "bob")
		assert.ErrorIs(t, err, twofactor.ErrSessionManager)
		assert.ErrorContains(t, err, "still unavailable")
		assert.Equal(t, twofactor.Unauthenticated, state)
		sessions.AssertExpectations(t)
	})

	t.Run("activation after verification", func(t *testing.T) {
		t.Parallel()
		clock := newFakeClock()
		rec, secret := mockedRecord()
		store := new(MockCredentialStore)
		sessions := new(MockSessionManager)
		store.On("Get", mock.Anything, "alice").Return(rec, nil)
		sessions.On("Activate", mock.Anything, "cred", "alice").Return(errors.New("unavailable")).Once()
		sessions.On("Activate", mock.Anything, "cred", "alice").Return(nil).Once()

		gate := newMockedService(t, store, sessions, clock).NewGate()
		_, err := gate.OnPasswordVerified(ctx, "cred", "alice")
		require.NoError(t, err)

		token := totp.GenerateTOTPWithTime(secret, clock.Now())
		assert.ErrorIs(t, gate.Verify(ctx, token), twofactor.ErrSessionManager)
		assert.Equal(t, twofactor.Pending2FA, gate.State())

		require.NoError(t, gate.Verify(ctx, token))
		assert.Equal(t, twofactor.Active, gate.State())
		sessions.AssertExpectations(t)
	})

	t.Run("revocation on cancel", func(t *testing.T) {
		t.Parallel()
		rec, _ := mockedRecord()
		store := new(MockCredentialStore)
		sessions := new(MockSessionManager)
		store.On("Get", mock.Anything, "alice").Return(rec, nil)
		sessions.On("Revoke", mock.Anything, "cred").Return(errors.New("unavailable")).Once()
		sessions.On("Revoke", mock.Anything, "cred").Return(nil).Once()

		gate := newMockedService(t, store, sessions, newFakeClock()).NewGate()
		_, err := gate.OnPasswordVerified(ctx, "cred", "alice")
		require.NoError(t, err)

		assert.ErrorIs(t, gate.Cancel(ctx), twofactor.ErrSessionManager)
		assert.Equal(t, twofactor.Pending2FA, gate.State())
		require.NoError(t, gate.Cancel(ctx))
		assert.Equal(t, twofactor.Unauthenticated, gate.State())
		sessions.AssertExpectations(t)
	})
}
