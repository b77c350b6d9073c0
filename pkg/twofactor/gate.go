package twofactor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrymomot/mfakit/pkg/logger"
	"github.com/dmitrymomot/mfakit/pkg/statemachine"
	"github.com/dmitrymomot/mfakit/pkg/totp"
)

// Login gate states.
const (
	Unauthenticated  = State("unauthenticated")
	PasswordVerified = State("password_verified")
	Pending2FA       = State("pending_2fa")
	Active           = State("active")
)

const (
	eventPasswordOK = event("password_verified")
	eventNoSecond   = event("no_second_factor")
	eventChallenge  = event("challenge")
	eventAbort      = event("abort")
	eventVerify     = event("verify")
	eventCancel     = event("cancel")
)

// Verification methods reported in logs.
const (
	MethodTOTP       = "totp"
	MethodBackupCode = "backup_code"
)

// pendingAuthentication holds a credential that is valid but not yet usable.
// It never leaves the Gate.
type pendingAuthentication struct {
	credential string
	accountID  string
	expiresAt  time.Time
}

type activation struct {
	credential string
	accountID  string
}

// Gate holds one login attempt between password verification and session
// activation. For an account with two-factor enabled, the credential is only
// activated after Verify accepts a TOTP token or consumes a backup code.
type Gate struct {
	svc *Service

	mu        sync.Mutex
	machine   statemachine.StateMachine
	pending   *pendingAuthentication
	accountID string
}

// NewGate starts a login attempt in the Unauthenticated state.
func (s *Service) NewGate() *Gate {
	g := &Gate{svc: s}
	activate := statemachine.WithAction(g.activate)
	revoke := statemachine.WithAction(g.revoke)

	g.machine = statemachine.MustNew(Unauthenticated,
		statemachine.WithTransition(Unauthenticated, PasswordVerified, eventPasswordOK),
		statemachine.WithTransition(PasswordVerified, Active, eventNoSecond, activate),
		statemachine.WithTransition(PasswordVerified, Pending2FA, eventChallenge),
		statemachine.WithTransition(PasswordVerified, Unauthenticated, eventAbort),
		statemachine.WithTransition(Pending2FA, Active, eventVerify, activate),
		statemachine.WithTransition(Pending2FA, Unauthenticated, eventCancel, revoke),
		statemachine.WithObserver(s.observer("login", func() string { return g.accountID })),
	)
	return g
}

// State returns the current step of the login attempt.
func (g *Gate) State() State {
	return g.machine.Current().(State)
}

// AccountID returns the account of the attempt once the password was verified.
func (g *Gate) AccountID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.accountID
}

// ExpiresAt returns when a pending attempt stops accepting codes. It is zero
// unless the gate is waiting for a second factor.
func (g *Gate) ExpiresAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return time.Time{}
	}
	return g.pending.expiresAt
}

// Expired reports whether a pending attempt has outlived its TTL.
func (g *Gate) Expired() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.expired()
}

// OnPasswordVerified takes the credential minted for a correct password.
// Accounts without two-factor authentication are activated immediately.
// Enrolled accounts move to Pending2FA and the credential stays inactive.
// A credential store failure returns the gate to Unauthenticated without
// touching the session manager. If activation fails the credential is revoked.
func (g *Gate) OnPasswordVerified(ctx context.Context, credential, accountID string) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if accountID == "" {
		return g.State(), ErrMissingAccountID
	}
	if credential == "" {
		return g.State(), ErrInvalidState
	}
	if err := g.machine.Fire(ctx, eventPasswordOK, nil); err != nil {
		return g.State(), ErrInvalidState
	}
	g.accountID = accountID

	rec, err := g.svc.lookup(ctx, accountID)
	if err != nil {
		g.abort(ctx)
		return g.State(), err
	}

	if rec == nil {
		if err := g.machine.Fire(ctx, eventNoSecond, activation{credential, accountID}); err != nil {
			g.abort(ctx)
			if rvErr := g.svc.sessions.Revoke(ctx, credential); rvErr != nil {
				err = errors.Join(err, rvErr)
			}
			g.svc.logger.ErrorContext(ctx, "failed to activate session",
				logger.AccountID(accountID), logger.Error(err))
			return g.State(), errors.Join(ErrSessionManager, err)
		}
		g.svc.logger.InfoContext(ctx, "login completed without second factor", logger.AccountID(accountID))
		return g.State(), nil
	}

	g.pending = &pendingAuthentication{
		credential: credential,
		accountID:  accountID,
		expiresAt:  g.svc.clock.Now().Add(g.svc.pendingTTL),
	}
	if err := g.machine.Fire(ctx, eventChallenge, nil); err != nil {
		g.pending = nil
		g.abort(ctx)
		return g.State(), err
	}
	g.svc.logger.InfoContext(ctx, "second factor required", logger.AccountID(accountID))
	return g.State(), nil
}

// Verify accepts a TOTP token or a backup code for a pending attempt. TOTP is
// tried first. A matching backup code is consumed with a compare-and-swap, so
// two attempts racing on the same code cannot both succeed. An expired attempt
// is cancelled and its credential revoked.
func (g *Gate) Verify(ctx context.Context, token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil || !g.machine.Is(Pending2FA) {
		return ErrInvalidState
	}
	if g.expired() {
		err := g.cancel(ctx)
		g.svc.logger.InfoContext(ctx, "pending login expired", logger.AccountID(g.accountID), logger.Error(err))
		return errors.Join(ErrPendingExpired, err)
	}

	p := g.pending
	rec, err := g.svc.lookup(ctx, p.accountID)
	if err != nil {
		return err
	}
	if rec == nil {
		// Disabled while the login was pending; the attempt must be restarted.
		return ErrNotEnrolled
	}

	method, err := g.checkSecondFactor(ctx, rec, token)
	if err != nil {
		return err
	}

	if err := g.machine.Fire(ctx, eventVerify, activation{p.credential, p.accountID}); err != nil {
		g.svc.logger.ErrorContext(ctx, "failed to activate session",
			logger.AccountID(p.accountID), logger.Error(err))
		return errors.Join(ErrSessionManager, err)
	}
	g.pending = nil

	g.svc.logger.InfoContext(ctx, "second factor verified",
		logger.AccountID(p.accountID), logger.Method(method))
	return nil
}

// Cancel abandons a pending attempt and revokes its credential.
func (g *Gate) Cancel(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.pending == nil || !g.machine.Is(Pending2FA) {
		return ErrInvalidState
	}
	return g.cancel(ctx)
}

func (g *Gate) checkSecondFactor(ctx context.Context, rec *Record, token string) (string, error) {
	accountID := g.pending.accountID
	if g.svc.validTOTP(ctx, accountID, rec, token) {
		return MethodTOTP, nil
	}
	if !totp.IsBackupCodeFormat(token) {
		g.svc.logger.InfoContext(ctx, "second factor rejected", logger.AccountID(accountID))
		return "", ErrInvalidCode
	}

	matched, remaining := totp.VerifyAndConsumeBackupCode(token, rec.BackupCodeHashes)
	if !matched {
		g.svc.logger.InfoContext(ctx, "backup code rejected", logger.AccountID(accountID))
		return "", ErrInvalidCode
	}
	swapped, err := g.svc.store.SwapBackupCodes(ctx, accountID, rec.BackupCodeHashes, remaining)
	if err != nil {
		g.svc.logger.ErrorContext(ctx, "failed to consume backup code",
			logger.AccountID(accountID), logger.Error(err))
		return "", errors.Join(ErrStorage, err)
	}
	if !swapped {
		g.svc.logger.WarnContext(ctx, "backup code consumed concurrently", logger.AccountID(accountID))
		return "", ErrInvalidCode
	}

	g.svc.logger.InfoContext(ctx, "backup code consumed",
		logger.AccountID(accountID), logger.RemainingCodes(len(remaining)))
	return MethodBackupCode, nil
}

func (g *Gate) cancel(ctx context.Context) error {
	if err := g.machine.Fire(ctx, eventCancel, g.pending.credential); err != nil {
		g.svc.logger.ErrorContext(ctx, "failed to revoke pending credential",
			logger.AccountID(g.pending.accountID), logger.Error(err))
		return errors.Join(ErrSessionManager, err)
	}
	g.pending = nil
	return nil
}

func (g *Gate) abort(ctx context.Context) {
	_ = g.machine.Fire(ctx, eventAbort, nil)
}

func (g *Gate) expired() bool {
	return g.pending != nil && !g.svc.clock.Now().Before(g.pending.expiresAt)
}

func (g *Gate) activate(ctx context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	a := data.(activation)
	return g.svc.sessions.Activate(ctx, a.credential, a.accountID)
}

func (g *Gate) revoke(ctx context.Context, _, _ statemachine.State, _ statemachine.Event, data any) error {
	return g.svc.sessions.Revoke(ctx, data.(string))
}
