package twofactor

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/mfakit/pkg/logger"
	"github.com/dmitrymomot/mfakit/pkg/qrcode"
	"github.com/dmitrymomot/mfakit/pkg/statemachine"
	"github.com/dmitrymomot/mfakit/pkg/totp"
)

// swapAttempts bounds retries when a backup code set changes under a rotation.
const swapAttempts = 3

// Service coordinates enrollment, login verification and account level
// two-factor operations on top of a CredentialStore and a SessionManager.
type Service struct {
	store           CredentialStore
	sessions        SessionManager
	issuer          string
	clock           Clock
	random          io.Reader
	backupCodeCount int
	window          int
	pendingTTL      time.Duration
	logger          *slog.Logger
	qr              QRRenderer
}

// NewService creates a Service. An issuer must be provided through WithIssuer
// or NewFromConfig.
func NewService(store CredentialStore, sessions SessionManager, opts ...Option) (*Service, error) {
	s := &Service{
		store:           store,
		sessions:        sessions,
		clock:           SystemClock,
		random:          rand.Reader,
		backupCodeCount: totp.DefaultBackupCodeCount,
		window:          totp.DefaultWindow,
		pendingTTL:      DefaultPendingTTL,
		logger:          logger.Discard(),
		qr:              qrcode.Renderer{},
	}

	for _, opt := range opts {
		opt(s)
	}

	s.issuer = strings.TrimSpace(s.issuer)
	switch {
	case store == nil:
		return nil, errors.Join(ErrInvalidConfig, errors.New("credential store is required"))
	case sessions == nil:
		return nil, errors.Join(ErrInvalidConfig, errors.New("session manager is required"))
	case s.issuer == "":
		return nil, errors.Join(ErrInvalidConfig, totp.ErrMissingIssuer)
	case s.backupCodeCount <= 0:
		return nil, errors.Join(ErrInvalidConfig, totp.ErrInvalidRecoveryCodeCount)
	case s.window < 0:
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("negative skew window %d", s.window))
	case s.pendingTTL <= 0:
		return nil, errors.Join(ErrInvalidConfig, fmt.Errorf("pending ttl must be positive, got %s", s.pendingTTL))
	}

	s.logger = s.logger.With(logger.Component("twofactor"))
	return s, nil
}

// Issuer returns the issuer embedded in provisioning URIs.
func (s *Service) Issuer() string { return s.issuer }

// PendingTTL returns the lifetime of a login waiting for its second factor.
func (s *Service) PendingTTL() time.Duration { return s.pendingTTL }

// Status reports whether two-factor authentication is enabled for the account.
// Unknown accounts are reported as disabled.
func (s *Service) Status(ctx context.Context, accountID string) (Status, error) {
	rec, err := s.lookup(ctx, accountID)
	if err != nil {
		return Status{}, err
	}
	if rec == nil {
		return Status{}, nil
	}
	return Status{
		Enabled:              true,
		RemainingBackupCodes: rec.RemainingBackupCodes(),
		UpdatedAt:            rec.UpdatedAt,
	}, nil
}

// Disable turns two-factor authentication off. It requires a live TOTP token;
// backup codes are not accepted here.
func (s *Service) Disable(ctx context.Context, accountID, token string) error {
	rec, err := s.lookup(ctx, accountID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrNotEnrolled
	}
	if !s.validTOTP(ctx, accountID, rec, token) {
		s.logger.InfoContext(ctx, "disable rejected", logger.AccountID(accountID))
		return ErrInvalidCode
	}
	if err := s.store.Clear(ctx, accountID); err != nil {
		s.logger.ErrorContext(ctx, "failed to clear two-factor record",
			logger.AccountID(accountID), logger.Error(err))
		return errors.Join(ErrStorage, err)
	}

	s.logger.InfoContext(ctx, "two-factor disabled", logger.AccountID(accountID))
	return nil
}

// RegenerateBackupCodes replaces every backup code of an enrolled account after
// checking a live TOTP token. The new plaintext codes are returned once and
// only their hashes are stored.
func (s *Service) RegenerateBackupCodes(ctx context.Context, accountID, token string) ([]string, error) {
	rec, err := s.lookup(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotEnrolled
	}
	if !s.validTOTP(ctx, accountID, rec, token) {
		return nil, ErrInvalidCode
	}

	codes, err := totp.GenerateBackupCodes(s.random, s.backupCodeCount)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate backup codes",
			logger.AccountID(accountID), logger.Error(err))
		return nil, err
	}
	hashes := hashCodes(codes)

	for attempt := range swapAttempts {
		if attempt > 0 {
			if rec, err = s.lookup(ctx, accountID); err != nil {
				return nil, err
			}
			if rec == nil {
				return nil, ErrNotEnrolled
			}
		}
		swapped, err := s.store.SwapBackupCodes(ctx, accountID, rec.BackupCodeHashes, hashes)
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to store backup codes",
				logger.AccountID(accountID), logger.Error(err))
			return nil, errors.Join(ErrStorage, err)
		}
		if swapped {
			s.logger.InfoContext(ctx, "backup codes regenerated",
				logger.AccountID(accountID), logger.RemainingCodes(len(hashes)))
			return codes, nil
		}
	}
	return nil, errors.Join(ErrStorage, errors.New("backup codes changed concurrently"))
}

// lookup returns the enabled record for the account, or nil when the account
// has no usable second factor.
func (s *Service) lookup(ctx context.Context, accountID string) (*Record, error) {
	if accountID == "" {
		return nil, ErrMissingAccountID
	}
	rec, err := s.store.Get(ctx, accountID)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "credential store lookup failed",
			logger.AccountID(accountID), logger.Error(err))
		return nil, errors.Join(ErrStorage, err)
	case rec == nil || !rec.Enabled:
		return nil, nil
	}
	return rec, nil
}

func (s *Service) validTOTP(ctx context.Context, accountID string, rec *Record, token string) bool {
	secret, err := totp.DecodeSecret(rec.Secret)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored secret is unreadable",
			logger.AccountID(accountID), logger.Error(err))
		return false
	}
	defer secret.Wipe()
	return totp.Validate(secret, token, s.clock.Now(), s.window)
}

func hashCodes(codes []string) []string {
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = totp.HashBackupCode(c)
	}
	return hashes
}

// observer logs committed flow transitions. account is read while the flow
// holds its own lock, so it must not lock again.
func (s *Service) observer(flow string, account func() string) statemachine.Observer {
	return func(ctx context.Context, from, to statemachine.State, ev statemachine.Event) {
		s.logger.DebugContext(ctx, flow+" transition",
			logger.AccountID(account()),
			logger.Transition(from.Name(), to.Name()),
			logger.Event(ev.Name()),
		)
	}
}
