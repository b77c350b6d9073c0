package twofactor

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dmitrymomot/mfakit/pkg/logger"
	"github.com/dmitrymomot/mfakit/pkg/statemachine"
	"github.com/dmitrymomot/mfakit/pkg/totp"
)

// Enrollment states.
const (
	EnrollmentNotStarted = State("not_started")
	SecretIssued         = State("secret_issued")
	Verified             = State("verified")
	Persisted            = State("persisted")
)

const (
	eventIssue    = event("issue")
	eventConfirm  = event("confirm")
	eventPersist  = event("persist")
	eventRollback = event("rollback")
)

// Enrollment is one in-progress setup of two-factor authentication. The secret
// and plaintext backup codes live only in this value until Confirm persists
// their storage form, after which they are wiped.
type Enrollment struct {
	svc       *Service
	accountID string

	mu      sync.Mutex
	machine statemachine.StateMachine
	secret  totp.Secret
	uri     string
	codes   []string
}

// BeginEnrollment issues a fresh secret and backup codes for the account.
// Nothing is written to the credential store until Confirm succeeds. An empty
// label falls back to the account id.
func (s *Service) BeginEnrollment(ctx context.Context, accountID, label string) (*Enrollment, error) {
	rec, err := s.lookup(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec != nil {
		return nil, ErrAlreadyEnrolled
	}
	if strings.TrimSpace(label) == "" {
		label = accountID
	}

	secret, err := totp.GenerateSecret(s.random)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate secret", logger.AccountID(accountID), logger.Error(err))
		return nil, err
	}
	uri, err := totp.BuildURI(secret, s.issuer, label)
	if err != nil {
		secret.Wipe()
		return nil, err
	}
	codes, err := totp.GenerateBackupCodes(s.random, s.backupCodeCount)
	if err != nil {
		secret.Wipe()
		s.logger.ErrorContext(ctx, "failed to generate backup codes", logger.AccountID(accountID), logger.Error(err))
		return nil, err
	}

	e := &Enrollment{
		svc:       s,
		accountID: accountID,
		secret:    secret,
		uri:       uri.String(),
		codes:     codes,
	}
	e.machine = statemachine.MustNew(EnrollmentNotStarted,
		statemachine.WithTransition(EnrollmentNotStarted, SecretIssued, eventIssue),
		statemachine.WithTransition(SecretIssued, Verified, eventConfirm,
			statemachine.WithGuard(e.tokenMatches),
		),
		statemachine.WithTransition(Verified, Persisted, eventPersist,
			statemachine.WithAction(e.persist),
		),
		statemachine.WithTransition(Verified, SecretIssued, eventRollback),
		statemachine.WithObserver(s.observer("enrollment", func() string { return accountID })),
	)
	if err := e.machine.Fire(ctx, eventIssue, nil); err != nil {
		e.wipe()
		return nil, err
	}

	s.logger.InfoContext(ctx, "enrollment started", logger.AccountID(accountID))
	return e, nil
}

// AccountID returns the account being enrolled.
func (e *Enrollment) AccountID() string { return e.accountID }

// State returns the current enrollment step.
func (e *Enrollment) State() State {
	return e.machine.Current().(State)
}

// URI returns the otpauth provisioning URI while the secret is awaiting
// confirmation, and an empty string otherwise.
func (e *Enrollment) URI() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.machine.Is(SecretIssued) {
		return ""
	}
	return e.uri
}

// ManualEntryKey returns the secret grouped for typing into an authenticator
// app, or an empty string once the enrollment is finished or abandoned.
func (e *Enrollment) ManualEntryKey() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.machine.Is(SecretIssued) {
		return ""
	}
	return totp.FormatForDisplay(e.secret.Base32())
}

// BackupCodes returns a copy of the plaintext backup codes so they can be shown
// before confirmation. Only their hashes are persisted, and the plaintext is
// dropped once Confirm succeeds.
func (e *Enrollment) BackupCodes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.codes == nil {
		return nil
	}
	return append([]string(nil), e.codes...)
}

// QRCode renders the provisioning URI with the service's QRRenderer.
func (e *Enrollment) QRCode() ([]byte, error) {
	uri := e.URI()
	if uri == "" {
		return nil, ErrInvalidState
	}
	return e.svc.qr.Render(uri)
}

// Confirm checks a token from the user's authenticator and, when it matches,
// stores the record. A wrong token keeps the enrollment open for another try.
// A store failure rolls back so Confirm can be retried. If another enrollment
// enabled the account first, this one is discarded and ErrAlreadyEnrolled is
// returned; the stored record is left untouched.
func (e *Enrollment) Confirm(ctx context.Context, token string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.machine.Is(SecretIssued) {
		return ErrInvalidState
	}

	if err := e.machine.Fire(ctx, eventConfirm, token); err != nil {
		if statemachine.IsTransitionRejectedError(err) {
			e.svc.logger.InfoContext(ctx, "enrollment code rejected", logger.AccountID(e.accountID))
			return ErrInvalidCode
		}
		return err
	}

	if err := e.machine.Fire(ctx, eventPersist, nil); err != nil {
		if errors.Is(err, ErrAlreadyEnrolled) {
			e.wipe()
			_ = e.machine.Reset()
			e.svc.logger.WarnContext(ctx, "enrollment superseded by an enabled record",
				logger.AccountID(e.accountID))
			return ErrAlreadyEnrolled
		}
		if rbErr := e.machine.Fire(ctx, eventRollback, nil); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
		e.svc.logger.ErrorContext(ctx, "failed to persist enrollment",
			logger.AccountID(e.accountID), logger.Error(err))
		return errors.Join(ErrStorage, err)
	}

	issued := len(e.codes)
	e.wipe()
	e.svc.logger.InfoContext(ctx, "two-factor enabled",
		logger.AccountID(e.accountID), logger.RemainingCodes(issued))
	return nil
}

// Abandon discards the enrollment. Nothing has been stored, so nothing is
// removed. A persisted enrollment is left as it is.
func (e *Enrollment) Abandon() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.machine.Is(Persisted) {
		return
	}
	e.wipe()
	_ = e.machine.Reset()
}

func (e *Enrollment) wipe() {
	e.secret.Wipe()
	e.secret = nil
	e.uri = ""
	for i := range e.codes {
		e.codes[i] = ""
	}
	e.codes = nil
}

func (e *Enrollment) tokenMatches(_ context.Context, _ statemachine.State, _ statemachine.Event, data any) bool {
	token, ok := data.(string)
	return ok && totp.Validate(e.secret, token, e.svc.clock.Now(), e.svc.window)
}

func (e *Enrollment) persist(ctx context.Context, _, _ statemachine.State, _ statemachine.Event, _ any) error {
	now := e.svc.clock.Now().UTC()
	return e.svc.store.Create(ctx, e.accountID, Record{
		Enabled:          true,
		Secret:           e.secret.Base32(),
		BackupCodeHashes: hashCodes(e.codes),
		CreatedAt:        now,
		UpdatedAt:        now,
	})
}
