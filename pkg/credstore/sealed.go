package credstore

import (
	"context"
	"errors"

	"github.com/dmitrymomot/mfakit/pkg/secrets"
	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

// SealedStore encrypts Record.Secret before it reaches the wrapped store and
// decrypts it on the way out. Backup code hashes pass through unchanged.
type SealedStore struct {
	next   twofactor.CredentialStore
	sealer *secrets.Sealer
}

// NewSealedStore wraps next.
func NewSealedStore(next twofactor.CredentialStore, sealer *secrets.Sealer) *SealedStore {
	return &SealedStore{next: next, sealer: sealer}
}

// Get opens sealed secrets. Secrets written before sealing was enabled are
// returned as stored and get sealed on the next Put.
func (s *SealedStore) Get(ctx context.Context, accountID string) (*twofactor.Record, error) {
	rec, err := s.next.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if rec.Secret == "" || !secrets.IsSealed(rec.Secret) {
		return rec, nil
	}
	plain, err := s.sealer.Open(accountID, rec.Secret)
	if err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	rec.Secret = plain
	return rec, nil
}

func (s *SealedStore) Put(ctx context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	if rec.Secret != "" {
		sealed, err := s.sealer.Seal(accountID, rec.Secret)
		if err != nil {
			return err
		}
		rec.Secret = sealed
	}
	return s.next.Put(ctx, accountID, rec)
}

func (s *SealedStore) Create(ctx context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	if rec.Secret != "" {
		sealed, err := s.sealer.Seal(accountID, rec.Secret)
		if err != nil {
			return err
		}
		rec.Secret = sealed
	}
	return s.next.Create(ctx, accountID, rec)
}

func (s *SealedStore) Clear(ctx context.Context, accountID string) error {
	return s.next.Clear(ctx, accountID)
}

func (s *SealedStore) SwapBackupCodes(ctx context.Context, accountID string, expected, next []string) (bool, error) {
	return s.next.SwapBackupCodes(ctx, accountID, expected, next)
}
