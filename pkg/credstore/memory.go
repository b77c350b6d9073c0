package credstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

// MemoryStore keeps records in process. Records are copied on the way in and
// out, so callers never share slices with the store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]twofactor.Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]twofactor.Record),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, accountID string) (*twofactor.Record, error) {
	if accountID == "" {
		return nil, ErrMissingAccountID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec.Clone()
	return &out, nil
}

func (s *MemoryStore) Put(_ context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[accountID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Create(_ context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.records[accountID]; ok && cur.Enabled {
		return ErrAlreadyEnabled
	}
	s.records[accountID] = rec.Clone()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, accountID string) error {
	if accountID == "" {
		return ErrMissingAccountID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, accountID)
	return nil
}

func (s *MemoryStore) SwapBackupCodes(_ context.Context, accountID string, expected, next []string) (bool, error) {
	if accountID == "" {
		return false, ErrMissingAccountID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[accountID]
	if !ok || !rec.Enabled || !slices.Equal(rec.BackupCodeHashes, expected) {
		return false, nil
	}
	rec.BackupCodeHashes = slices.Clone(nonNil(next))
	rec.UpdatedAt = s.now().UTC()
	s.records[accountID] = rec
	return true, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func checkPut(accountID string, rec twofactor.Record) error {
	if accountID == "" {
		return ErrMissingAccountID
	}
	if !rec.Valid() {
		return ErrInvalidRecord
	}
	return nil
}

// nonNil keeps empty hash sets distinguishable from NULL in SQL and BSON.
func nonNil(hashes []string) []string {
	if hashes == nil {
		return []string{}
	}
	return hashes
}
