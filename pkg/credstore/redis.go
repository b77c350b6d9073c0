package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

// DefaultRedisPrefix namespaces credential keys.
const DefaultRedisPrefix = "mfa:credentials:"

// maxCreateRetries bounds optimistic retries when Create races another writer.
const maxCreateRetries = 3

// RedisStore keeps each record as a JSON string without expiry.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store on client. An empty prefix means DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(accountID string) string {
	return s.prefix + accountID
}

func (s *RedisStore) Get(ctx context.Context, accountID string) (*twofactor.Record, error) {
	if accountID == "" {
		return nil, ErrMissingAccountID
	}
	data, err := s.client.Get(ctx, s.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, errors.Join(ErrQueryFailed, err)
	}
	return decodeRecord(data)
}

func (s *RedisStore) Put(ctx context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(ErrInvalidRecord, err)
	}
	if err := s.client.Set(ctx, s.key(accountID), data, 0).Err(); err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

// Create writes under WATCH so an enabled record stored concurrently is seen
// before the write commits.
func (s *RedisStore) Create(ctx context.Context, accountID string, rec twofactor.Record) error {
	if err := checkPut(accountID, rec); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Join(ErrInvalidRecord, err)
	}
	key := s.key(accountID)

	create := func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			existing, err := decodeRecord(cur)
			if err != nil {
				return err
			}
			if existing.Enabled {
				return ErrAlreadyEnabled
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for range maxCreateRetries {
		err = s.client.Watch(ctx, create, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrAlreadyEnabled), errors.Is(err, ErrCorruptRecord):
		return err
	default:
		return errors.Join(ErrQueryFailed, err)
	}
}

func (s *RedisStore) Clear(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrMissingAccountID
	}
	if err := s.client.Del(ctx, s.key(accountID)).Err(); err != nil {
		return errors.Join(ErrQueryFailed, err)
	}
	return nil
}

// SwapBackupCodes watches the key and writes inside MULTI/EXEC. A concurrent
// write aborts the transaction and is reported as a lost swap.
func (s *RedisStore) SwapBackupCodes(ctx context.Context, accountID string, expected, next []string) (bool, error) {
	if accountID == "" {
		return false, ErrMissingAccountID
	}
	key := s.key(accountID)
	swapped := false

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		rec, err := decodeRecord(data)
		if err != nil {
			return err
		}
		if !rec.Enabled || !slices.Equal(rec.BackupCodeHashes, expected) {
			return nil
		}

		rec.BackupCodeHashes = nonNil(next)
		rec.UpdatedAt = time.Now().UTC()
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		return false, nil
	case errors.Is(err, ErrCorruptRecord):
		return false, err
	case err != nil:
		return false, errors.Join(ErrQueryFailed, err)
	}
	return swapped, nil
}

func decodeRecord(data []byte) (*twofactor.Record, error) {
	var rec twofactor.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.Join(ErrCorruptRecord, err)
	}
	return &rec, nil
}
