package ratelimiter

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces bucket keys.
const DefaultRedisPrefix = "mfa:attempts:"

const redisTxAttempts = 5

// RedisStore keeps buckets in Redis so every instance shares the same limits.
// Each bucket is a hash updated under WATCH, so concurrent attempts from
// different processes cannot both spend the last token.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis backed store. An empty prefix means
// DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, config Config) (int, time.Time, error) {
	key = s.prefix + key
	var (
		remaining int
		resetAt   time.Time
	)

	txf := func(tx *redis.Tx) error {
		now := s.now()
		state, err := tx.HGetAll(ctx, key).Result()
		if err != nil {
			return err
		}

		current, last := config.Capacity, now
		if v, ok := state["tokens"]; ok {
			if current, err = strconv.Atoi(v); err != nil {
				return err
			}
		}
		if v, ok := state["last_refill"]; ok {
			nanos, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return err
			}
			last = time.Unix(0, nanos)
		}

		current, last = config.refill(current, last, now)
		remaining = current - tokens
		if remaining >= 0 {
			current = remaining
		}
		resetAt = last.Add(config.RefillInterval)

		// Idle buckets are full again after this long, so Redis may forget them.
		ttl := config.RefillInterval * time.Duration(config.Capacity/config.RefillRate+1)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "tokens", current, "last_refill", last.UnixNano())
			pipe.PExpire(ctx, key, ttl)
			return nil
		})
		return err
	}

	for range redisTxAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
		}
		return remaining, resetAt, nil
	}
	return 0, time.Time{}, errors.Join(ErrStoreUnavailable, redis.TxFailedErr)
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
