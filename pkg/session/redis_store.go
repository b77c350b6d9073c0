package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces session keys.
const DefaultRedisPrefix = "mfa:session:"

// RedisStore implements Store on Redis. Keys expire together with the session.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store on client. An empty prefix uses DefaultRedisPrefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Create stores a new session
func (s *RedisStore) Create(ctx context.Context, session *Session) error {
	data, ttl, err := s.encode(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetNX(ctx, s.prefix+session.Token, data, ttl).Result()
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	if !ok {
		return ErrInvalidSession
	}
	return nil
}

// Get retrieves a session by token
func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, s.prefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Join(ErrStore, err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Join(ErrInvalidSession, err)
	}
	return &session, nil
}

// Update replaces an existing session and resets its key expiry
func (s *RedisStore) Update(ctx context.Context, session *Session) error {
	data, ttl, err := s.encode(session)
	if err != nil {
		return err
	}
	ok, err := s.client.SetXX(ctx, s.prefix+session.Token, data, ttl).Result()
	if err != nil {
		return errors.Join(ErrStore, err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// Delete removes a session by token
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.prefix+token).Err(); err != nil {
		return errors.Join(ErrStore, err)
	}
	return nil
}

func (s *RedisStore) encode(session *Session) ([]byte, time.Duration, error) {
	if session == nil || session.Token == "" {
		return nil, 0, ErrInvalidSession
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return nil, 0, ErrSessionExpired
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, 0, errors.Join(ErrInvalidSession, err)
	}
	return data, ttl, nil
}
