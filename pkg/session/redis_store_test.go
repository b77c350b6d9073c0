package session_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mfakit/pkg/session"
)

func TestRedisStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	store := session.NewRedisStore(client, "mfa:test:session:")
	runStoreContract(t, store)

	ctx := context.Background()
	s := &session.Session{Token: "ttl-check", ExpiresAt: time.Now().Add(time.Minute)}
	require.NoError(t, store.Create(ctx, s))
	t.Cleanup(func() { _ = store.Delete(ctx, s.Token) })

	ttl, err := client.TTL(ctx, "mfa:test:session:ttl-check").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	expired := &session.Session{Token: "expired", ExpiresAt: time.Now().Add(-time.Second)}
	assert.ErrorIs(t, store.Create(ctx, expired), session.ErrSessionExpired)
}
