package credstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mfakit/pkg/credstore"
	"github.com/dmitrymomot/mfakit/pkg/totp"
	"github.com/dmitrymomot/mfakit/pkg/twofactor"
)

func enabledRecord(t *testing.T, codes ...string) twofactor.Record {
	t.Helper()
	secret, err := totp.GenerateSecret(nil)
	require.NoError(t, err)
	hashes := make([]string, len(codes))
	for i, c := range codes {
		hashes[i] = totp.HashBackupCode(c)
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	return twofactor.Record{
		Enabled:          true,
		Secret:           secret.Base32(),
		BackupCodeHashes: hashes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// runStoreContract checks the behavior every CredentialStore must share.
// Account ids are random so backends can be reused between runs.
func runStoreContract(t *testing.T, store twofactor.CredentialStore) {
	ctx := context.Background()
	newID := func() string { return "acc-" + uuid.NewString() }

	t.Run("unknown account", func(t *testing.T) {
		rec, err := store.Get(ctx, newID())
		assert.ErrorIs(t, err, credstore.ErrNotFound)
		assert.ErrorIs(t, err, twofactor.ErrRecordNotFound)
		assert.Nil(t, rec)
	})

	t.Run("missing account id", func(t *testing.T) {
		_, err := store.Get(ctx, "")
		assert.ErrorIs(t, err, credstore.ErrMissingAccountID)
		assert.ErrorIs(t, store.Put(ctx, "", enabledRecord(t, "AAAA-BBBB")), credstore.ErrMissingAccountID)
		assert.ErrorIs(t, store.Create(ctx, "", enabledRecord(t, "AAAA-BBBB")), credstore.ErrMissingAccountID)
		assert.ErrorIs(t, store.Clear(ctx, ""), credstore.ErrMissingAccountID)
		_, err = store.SwapBackupCodes(ctx, "", nil, nil)
		assert.ErrorIs(t, err, credstore.ErrMissingAccountID)
	})

	t.Run("put and get", func(t *testing.T) {
		id := newID()
		want := enabledRecord(t, "AAAA-BBBB", "CCCC-DDDD")
		require.NoError(t, store.Put(ctx, id, want))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Enabled)
		assert.Equal(t, want.Secret, got.Secret)
		assert.Equal(t, want.BackupCodeHashes, got.BackupCodeHashes)
		assert.WithinDuration(t, want.CreatedAt, got.CreatedAt, time.Millisecond)
		assert.True(t, got.Valid())

		got.BackupCodeHashes[0] = "tampered"
		again, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want.BackupCodeHashes, again.BackupCodeHashes)
	})

	t.Run("inconsistent record is refused", func(t *testing.T) {
		id := newID()
		err := store.Put(ctx, id, twofactor.Record{Enabled: true})
		assert.ErrorIs(t, err, credstore.ErrInvalidRecord)
		err = store.Put(ctx, id, twofactor.Record{Secret: "JBSWY3DPEHPK3PXP"})
		assert.ErrorIs(t, err, credstore.ErrInvalidRecord)
	})

	t.Run("clear removes everything", func(t *testing.T) {
		id := newID()
		require.NoError(t, store.Put(ctx, id, enabledRecord(t, "AAAA-BBBB")))
		require.NoError(t, store.Clear(ctx, id))

		_, err := store.Get(ctx, id)
		assert.ErrorIs(t, err, credstore.ErrNotFound)
		assert.NoError(t, store.Clear(ctx, id), "clearing twice is not an error")
	})

	t.Run("create never replaces an enabled record", func(t *testing.T) {
		id := newID()
		first := enabledRecord(t, "AAAA-BBBB")
		require.NoError(t, store.Create(ctx, id, first))

		err := store.Create(ctx, id, enabledRecord(t, "CCCC-DDDD"))
		assert.ErrorIs(t, err, credstore.ErrAlreadyEnabled)
		assert.ErrorIs(t, err, twofactor.ErrAlreadyEnrolled)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, first.Secret, got.Secret)
		assert.Equal(t, first.BackupCodeHashes, got.BackupCodeHashes)

		require.NoError(t, store.Clear(ctx, id))
		second := enabledRecord(t, "EEEE-FFFF")
		require.NoError(t, store.Create(ctx, id, second), "create succeeds again after clear")
		got, err = store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, second.Secret, got.Secret)
	})

	t.Run("create replaces a disabled record", func(t *testing.T) {
		id := newID()
		require.NoError(t, store.Put(ctx, id, twofactor.Record{}))
		rec := enabledRecord(t, "AAAA-BBBB")
		require.NoError(t, store.Create(ctx, id, rec))

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Enabled)
		assert.Equal(t, rec.Secret, got.Secret)
	})

	t.Run("concurrent creates have one winner", func(t *testing.T) {
		id := newID()
		const workers = 8
		records := make([]twofactor.Record, workers)
		for i := range records {
			records[i] = enabledRecord(t, "AAAA-BBBB")
		}

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			winner = -1
			wins   int
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.Create(ctx, id, records[i])
				if err != nil {
					assert.ErrorIs(t, err, credstore.ErrAlreadyEnabled)
					return
				}
				mu.Lock()
				wins++
				winner = i
				mu.Unlock()
			}()
		}
		wg.Wait()
		require.Equal(t, 1, wins)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, records[winner].Secret, got.Secret)
	})

	t.Run("swap backup codes", func(t *testing.T) {
		id := newID()
		rec := enabledRecord(t, "AAAA-BBBB", "CCCC-DDDD")
		require.NoError(t, store.Put(ctx, id, rec))

		next := rec.BackupCodeHashes[1:]
		ok, err := store.SwapBackupCodes(ctx, id, rec.BackupCodeHashes, next)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.SwapBackupCodes(ctx, id, rec.BackupCodeHashes, next)
		require.NoError(t, err)
		assert.False(t, ok, "stale expected set must lose")

		ok, err = store.SwapBackupCodes(ctx, id, next, nil)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Enabled, "running out of codes keeps two-factor enabled")
		assert.Empty(t, got.BackupCodeHashes)
		assert.Zero(t, got.RemainingBackupCodes())
	})

	t.Run("swap on unknown account", func(t *testing.T) {
		ok, err := store.SwapBackupCodes(ctx, newID(), []string{"x"}, nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent swaps have one winner", func(t *testing.T) {
		id := newID()
		rec := enabledRecord(t, "AAAA-BBBB", "CCCC-DDDD", "EEEE-FFFF")
		require.NoError(t, store.Put(ctx, id, rec))

		const workers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.SwapBackupCodes(ctx, id, rec.BackupCodeHashes, rec.BackupCodeHashes[1:])
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)

		got, err := store.Get(ctx, id)
		require.NoError(t, err)
		assert.Len(t, got.BackupCodeHashes, 2)
	})
}
