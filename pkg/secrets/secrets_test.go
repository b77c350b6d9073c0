package secrets_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/dmitrymomot/mfakit/pkg/secrets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSealer(t *testing.T) *secrets.Sealer {
	t.Helper()
	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	sealer, err := secrets.NewSealer(key)
	require.NoError(t, err)
	return sealer
}

func TestSealOpen(t *testing.T) {
	t.Parallel()
	sealer := newSealer(t)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty string", ""},
		{"base32 secret", "JBSWY3DPEHPK3PXPJBSWY3DPEHPK3PXP"},
		{"unicode", "Hello 世界"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sealed, err := sealer.Seal("account-1", tt.plaintext)
			require.NoError(t, err)
			assert.True(t, secrets.IsSealed(sealed))
			if tt.plaintext != "" {
				assert.NotContains(t, sealed, tt.plaintext)
			}

			opened, err := sealer.Open("account-1", sealed)
			require.NoError(t, err)
			assert.Equal(t, tt.plaintext, opened)
		})
	}
}

func TestSeal_NonceIsRandom(t *testing.T) {
	t.Parallel()
	sealer := newSealer(t)
	a, err := sealer.Seal("acc", "same")
	require.NoError(t, err)
	b, err := sealer.Seal("acc", "same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_Failures(t *testing.T) {
	t.Parallel()
	sealer := newSealer(t)
	sealed, err := sealer.Seal("alice", "JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	t.Run("wrong account", func(t *testing.T) {
		t.Parallel()
		_, err := sealer.Open("mallory", sealed)
		assert.ErrorIs(t, err, secrets.ErrDecryptionFailed)
	})

	t.Run("wrong key", func(t *testing.T) {
		t.Parallel()
		_, err := newSealer(t).Open("alice", sealed)
		assert.ErrorIs(t, err, secrets.ErrDecryptionFailed)
	})

	t.Run("tampered", func(t *testing.T) {
		t.Parallel()
		raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(sealed, "v1:"))
		require.NoError(t, err)
		raw[len(raw)-1] ^= 0xff
		_, err = sealer.Open("alice", "v1:"+base64.RawStdEncoding.EncodeToString(raw))
		assert.ErrorIs(t, err, secrets.ErrDecryptionFailed)
	})

	t.Run("not sealed", func(t *testing.T) {
		t.Parallel()
		_, err := sealer.Open("alice", "JBSWY3DPEHPK3PXP")
		assert.ErrorIs(t, err, secrets.ErrInvalidCiphertext)
	})

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		_, err := sealer.Open("alice", "v1:AAAA")
		assert.ErrorIs(t, err, secrets.ErrInvalidCiphertext)
	})

	t.Run("missing account id", func(t *testing.T) {
		t.Parallel()
		_, err := sealer.Open("", sealed)
		assert.ErrorIs(t, err, secrets.ErrMissingAccountID)
		_, err = sealer.Seal("", "x")
		assert.ErrorIs(t, err, secrets.ErrMissingAccountID)
	})
}

func TestKeys(t *testing.T) {
	t.Parallel()

	encoded, err := secrets.GenerateEncodedKey()
	require.NoError(t, err)

	key, err := secrets.ParseKey(" " + encoded + "\n")
	require.NoError(t, err)
	assert.Len(t, key, secrets.KeySize)

	_, err = secrets.ParseKey("")
	assert.ErrorIs(t, err, secrets.ErrKeyNotSet)

	_, err = secrets.ParseKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, secrets.ErrInvalidAppKey)

	_, err = secrets.ParseKey("%%%")
	assert.ErrorIs(t, err, secrets.ErrInvalidAppKey)

	_, err = secrets.NewSealer(make([]byte, 16))
	assert.ErrorIs(t, err, secrets.ErrInvalidAppKey)
}
