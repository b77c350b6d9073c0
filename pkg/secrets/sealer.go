package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

// sealedPrefix tags the storage format so a future key scheme can coexist.
const sealedPrefix = "v1:"

// Sealer encrypts short account secrets (TOTP Base32 keys) for storage.
// Each account gets its own AES-256-GCM key derived from the application key,
// and the account id is bound as additional data so a ciphertext copied to
// another account fails to open.
type Sealer struct {
	appKey []byte
	rand   io.Reader
}

// NewSealer returns a Sealer for a 32-byte application key.
func NewSealer(appKey []byte) (*Sealer, error) {
	if len(appKey) != KeySize {
		return nil, ErrInvalidAppKey
	}
	key := make([]byte, KeySize)
	copy(key, appKey)
	return &Sealer{appKey: key, rand: rand.Reader}, nil
}

// Seal encrypts plaintext for accountID and returns a printable string.
func (s *Sealer) Seal(accountID, plaintext string) (string, error) {
	if accountID == "" {
		return "", ErrMissingAccountID
	}
	aead, err := s.aead(accountID)
	if err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(s.rand, nonce); err != nil {
		return "", errors.Join(ErrEncryptionFailed, err)
	}

	// Nonce is prepended to the ciphertext for storage
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), []byte(accountID))
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal for the same accountID.
func (s *Sealer) Open(accountID, sealed string) (string, error) {
	if accountID == "" {
		return "", ErrMissingAccountID
	}
	payload, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrInvalidCiphertext
	}
	raw, err := base64.RawStdEncoding.DecodeString(payload)
	if err != nil {
		return "", errors.Join(ErrInvalidCiphertext, err)
	}

	aead, err := s.aead(accountID)
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}
	nonceSize := aead.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]

	plaintext, err := aead.Open(nil, nonce, ciphertext, []byte(accountID))
	if err != nil {
		return "", errors.Join(ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// IsSealed reports whether v carries the sealed storage prefix.
func IsSealed(v string) bool {
	return strings.HasPrefix(v, sealedPrefix)
}

func (s *Sealer) aead(accountID string) (cipher.AEAD, error) {
	key, err := deriveKey(s.appKey, accountID)
	if err != nil {
		return nil, err
	}
	defer clearBytes(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
