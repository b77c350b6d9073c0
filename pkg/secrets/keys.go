package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	// KeySize is the required size of the application key
	KeySize = 32 // 256 bits for AES-256

	// hkdfInfo provides domain separation for derived per-account keys
	hkdfInfo = "mfakit-totp-secret-v1"
)

// GenerateKey creates a new random 32-byte application key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, errors.Join(ErrKeyGenerationFailed, err)
	}
	return key, nil
}

// GenerateEncodedKey returns a fresh application key as standard Base64,
// the format expected by ParseKey and the MFA_SECRET_KEY variable.
func GenerateEncodedKey() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// ParseKey decodes a Base64 application key and checks its length.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrKeyNotSet
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Join(ErrInvalidAppKey, err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidAppKey
	}
	return key, nil
}

// deriveKey creates the per-account key from the application key using HKDF,
// with the account id as salt. The caller clears the returned key after use.
func deriveKey(appKey []byte, accountID string) ([]byte, error) {
	hkdfReader := hkdf.New(sha256.New, appKey, []byte(accountID), []byte(hkdfInfo))

	derivedKey := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdfReader, derivedKey); err != nil {
		return nil, errors.Join(ErrKeyDerivationFailed, err)
	}
	return derivedKey, nil
}

// clearBytes zeroes key material once it is no longer needed.
func clearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
