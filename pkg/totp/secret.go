package totp

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"io"
	"strings"
	"unicode"
)

// SecretSize is the number of random bytes in a generated secret (160 bits, RFC 4226 recommendation).
const SecretSize = 20

// entropyAttempts bounds how many times a failing random source is retried.
const entropyAttempts = 3

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Secret is the raw shared key. It is only ever serialized through EncodeSecret.
type Secret []byte

// Base32 returns the unpadded RFC 4648 encoding of the secret.
func (s Secret) Base32() string {
	return EncodeSecret(s)
}

// Wipe zeroes the secret bytes in place.
func (s Secret) Wipe() {
	for i := range s {
		s[i] = 0
	}
}

// GenerateSecret draws SecretSize bytes from r. A nil reader means crypto/rand.
// Failed or degenerate reads are retried a bounded number of times and then
// reported as ErrEntropyUnavailable; no weaker source is ever substituted.
func GenerateSecret(r io.Reader) (Secret, error) {
	if r == nil {
		r = rand.Reader
	}

	var lastErr error
	for range entropyAttempts {
		secret := make(Secret, SecretSize)
		if _, err := io.ReadFull(r, secret); err != nil {
			lastErr = err
			continue
		}
		if isZero(secret) {
			lastErr = errors.New("random source returned all-zero bytes")
			continue
		}
		return secret, nil
	}
	return nil, errors.Join(ErrEntropyUnavailable, lastErr)
}

// EncodeSecret returns the unpadded Base32 form used for storage and QR URIs.
func EncodeSecret(secret Secret) string {
	return b32.EncodeToString(secret)
}

// DecodeSecret parses a Base32 secret as typed or stored. Whitespace (including
// the grouping added by FormatForDisplay), case and trailing padding are ignored.
// Length is not enforced here so secrets provisioned elsewhere still verify.
func DecodeSecret(s string) (Secret, error) {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, s)
	s = strings.TrimRight(s, "=")
	if s == "" {
		return nil, ErrMissingSecret
	}

	key, err := b32.DecodeString(s)
	if err != nil {
		return nil, errors.Join(ErrInvalidSecret, err)
	}
	return key, nil
}

// FormatForDisplay splits a Base32 secret into space separated groups of four
// characters for manual entry.
func FormatForDisplay(base32Secret string) string {
	var b strings.Builder
	b.Grow(len(base32Secret) + len(base32Secret)/4)
	for i, r := range base32Secret {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isZero(b []byte) bool {
	var acc byte
	for _, v := range b {
		acc |= v
	}
	return acc == 0
}
