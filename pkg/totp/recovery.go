package totp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

const (
	// BackupCodeAlphabet excludes the visually ambiguous 0, 1, I, L and O.
	BackupCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	// DefaultBackupCodeCount is the batch size handed to a user on enrollment.
	DefaultBackupCodeCount = 8

	backupCodeLength = 8
	backupCodeGroup  = 4
	// Largest multiple of the alphabet size that fits in a byte; values at or
	// above it are rejected so every symbol is equally likely.
	backupCodeRejectAt = 256 - 256%len(BackupCodeAlphabet)
)

// GenerateBackupCodes draws count single-use codes formatted XXXX-XXXX.
// Every code reads fresh bytes from r (crypto/rand when nil). A code that
// collides with one already in the batch is drawn again.
func GenerateBackupCodes(r io.Reader, count int) ([]string, error) {
	if count < 1 {
		return nil, ErrInvalidRecoveryCodeCount
	}
	if r == nil {
		r = rand.Reader
	}

	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for len(codes) < count {
		code, err := generateBackupCode(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes, nil
}

func generateBackupCode(r io.Reader) (string, error) {
	var (
		raw [backupCodeLength]byte
		buf [1]byte
	)
	for i := 0; i < backupCodeLength; {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", errors.Join(ErrEntropyUnavailable, err)
		}
		if int(buf[0]) >= backupCodeRejectAt {
			continue
		}
		raw[i] = BackupCodeAlphabet[int(buf[0])%len(BackupCodeAlphabet)]
		i++
	}
	return string(raw[:backupCodeGroup]) + "-" + string(raw[backupCodeGroup:]), nil
}

// NormalizeBackupCode strips dashes and whitespace and uppercases the rest,
// so "abcd-efgh", "ABCD EFGH" and "ABCDEFGH" all compare equal.
func NormalizeBackupCode(code string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, code)
}

// IsBackupCodeFormat reports whether code, once normalized, has the shape of
// a generated backup code.
func IsBackupCodeFormat(code string) bool {
	n := NormalizeBackupCode(code)
	if len(n) != backupCodeLength {
		return false
	}
	for i := 0; i < len(n); i++ {
		if strings.IndexByte(BackupCodeAlphabet, n[i]) < 0 {
			return false
		}
	}
	return true
}

// HashBackupCode returns the hex SHA-256 digest of the normalized code.
// Only this digest is ever stored.
func HashBackupCode(code string) string {
	hash := sha256.Sum256([]byte(NormalizeBackupCode(code)))
	return hex.EncodeToString(hash[:])
}

// VerifyAndConsumeBackupCode checks code against stored hashes. On a match it
// returns true and a new slice without the matched hash; otherwise it returns
// false and stored unchanged. stored itself is never modified and the caller
// is responsible for persisting the result.
func VerifyAndConsumeBackupCode(code string, stored []string) (bool, []string) {
	if !IsBackupCodeFormat(code) || len(stored) == 0 {
		return false, stored
	}

	computed := []byte(HashBackupCode(code))
	match := -1
	// Scan every hash so timing does not reveal the match position.
	for i, h := range stored {
		if subtle.ConstantTimeCompare(computed, []byte(h)) == 1 && match < 0 {
			match = i
		}
	}
	if match < 0 {
		return false, stored
	}

	remaining := make([]string, 0, len(stored)-1)
	remaining = append(remaining, stored[:match]...)
	remaining = append(remaining, stored[match+1:]...)
	return true, remaining
}
