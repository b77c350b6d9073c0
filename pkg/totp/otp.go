package totp

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

const (
	DefaultDigits    = 6      // Standard 6-digit TOTP codes
	DefaultPeriod    = 30     // 30-second validity window (RFC 6238 standard)
	DefaultAlgorithm = "SHA1" // HMAC-SHA1 algorithm (RFC 6238 standard)
	DefaultWindow    = 1      // Accept one period of clock skew in each direction
)

// Counter returns the RFC 6238 time step for t: floor(unix_seconds / period).
// Times before the Unix epoch map to step zero.
func Counter(t time.Time) uint64 {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec) / DefaultPeriod
}

// GenerateHOTP implements RFC 4226 HMAC-based One-Time Password algorithm.
// The algorithm converts a counter value into a numeric code using HMAC-SHA1.
func GenerateHOTP(key []byte, counter uint64, digits int) int {
	// Counter is hashed as an 8-byte big-endian value (RFC 4226 section 5.2)
	var counterBytes [8]byte
	binary.BigEndian.PutUint64(counterBytes[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(counterBytes[:])
	hash := mac.Sum(nil)

	// Dynamic truncation (RFC 4226): use last 4 bits as offset into hash
	offset := hash[len(hash)-1] & 0x0f
	// Extract 31-bit value (clear MSB to ensure positive number)
	code := (int(hash[offset]&0x7f) << 24) |
		(int(hash[offset+1]) << 16) |
		(int(hash[offset+2]) << 8) |
		int(hash[offset+3])

	return code % int(math.Pow10(digits))
}

// Compute returns the zero-padded 6-digit token for the given secret and counter.
// It is a pure function: the same inputs always yield the same token.
func Compute(secret []byte, counter uint64) string {
	return fmt.Sprintf("%0*d", DefaultDigits, GenerateHOTP(secret, counter, DefaultDigits))
}

// GenerateTOTPWithTime returns the token for the 30-second window containing t.
func GenerateTOTPWithTime(secret []byte, t time.Time) string {
	return Compute(secret, Counter(t))
}

// Validate reports whether candidate matches the token for any counter in
// [Counter(now)-window, Counter(now)+window]. Malformed candidates are rejected
// before any comparison. A negative window is treated as zero.
func Validate(secret []byte, candidate string, now time.Time, window int) bool {
	if len(secret) == 0 || !isNumericToken(candidate) {
		return false
	}
	if window < 0 {
		window = 0
	}

	counter := Counter(now)
	want := []byte(candidate)
	for k := -window; k <= window; k++ {
		c, ok := shiftCounter(counter, k)
		if !ok {
			continue
		}
		// Token strings have fixed length, so the comparison never exits on a mismatched prefix.
		if subtle.ConstantTimeCompare([]byte(Compute(secret, c)), want) == 1 {
			return true
		}
	}
	return false
}

// isNumericToken checks for exactly DefaultDigits ASCII digits.
func isNumericToken(s string) bool {
	if len(s) != DefaultDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// shiftCounter applies a signed offset without wrapping around zero.
func shiftCounter(counter uint64, k int) (uint64, bool) {
	if k < 0 {
		d := uint64(-k)
		if d > counter {
			return 0, false
		}
		return counter - d, true
	}
	return counter + uint64(k), true
}
