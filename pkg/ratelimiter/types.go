package ratelimiter

import "time"

// Result contains the outcome of a rate limit check.
type Result struct {
	Limit     int       // bucket capacity
	Remaining int       // tokens left; negative when the attempt was denied
	ResetAt   time.Time // next refill
}

// Allowed reports whether the attempt fits in the bucket.
func (r *Result) Allowed() bool {
	return r.Remaining >= 0
}

// RetryAfter returns how long to wait, as seen at now, before the next attempt.
// It is zero for allowed attempts.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed() {
		return 0
	}
	return max(r.ResetAt.Sub(now), 0)
}

// Config defines the token bucket. The defaults allow a burst of five guesses
// and one more every minute.
type Config struct {
	Capacity       int           `env:"MFA_ATTEMPTS_CAPACITY" envDefault:"5"`
	RefillRate     int           `env:"MFA_ATTEMPTS_REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"MFA_ATTEMPTS_REFILL_INTERVAL" envDefault:"1m"`
}

// DefaultConfig mirrors the env defaults.
func DefaultConfig() Config {
	return Config{Capacity: 5, RefillRate: 1, RefillInterval: time.Minute}
}

// refill returns the token count after the intervals elapsed since last, and
// the new refill mark.
func (c Config) refill(tokens int, last, now time.Time) (int, time.Time) {
	elapsed := now.Sub(last)
	if elapsed < c.RefillInterval {
		return tokens, last
	}
	// Capped so a long idle period cannot overflow.
	maxIntervals := int64(c.Capacity/c.RefillRate + 1)
	intervals := int(min(int64(elapsed/c.RefillInterval), maxIntervals))
	return min(tokens+intervals*c.RefillRate, c.Capacity), now
}
