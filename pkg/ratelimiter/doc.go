// Package ratelimiter provides token bucket limiting for guessable inputs such
// as one-time passwords and backup codes.
//
// A six digit code has a million values; without a limit an attacker holding a
// password can simply try them. The Bucket type gives every key (a login
// challenge, an account, a client address) a small burst of attempts that
// refills slowly:
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.DefaultConfig())
//	if err != nil {
//		return err
//	}
//
//	res, err := limiter.Allow(ctx, "challenge:"+id)
//	if err != nil {
//		return err // fail closed
//	}
//	if !res.Allowed() {
//		w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter(time.Now()).Seconds())))
//		return
//	}
//
// MemoryStore serves a single process. RedisStore shares buckets between
// instances and updates them under WATCH.
//
// Denied attempts do not consume tokens, so a client that keeps retrying is
// let through again as soon as the bucket refills.
package ratelimiter
