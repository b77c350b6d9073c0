package twofactor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/mfakit/pkg/logger"
	mfa "github.com/dmitrymomot/mfakit/pkg/twofactor"
)

// challenge is a login waiting for its second factor.
type challenge struct {
	gate       *mfa.Gate
	credential string
}

type pendingEnrollment struct {
	enrollment *mfa.Enrollment
	expiresAt  time.Time
}

// Registry keeps the in-flight login gates and enrollments of one process.
// Gates are keyed by an opaque challenge id handed to the client, enrollments
// by account id.
type Registry struct {
	mu          sync.Mutex
	challenges  map[string]challenge
	enrollments map[string]pendingEnrollment

	enrollmentTTL time.Duration
	now           func() time.Time
	logger        *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEnrollmentTTL bounds how long an unconfirmed enrollment is kept.
func WithEnrollmentTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.enrollmentTTL = ttl
		}
	}
}

// WithRegistryClock overrides the time source used for enrollment expiry.
func WithRegistryClock(now func() time.Time) RegistryOption {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// WithRegistryLogger sets the logger used by the sweeper.
func WithRegistryLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		challenges:    make(map[string]challenge),
		enrollments:   make(map[string]pendingEnrollment),
		enrollmentTTL: DefaultConfig().EnrollmentTTL,
		now:           time.Now,
		logger:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddChallenge stores a pending gate and returns its challenge id.
func (r *Registry) AddChallenge(gate *mfa.Gate, credential string) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[id] = challenge{gate: gate, credential: credential}
	return id
}

func (r *Registry) challenge(id string) (challenge, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.challenges[id]
	return c, ok
}

// RemoveChallenge forgets a challenge without touching its gate.
func (r *Registry) RemoveChallenge(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, id)
}

// PutEnrollment stores an enrollment for its account, abandoning any earlier
// one that was never confirmed.
func (r *Registry) PutEnrollment(e *mfa.Enrollment) {
	r.mu.Lock()
	prev, ok := r.enrollments[e.AccountID()]
	r.enrollments[e.AccountID()] = pendingEnrollment{
		enrollment: e,
		expiresAt:  r.now().Add(r.enrollmentTTL),
	}
	r.mu.Unlock()

	if ok && prev.enrollment != e {
		prev.enrollment.Abandon()
	}
}

// Enrollment returns the unexpired enrollment of the account.
func (r *Registry) Enrollment(accountID string) (*mfa.Enrollment, bool) {
	r.mu.Lock()
	p, ok := r.enrollments[accountID]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	if r.now().Before(p.expiresAt) {
		r.mu.Unlock()
		return p.enrollment, true
	}
	delete(r.enrollments, accountID)
	r.mu.Unlock()

	p.enrollment.Abandon()
	return nil, false
}

// TakeEnrollment removes and returns the enrollment of the account.
func (r *Registry) TakeEnrollment(accountID string) (*mfa.Enrollment, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.enrollments[accountID]
	if ok {
		delete(r.enrollments, accountID)
	}
	return p.enrollment, ok
}

// Len returns the number of tracked challenges and enrollments.
func (r *Registry) Len() (challenges, enrollments int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.challenges), len(r.enrollments)
}

// Sweep cancels expired logins, which revokes their credentials, and drops
// finished gates and stale enrollments. It returns how many entries it removed.
// Gates are inspected without holding the registry lock, since a gate stays
// locked for the whole of a Verify call.
func (r *Registry) Sweep(ctx context.Context) int {
	r.mu.Lock()
	snapshot := make(map[string]challenge, len(r.challenges))
	for id, c := range r.challenges {
		snapshot[id] = c
	}
	r.mu.Unlock()

	finished := make(map[string]bool)
	for id, c := range snapshot {
		switch {
		case c.gate.State() != mfa.Pending2FA:
			finished[id] = false
		case c.gate.Expired():
			finished[id] = true
		}
	}

	var (
		expired []challenge
		stale   []*mfa.Enrollment
		removed int
	)
	r.mu.Lock()
	for id, cancel := range finished {
		c, ok := r.challenges[id]
		if !ok || c.gate != snapshot[id].gate {
			continue
		}
		delete(r.challenges, id)
		removed++
		if cancel {
			expired = append(expired, c)
		}
	}
	now := r.now()
	for accountID, p := range r.enrollments {
		if !now.Before(p.expiresAt) {
			delete(r.enrollments, accountID)
			stale = append(stale, p.enrollment)
			removed++
		}
	}
	r.mu.Unlock()

	for _, c := range expired {
		if err := c.gate.Cancel(ctx); err != nil {
			r.logger.ErrorContext(ctx, "failed to cancel expired login",
				logger.AccountID(c.gate.AccountID()), logger.Error(err))
		}
	}
	for _, e := range stale {
		e.Abandon()
	}
	if removed > 0 {
		r.logger.DebugContext(ctx, "registry swept", slog.Int("removed", removed))
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultConfig().SweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}
