package session

import (
	"time"

	"github.com/google/uuid"
)

// Session is a credential issued after password verification. It exists in the
// store from the moment it is minted but grants access only once activated.
type Session struct {
	ID          uuid.UUID `json:"id"`
	Token       string    `json:"token"`
	AccountID   string    `json:"account_id,omitempty"`
	Active      bool      `json:"active"`
	ExpiresAt   time.Time `json:"expires_at"`
	CreatedAt   time.Time `json:"created_at"`
	ActivatedAt time.Time `json:"activated_at,omitzero"`
}

func newSession(token string, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        uuid.New(),
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}

// IsExpired reports whether the session is past its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return s != nil && !now.Before(s.ExpiresAt)
}

// IsActive reports whether the session grants access at now.
func (s *Session) IsActive(now time.Time) bool {
	return s != nil && s.Active && s.AccountID != "" && !s.IsExpired(now)
}

func (s *Session) clone() *Session {
	c := *s
	return &c
}
