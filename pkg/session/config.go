package session

import "time"

// Config holds session lifetimes
type Config struct {
	// PendingLifetime bounds a minted session that was never activated.
	PendingLifetime time.Duration `env:"SESSION_PENDING_LIFETIME" envDefault:"10m"`

	// ActiveLifetime is the lifetime granted on activation.
	ActiveLifetime time.Duration `env:"SESSION_ACTIVE_LIFETIME" envDefault:"720h"`

	// CleanupInterval for expired sessions in the memory store (0 to disable)
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`
}

// DefaultConfig returns default session configuration
func DefaultConfig() Config {
	return Config{
		PendingLifetime: 10 * time.Minute,
		ActiveLifetime:  30 * 24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
	}
}

// NewFromConfig creates a new Manager from the provided Config.
func NewFromConfig(cfg Config, store Store, opts ...Option) *Manager {
	return New(store, append([]Option{WithConfig(cfg)}, opts...)...)
}
