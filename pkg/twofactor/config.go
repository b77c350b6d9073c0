package twofactor

import (
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/mfakit/pkg/config"
)

// DefaultPendingTTL bounds how long a login may wait for its second factor.
const DefaultPendingTTL = 5 * time.Minute

// Config holds the environment driven settings of the service.
type Config struct {
	Issuer          string        `env:"MFA_ISSUER,required,notEmpty"`
	BackupCodeCount int           `env:"MFA_BACKUP_CODE_COUNT" envDefault:"8"`
	SkewWindow      int           `env:"MFA_SKEW_WINDOW" envDefault:"1"`
	PendingTTL      time.Duration `env:"MFA_PENDING_TTL" envDefault:"5m"`
}

// LoadConfig reads Config from the environment (and ./.env when present).
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Option configures a Service.
type Option func(*Service)

// WithIssuer sets the issuer shown by authenticator apps.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		s.issuer = issuer
	}
}

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRandom overrides the random source used for secrets and backup codes.
// Tests pass deterministic readers; production code should not set it.
func WithRandom(r io.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.random = r
		}
	}
}

// WithBackupCodeCount sets how many backup codes are issued per enrollment.
func WithBackupCodeCount(n int) Option {
	return func(s *Service) {
		s.backupCodeCount = n
	}
}

// WithWindow sets the accepted clock skew in 30 second steps on each side.
func WithWindow(steps int) Option {
	return func(s *Service) {
		s.window = steps
	}
}

// WithPendingTTL bounds the lifetime of a login waiting for its second factor.
func WithPendingTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.pendingTTL = ttl
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithQRRenderer replaces the default PNG renderer.
func WithQRRenderer(r QRRenderer) Option {
	return func(s *Service) {
		if r != nil {
			s.qr = r
		}
	}
}

// NewFromConfig builds a Service from cfg. Options given explicitly take
// precedence over values from cfg.
func NewFromConfig(cfg Config, store CredentialStore, sessions SessionManager, opts ...Option) (*Service, error) {
	base := []Option{
		WithIssuer(cfg.Issuer),
		WithBackupCodeCount(cfg.BackupCodeCount),
		WithWindow(cfg.SkewWindow),
		WithPendingTTL(cfg.PendingTTL),
	}
	return NewService(store, sessions, append(base, opts...)...)
}
