package twofactor

import "time"

// Config holds the HTTP module settings.
type Config struct {
	// EnrollmentTTL bounds how long an unconfirmed enrollment is kept.
	EnrollmentTTL time.Duration `env:"MFA_ENROLLMENT_TTL" envDefault:"10m"`

	// SweepInterval is how often expired logins and enrollments are dropped.
	SweepInterval time.Duration `env:"MFA_SWEEP_INTERVAL" envDefault:"30s"`
}

// DefaultConfig returns the default module configuration.
func DefaultConfig() Config {
	return Config{
		EnrollmentTTL: 10 * time.Minute,
		SweepInterval: 30 * time.Second,
	}
}
