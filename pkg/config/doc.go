// Package config loads typed configuration from environment variables.
//
// It wraps github.com/joho/godotenv and github.com/caarlos0/env/v11. Load
// parses the process environment into a struct annotated with `env` tags and
// caches the result per type, so every service constructor can call it
// without re-parsing:
//
//	type Config struct {
//	    Issuer     string        `env:"MFA_ISSUER,required"`
//	    PendingTTL time.Duration `env:"MFA_PENDING_TTL" envDefault:"5m"`
//	}
//
//	var cfg Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// A ./.env file is read once on first use if present. LoadEnv reads explicit
// files, with later files taking precedence. ResetCache and ForceReloadConfig
// exist for tests and for tools that change the environment at runtime.
//
// Parsing failures are joined with ErrParsingConfig.
package config
