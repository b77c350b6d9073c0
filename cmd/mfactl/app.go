package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/mfakit/pkg/config"
	"github.com/dmitrymomot/mfakit/pkg/credstore"
	"github.com/dmitrymomot/mfakit/pkg/logger"
	"github.com/dmitrymomot/mfakit/pkg/mongo"
	"github.com/dmitrymomot/mfakit/pkg/pg"
	redisconn "github.com/dmitrymomot/mfakit/pkg/redis"
	"github.com/dmitrymomot/mfakit/pkg/requestid"
	"github.com/dmitrymomot/mfakit/pkg/secrets"
	"github.com/dmitrymomot/mfakit/pkg/session"
	mfa "github.com/dmitrymomot/mfakit/pkg/twofactor"
)

const serviceName = "mfactl"

var errUnknownStore = errors.New("unknown MFA_STORE")

type appConfig struct {
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	Store     string `env:"MFA_STORE" envDefault:"memory"`
	SecretKey string `env:"MFA_SECRET_KEY"`
	DemoUsers string `env:"MFA_DEMO_USERS"`
}

// app is the wired service for one command run.
type app struct {
	cfg      appConfig
	log      *slog.Logger
	svc      *mfa.Service
	sessions *session.Manager
	backend  *backend
}

// backend is the opened credential store plus what the server needs from it.
type backend struct {
	store  mfa.CredentialStore
	redis  goredis.UniversalClient
	checks []func(context.Context) error
	close  []func()
}

func (b *backend) Close() {
	for i := len(b.close) - 1; i >= 0; i-- {
		b.close[i]()
	}
}

func (c *cli) open(ctx context.Context) (*app, error) {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return nil, err
	}
	log := logger.New(
		logger.WithOutput(c.stderr),
		logger.WithEnvironment(cfg.AppEnv, serviceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	b, err := c.openBackend(ctx, cfg.Store, log)
	if err != nil {
		return nil, err
	}
	if cfg.SecretKey != "" {
		key, err := secrets.ParseKey(cfg.SecretKey)
		if err != nil {
			b.Close()
			return nil, err
		}
		sealer, err := secrets.NewSealer(key)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.store = credstore.NewSealedStore(b.store, sealer)
	}

	var sessCfg session.Config
	if err := config.Load(&sessCfg); err != nil {
		b.Close()
		return nil, err
	}
	var sessStore session.Store
	if b.redis != nil {
		sessStore = session.NewRedisStore(b.redis, "")
	} else {
		mem := session.NewMemoryStore(sessCfg.CleanupInterval)
		b.close = append(b.close, func() { _ = mem.Close() })
		sessStore = mem
	}
	sessOpts := []session.Option{session.WithLogger(log)}
	if c.clock != nil {
		sessOpts = append(sessOpts, session.WithClock(c.clock.Now))
	}
	sessions := session.NewFromConfig(sessCfg, sessStore, sessOpts...)

	mfaCfg, err := mfa.LoadConfig()
	if err != nil {
		b.Close()
		return nil, err
	}
	opts := []mfa.Option{mfa.WithLogger(log)}
	if c.random != nil {
		opts = append(opts, mfa.WithRandom(c.random))
	}
	if c.clock != nil {
		opts = append(opts, mfa.WithClock(c.clock))
	}
	svc, err := mfa.NewFromConfig(mfaCfg, b.store, sessions, opts...)
	if err != nil {
		b.Close()
		return nil, err
	}

	return &app{cfg: cfg, log: log, svc: svc, sessions: sessions, backend: b}, nil
}

func (c *cli) openBackend(ctx context.Context, kind string, log *slog.Logger) (*backend, error) {
	if c.store != nil {
		return &backend{store: c.store}, nil
	}

	switch kind {
	case "", "memory":
		log.WarnContext(ctx, "using in-memory credential store; records are lost on exit")
		return &backend{store: credstore.NewMemoryStore()}, nil

	case "postgres":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := credstore.MigratePostgres(ctx, pool, cfg, log); err != nil {
			pool.Close()
			return nil, err
		}
		return &backend{
			store:  credstore.NewPostgresStore(pool),
			checks: []func(context.Context) error{pg.Healthcheck(pool)},
			close:  []func(){pool.Close},
		}, nil

	case "redis":
		var cfg redisconn.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redisconn.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:  credstore.NewRedisStore(client, cfg.KeyPrefix+"credentials:"),
			redis:  client,
			checks: []func(context.Context) error{redisconn.Healthcheck(client)},
			close:  []func(){func() { _ = client.Close() }},
		}, nil

	case "mongo":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := mongo.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:  credstore.NewMongoStoreFromDatabase(client.Database(cfg.Database)),
			checks: []func(context.Context) error{mongo.Healthcheck(client)},
			close:  []func(){func() { _ = client.Disconnect(context.Background()) }},
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownStore, kind)
	}
}
