package main

import (
	"context"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/mfakit/modules/twofactor"
	"github.com/dmitrymomot/mfakit/pkg/config"
	"github.com/dmitrymomot/mfakit/pkg/httpserver"
	"github.com/dmitrymomot/mfakit/pkg/ratelimiter"
	"github.com/dmitrymomot/mfakit/pkg/requestid"
)

func (c *cli) serve(ctx context.Context) error {
	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer a.backend.Close()

	users, err := parseUsers(a.cfg.DemoUsers)
	if err != nil {
		return err
	}

	var (
		httpCfg  httpserver.Config
		modCfg   twofactor.Config
		limitCfg ratelimiter.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&httpCfg) },
		func() error { return config.Load(&modCfg) },
		func() error { return config.Load(&limitCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}

	limiter, err := c.attemptLimiter(a, limitCfg)
	if err != nil {
		return err
	}

	registry := twofactor.NewRegistry(
		twofactor.WithEnrollmentTTL(modCfg.EnrollmentTTL),
		twofactor.WithRegistryLogger(a.log),
	)
	go registry.Run(ctx, modCfg.SweepInterval)

	h := twofactor.NewHandler(a.svc, a.sessions, users,
		twofactor.WithRegistry(registry),
		twofactor.WithAttemptLimiter(limiter),
		twofactor.WithLogger(a.log),
	)

	r := chi.NewRouter()
	r.Use(requestid.Middleware)
	r.Get("/healthz", httpserver.HealthCheckHandler(a.log))
	r.Get("/readyz", httpserver.HealthCheckHandler(a.log, a.backend.checks...))
	r.Mount("/", twofactor.Router(twofactor.RouterOptions{TwoFactor: h}))

	return httpserver.NewFromConfig(httpCfg, httpserver.WithLogger(a.log)).Run(ctx, r)
}

// attemptLimiter shares buckets through Redis when the credentials live there.
func (c *cli) attemptLimiter(a *app, cfg ratelimiter.Config) (*ratelimiter.Bucket, error) {
	var store ratelimiter.Store
	if a.backend.redis != nil {
		store = ratelimiter.NewRedisStore(a.backend.redis, "")
	} else {
		mem := ratelimiter.NewMemoryStore()
		a.backend.close = append(a.backend.close, mem.Close)
		store = mem
	}
	return ratelimiter.NewBucket(store, cfg)
}
