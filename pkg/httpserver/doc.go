// Package httpserver runs the two-factor HTTP endpoints with sane timeouts and
// graceful shutdown on SIGINT and SIGTERM.
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	r := chi.NewRouter()
//	r.Get("/healthz", httpserver.HealthCheckHandler(log))
//	r.Get("/readyz", httpserver.HealthCheckHandler(log, pingStore))
//	if err := srv.Run(ctx, r); err != nil {
//		return err
//	}
//
// Run wraps listen errors with ErrStart; Shutdown wraps shutdown errors with
// ErrShutdown.
package httpserver
