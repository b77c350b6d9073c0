// Package pg bootstraps PostgreSQL access with pgx/v5: a retrying Connect,
// goose migrations applied from an embedded filesystem, and a health probe.
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, credstore.PostgresMigrations, "migrations", cfg, slog.Default()); err != nil {
//	    return err
//	}
//
// IsNotFoundError maps pgx.ErrNoRows for store implementations.
package pg
