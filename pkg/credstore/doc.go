// Package credstore provides twofactor.CredentialStore implementations.
//
// MemoryStore suits tests and single process tools. PostgresStore (pgx),
// RedisStore (go-redis) and MongoStore (mongo-driver) persist records in the
// respective backend, each implementing SwapBackupCodes as an atomic
// compare-and-swap on the full hash set. SealedStore wraps any of them and
// encrypts the TOTP secret with pkg/secrets.
//
// The Postgres schema ships as embedded goose migrations:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	if err := credstore.MigratePostgres(ctx, pool, cfg, log); err != nil {
//	    return err
//	}
//	store := credstore.NewPostgresStore(pool)
//
// Get returns ErrNotFound for unknown accounts. Clear deletes the record, so a
// cleared account reads as never enrolled.
package credstore
