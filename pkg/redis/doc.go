// Package redis connects to Redis with go-redis/v9 for the credential and
// session stores.
//
//	var cfg redis.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	store := credstore.NewRedisStore(client, cfg.KeyPrefix+"credentials:")
//
// Healthcheck returns a PING probe. Failures are joined with the package's
// sentinel errors, so errors.Is works on them.
package redis
