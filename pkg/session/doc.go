// Package session manages the credentials handed out at login.
//
// A Manager mints a session token as soon as the password is verified. The
// token is real and stored, but inactive: Authenticated and the RequireAuth
// middleware refuse it until Activate binds it to an account. Revoke deletes
// it. This split lets a two-factor gate hold a valid credential without
// exposing it to the application until the second factor is confirmed.
//
//	mgr := session.New(session.NewRedisStore(client, ""))
//	s, _ := mgr.Mint(ctx)
//	// ... second factor verified ...
//	_ = mgr.Activate(ctx, s.Token, accountID)
//
// Stores: MemoryStore (with an optional expiry sweep) and RedisStore, whose
// keys expire with the session. HeaderTransport reads and writes bearer tokens.
package session
