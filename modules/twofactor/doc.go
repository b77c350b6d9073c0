// Package twofactor exposes two-factor enrollment and the second login step
// over HTTP with chi.
//
// Routes, relative to the mount point:
//
//	POST   /login            password check; 200 with a session token, or 202 with a challenge id
//	POST   /login/verify     TOTP token or backup code for a challenge
//	POST   /login/cancel     abandon a challenge and revoke its credential
//	GET    /status           two-factor status of the signed-in account
//	POST   /enroll           start enrollment (uri, manual key, backup codes, QR)
//	POST   /enroll/confirm   confirm with a token from the authenticator app
//	DELETE /enroll           abandon the enrollment in progress
//	POST   /backup-codes     replace all backup codes (requires a TOTP token)
//	POST   /disable          turn two-factor off (requires a TOTP token)
//
// The account routes use session.Manager.RequireAuth unless an AccountResolver
// is supplied. Tokens are returned through a session.Transport, the
// Authorization header by default. Pending logins and enrollments are held in
// a Registry; run Registry.Run so expired challenges get their credentials
// revoked even when the client never comes back.
package twofactor
