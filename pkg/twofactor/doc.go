// Package twofactor adds TOTP based two-factor authentication to a password
// login.
//
// A Service ties three things together: a CredentialStore holding one Record
// per account, a SessionManager owning the credentials minted at password
// verification, and the pkg/totp primitives.
//
// Enrollment
//
//	e, err := svc.BeginEnrollment(ctx, accountID, email)
//	// show e.URI() as a QR code (e.QRCode()) or e.ManualEntryKey(),
//	// and e.BackupCodes() once
//	err = e.Confirm(ctx, tokenFromApp)
//
// Nothing is stored until Confirm accepts a token. The record then holds the
// Base32 secret and SHA-256 hashes of the backup codes.
//
// Login
//
//	gate := svc.NewGate()
//	state, err := gate.OnPasswordVerified(ctx, credential, accountID)
//	if state == twofactor.Pending2FA {
//	    err = gate.Verify(ctx, codeFromUser)
//	}
//
// The credential is activated through the SessionManager only when the account
// has no second factor or Verify accepted a TOTP token or backup code. A
// pending gate expires after the configured TTL; Cancel and expiry both revoke
// the credential.
//
// Errors are sentinels from this package, joined with the underlying cause.
// Store failures always surface as ErrStorage and never as a successful login.
package twofactor
