// Package totp implements the pure computation behind TOTP two-factor
// authentication: RFC 6238 token generation and validation, secret
// provisioning for authenticator apps, and single-use backup codes.
//
// Nothing in this package performs I/O. Randomness is taken from an injected
// io.Reader (crypto/rand.Reader when nil) and time is passed in explicitly, so
// every operation is deterministic under test and safe to call from any
// goroutine.
//
// # Architecture
//
// The package is divided into three layers.
//
//   • engine   – otp.go computes HOTP values (GenerateHOTP), 6-digit tokens
//     (Compute) and validates a candidate against a window of time steps
//     (Validate) with constant-time comparisons.
//
//   • secrets  – secret.go and uri.go generate 160-bit secrets, encode them as
//     unpadded Base32 and render the otpauth:// provisioning URI consumed by
//     Google Authenticator, 1Password and compatible apps.
//
//   • recovery – recovery.go generates XXXX-XXXX backup codes from an
//     unambiguous alphabet, hashes them with SHA-256 for storage and consumes a
//     presented code against the stored hash set.
//
// # Usage
//
//	secret, err := totp.GenerateSecret(nil)
//	if err != nil {
//	    return err // errors.Is(err, totp.ErrEntropyUnavailable)
//	}
//
//	uri, err := totp.BuildURI(secret, "Acme", "alice@example.com")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(uri.String())
//	fmt.Println(totp.FormatForDisplay(secret.Base32()))
//
//	ok := totp.Validate(secret, "123456", time.Now(), totp.DefaultWindow)
//
//	codes, _ := totp.GenerateBackupCodes(nil, totp.DefaultBackupCodeCount)
//	hashes := make([]string, len(codes))
//	for i, c := range codes {
//	    hashes[i] = totp.HashBackupCode(c)
//	}
//	matched, remaining := totp.VerifyAndConsumeBackupCode(codes[0], hashes)
//
// # Error Handling
//
// Malformed tokens and backup codes are never errors: Validate and
// VerifyAndConsumeBackupCode simply report no match. Errors are reserved for
// a failing random source (ErrEntropyUnavailable) and invalid provisioning
// input (ErrMissingIssuer, ErrInvalidSecret, ...). Compare with errors.Is.
//
// # See Also
//
//   • RFC 4226 – HMAC-Based One-Time Password (HOTP) Algorithm
//   • RFC 6238 – Time-Based One-Time Password (TOTP) Algorithm
package totp
