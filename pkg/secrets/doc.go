// Package secrets seals TOTP secrets before they reach a credential store.
//
// A single 32-byte application key is expanded into one AES-256-GCM key per
// account with HKDF-SHA-256 (the account id is the HKDF salt). The account id
// is also bound as GCM additional data, so a sealed value only opens for the
// account it was written for.
//
// Sealed values are printable: a "v1:" prefix followed by unpadded Base64 of
// nonce || ciphertext || tag.
//
// # Usage
//
//	key, err := secrets.ParseKey(os.Getenv("MFA_SECRET_KEY"))
//	if err != nil {
//		// handle error
//	}
//	sealer, _ := secrets.NewSealer(key)
//
//	stored, _ := sealer.Seal(accountID, base32Secret)
//	plain, _ := sealer.Open(accountID, stored)
//
// Generate a key with GenerateEncodedKey (or `go run ./pkg/totp/cmd`).
//
// # Error Handling
//
// ErrInvalidAppKey and ErrKeyNotSet report configuration problems.
// ErrDecryptionFailed covers tampering, a wrong key or a wrong account id.
// ErrInvalidCiphertext means the stored value is not in sealed format.
package secrets
