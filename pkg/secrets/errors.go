package secrets

import "errors"

var (
	// Key errors
	ErrKeyNotSet           = errors.New("secret sealing key not set")
	ErrInvalidAppKey       = errors.New("invalid app key: must be 32 bytes")
	ErrKeyGenerationFailed = errors.New("key generation failed")
	ErrKeyDerivationFailed = errors.New("key derivation failed")

	// Sealing errors
	ErrMissingAccountID  = errors.New("account id is required")
	ErrEncryptionFailed  = errors.New("encryption failed")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")
)
