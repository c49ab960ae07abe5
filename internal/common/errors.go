// Package common defines shared constants and sentinel errors used across
// client and server layers of sshbox. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Crypto errors.
	//
	// ErrInvalidCredential means an authenticated decryption of the wrapped
	// DEK failed: wrong master password or a corrupted bundle. The two cases
	// are deliberately indistinguishable.
	ErrInvalidCredential = errors.New("invalid master password")
	// ErrDecryptionFailed means a secret envelope failed authentication under
	// a key that was already verified live. Tampering or the wrong key.
	ErrDecryptionFailed = errors.New("decryption failed")
	// ErrInvalidBundle means a wrapped-DEK bundle is partially populated.
	// A bundle is either fully present (salt, iv, ct) or fully empty.
	ErrInvalidBundle = errors.New("invalid key bundle")

	// Vault state errors.
	ErrVaultLocked       = errors.New("vault is locked")
	ErrUnauthenticated   = errors.New("not authenticated")
	ErrAlreadyConfigured = errors.New("master password already configured")
	ErrNoMasterPassword  = errors.New("master password not configured")

	// Repository-level errors.
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
)
