// Package crypt implements the envelope-encryption engine of the vault:
// password key derivation, wrapping and unwrapping of the per-account Data
// Encryption Key (DEK), and authenticated encryption of individual secrets.
//
// All functions are pure apart from consuming randomness. The server never
// calls into this package with a master password; only clients do.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"

	"github.com/ssh-box/sshbox/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// SaltSize is the KDF salt length in bytes.
	SaltSize = 16
	// NonceSize is the AES-GCM nonce length. 96 bits is the mode's
	// standard nonce size; anything longer gets hashed down internally.
	NonceSize = 12
	// KeySize is the DEK and derived-key length (AES-256).
	KeySize = 32
)

// argon2id work factor. Changing these invalidates every stored bundle,
// so they are fixed for the lifetime of the data format.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// Bundle is a wrapped-DEK bundle: the DEK encrypted under a key derived
// from the master password and Salt. A bundle is either fully populated or
// fully empty; partial bundles are rejected. The GCM authentication tag is
// part of CT and is never stored separately.
type Bundle struct {
	Salt []byte `json:"salt"`
	IV   []byte `json:"iv"`
	CT   []byte `json:"ct"`
}

// Empty reports whether the bundle has no material at all, meaning the
// account has not configured a master password yet.
func (b *Bundle) Empty() bool {
	return len(b.Salt) == 0 && len(b.IV) == 0 && len(b.CT) == 0
}

// Validate returns common.ErrInvalidBundle unless the bundle is fully
// populated.
func (b *Bundle) Validate() error {
	if len(b.Salt) == 0 || len(b.IV) == 0 || len(b.CT) == 0 {
		return common.ErrInvalidBundle
	}
	return nil
}

// Envelope is one encrypted secret value: a fresh nonce and the ciphertext
// with the authentication tag appended. Unlike Bundle it carries no salt;
// the encryption key is the DEK, not a password.
type Envelope struct {
	IV []byte `json:"iv"`
	CT []byte `json:"ct"`
}

// DeriveKey stretches a master password into a 256-bit key using argon2id
// with the fixed work factor above. Deterministic for a given
// (password, salt) pair.
func DeriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, KeySize)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// WrapDEK encrypts a DEK under a key derived from the master password.
// A fresh salt and nonce are generated on every call, so two wraps of the
// same DEK never produce the same bundle. If dek is nil a new random
// 256-bit DEK is generated (first-time setup); the caller never sees it
// except through the returned bundle.
func WrapDEK(masterPassword, dek []byte) (*Bundle, error) {
	salt := common.GenerateRandByteArray(SaltSize)
	nonce := common.GenerateRandByteArray(NonceSize)

	if dek == nil {
		dek = common.GenerateRandByteArray(KeySize)
		defer common.WipeByteArray(dek)
	}

	masterKey := DeriveKey(masterPassword, salt)
	defer common.WipeByteArray(masterKey)

	aead, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	return &Bundle{
		Salt: salt,
		IV:   nonce,
		CT:   aead.Seal(nil, nonce, dek, nil),
	}, nil
}

// UnwrapDEK recovers the raw DEK from a bundle. A failed authentication tag
// is reported as common.ErrInvalidCredential: this is the only password
// verification mechanism the system has, and a wrong password is
// indistinguishable from corrupted bundle data on purpose.
//
// The caller owns the returned key and must wipe it when done.
func UnwrapDEK(b *Bundle, masterPassword []byte) ([]byte, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	masterKey := DeriveKey(masterPassword, b.Salt)
	defer common.WipeByteArray(masterKey)

	aead, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	dek, err := aead.Open(nil, b.IV, b.CT, nil)
	if err != nil {
		return nil, common.ErrInvalidCredential
	}

	return dek, nil
}

// EncryptSecret encrypts one secret plaintext under the live DEK with a
// fresh nonce.
func EncryptSecret(key, plaintext []byte) (*Envelope, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(NonceSize)

	return &Envelope{
		IV: nonce,
		CT: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// DecryptSecret decrypts one envelope under the live DEK. Tag failure is
// common.ErrDecryptionFailed, distinct from ErrInvalidCredential because
// the key in hand was already verified by a successful unwrap.
func DecryptSecret(key []byte, e *Envelope) ([]byte, error) {
	if len(e.IV) == 0 || len(e.CT) == 0 {
		return nil, common.ErrDecryptionFailed
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, e.IV, e.CT, nil)
	if err != nil {
		return nil, common.ErrDecryptionFailed
	}

	return plaintext, nil
}

// RotateMasterPassword unwraps the DEK with the old password and re-wraps
// the same raw DEK with the new one. The DEK itself is never regenerated
// here; doing so would orphan every envelope encrypted under it.
func RotateMasterPassword(b *Bundle, oldPassword, newPassword []byte) (*Bundle, error) {
	dek, err := UnwrapDEK(b, oldPassword)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(dek)

	return WrapDEK(newPassword, dek)
}
