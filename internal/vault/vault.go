// Package vault is the orchestration façade over the crypto engine and the
// session key cache. Every operation re-checks its preconditions up front:
// first that the caller is authenticated, then (where required) that the
// vault is unlocked. The checks are plain guard clauses; there is no
// interception magic.
package vault

import (
	"context"
	"errors"
	"time"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/logging"
	"github.com/ssh-box/sshbox/internal/vault/crypt"
	"github.com/ssh-box/sshbox/internal/vault/session"
)

// BundleStore is the account-credential collaborator the façade reads and
// writes the wrapped-DEK bundle through. Server embedders back it with the
// accounts store; the CLI backs it with the HTTP API.
type BundleStore interface {
	// GetBundle returns the stored bundle and whether a master password
	// has been configured. When configured is false the bundle is empty.
	GetBundle(ctx context.Context) (*crypt.Bundle, bool, error)

	// PutBundle stores a fully populated bundle and marks the account as
	// having a master password.
	PutBundle(ctx context.Context, b *crypt.Bundle) error
}

// TokenSource reports the caller's current login credential. An empty
// token means not authenticated; validation of a non-empty token is the
// login subsystem's job, not the vault's.
type TokenSource interface {
	Token() string
}

// Vault composes the engine, the session cache and the bundle store
// behind capability-gated operations. One Vault serves one account.
type Vault struct {
	bundles BundleStore
	session *session.Cache
	tokens  TokenSource
	logger  logging.Logger
}

func New(bundles BundleStore, sess *session.Cache, tokens TokenSource, logger logging.Logger) *Vault {
	return &Vault{
		bundles: bundles,
		session: sess,
		tokens:  tokens,
		logger:  logger.With("module", "vault"),
	}
}

// requireAuth is the first precondition of every operation.
func (v *Vault) requireAuth() error {
	if v.tokens.Token() == "" {
		return common.ErrUnauthenticated
	}
	return nil
}

// requireUnlocked yields a live copy of the DEK or ErrVaultLocked.
// The caller must wipe the returned copy.
func (v *Vault) requireUnlocked() ([]byte, error) {
	key := v.session.GetKey()
	if key == nil {
		return nil, common.ErrVaultLocked
	}
	return key, nil
}

// ConfigureMasterPassword sets up a master password for an account that
// does not have one: it generates a fresh DEK, wraps it under the password
// and stores the bundle. Fails with ErrAlreadyConfigured otherwise; the
// caller must use ChangeMasterPassword to rotate.
func (v *Vault) ConfigureMasterPassword(ctx context.Context, password []byte) error {
	if err := v.requireAuth(); err != nil {
		return err
	}

	_, configured, err := v.bundles.GetBundle(ctx)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	if configured {
		return common.ErrAlreadyConfigured
	}

	bundle, err := crypt.WrapDEK(password, nil)
	if err != nil {
		return err
	}

	if err := v.bundles.PutBundle(ctx, bundle); err != nil {
		return err
	}

	v.logger.Info(ctx, "master password configured")
	return nil
}

// ChangeMasterPassword rotates the wrapping of the DEK from the old
// password to the new one. It does not require the vault to be unlocked:
// the old password itself proves possession. On success the session is
// re-unlocked under the new bundle, as a convenience to the caller.
func (v *Vault) ChangeMasterPassword(ctx context.Context, oldPassword, newPassword []byte) error {
	if err := v.requireAuth(); err != nil {
		return err
	}

	bundle, configured, err := v.bundles.GetBundle(ctx)
	if err != nil {
		return err
	}
	if !configured {
		return common.ErrNoMasterPassword
	}

	rotated, err := crypt.RotateMasterPassword(bundle, oldPassword, newPassword)
	if err != nil {
		return err
	}

	if err := v.bundles.PutBundle(ctx, rotated); err != nil {
		return err
	}

	if ok, err := v.unlockBundle(rotated, newPassword); err != nil || !ok {
		// the rotation itself succeeded; a failed re-unlock only means
		// the user gets prompted again
		v.logger.Warn(ctx, "re-unlock after rotation failed")
	}

	v.logger.Info(ctx, "master password rotated")
	return nil
}

// Unlock attempts to unwrap the account's DEK with the supplied password
// and cache it. A wrong password is not an error: it returns (false, nil)
// and leaves the session locked.
func (v *Vault) Unlock(ctx context.Context, password []byte) (bool, error) {
	if err := v.requireAuth(); err != nil {
		return false, err
	}

	bundle, configured, err := v.bundles.GetBundle(ctx)
	if err != nil {
		return false, err
	}
	if !configured {
		return false, common.ErrNoMasterPassword
	}

	return v.unlockBundle(bundle, password)
}

func (v *Vault) unlockBundle(bundle *crypt.Bundle, password []byte) (bool, error) {
	dek, err := crypt.UnwrapDEK(bundle, password)
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredential) {
			return false, nil
		}
		return false, err
	}
	defer common.WipeByteArray(dek)

	v.session.SetKey(dek)
	return true, nil
}

// Lock discards the cached key immediately.
func (v *Vault) Lock() bool {
	return v.session.Lock()
}

// LockStatus reports the session state without sliding the expiry.
func (v *Vault) LockStatus() (unlocked bool, lockAt time.Time) {
	return v.session.Status()
}

// OnLock subscribes to Unlocked-to-Locked transitions of the session.
func (v *Vault) OnLock(fn func()) func() {
	return v.session.OnLock(fn)
}

// EncryptForStorage encrypts one plaintext under the live DEK, producing
// the envelope the secret store persists. Requires auth and an unlocked
// session.
func (v *Vault) EncryptForStorage(plaintext []byte) (*crypt.Envelope, error) {
	if err := v.requireAuth(); err != nil {
		return nil, err
	}

	key, err := v.requireUnlocked()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	return crypt.EncryptSecret(key, plaintext)
}

// DecryptFromStorage decrypts one stored envelope under the live DEK.
func (v *Vault) DecryptFromStorage(envelope *crypt.Envelope) ([]byte, error) {
	if err := v.requireAuth(); err != nil {
		return nil, err
	}

	key, err := v.requireUnlocked()
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	return crypt.DecryptSecret(key, envelope)
}

// Close locks the session and releases its timer. Call at shutdown.
func (v *Vault) Close() {
	v.session.Close()
}
