package crypt

import (
	"testing"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var master = []byte("correct-horse")

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := common.GenerateRandByteArray(SaltSize)

	k1 := DeriveKey(master, salt)
	k2 := DeriveKey(master, salt)
	require.Len(t, k1, KeySize)
	assert.Equal(t, k1, k2)

	k3 := DeriveKey(master, common.GenerateRandByteArray(SaltSize))
	assert.NotEqual(t, k1, k3, "different salt should give a different key")
}

func TestWrapUnwrapRoundTrip(t *testing.T) {
	bundle, err := WrapDEK(master, nil)
	require.NoError(t, err)
	require.NoError(t, bundle.Validate())

	dek, err := UnwrapDEK(bundle, master)
	require.NoError(t, err)
	require.Len(t, dek, KeySize)

	env, err := EncryptSecret(dek, []byte("api-key-123"))
	require.NoError(t, err)

	plain, err := DecryptSecret(dek, env)
	require.NoError(t, err)
	assert.Equal(t, []byte("api-key-123"), plain)
}

func TestUnwrapWrongPassword(t *testing.T) {
	bundle, err := WrapDEK(master, nil)
	require.NoError(t, err)

	_, err = UnwrapDEK(bundle, []byte("wrong-guess"))
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestUnwrapCorruptedBundle(t *testing.T) {
	bundle, err := WrapDEK(master, nil)
	require.NoError(t, err)

	bundle.CT[0] ^= 0xff
	_, err = UnwrapDEK(bundle, master)
	// corruption must present exactly like a wrong password
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestPartialBundleRejected(t *testing.T) {
	bundle, err := WrapDEK(master, nil)
	require.NoError(t, err)

	partial := &Bundle{Salt: bundle.Salt, CT: bundle.CT}
	require.Error(t, partial.Validate())

	_, err = UnwrapDEK(partial, master)
	assert.ErrorIs(t, err, common.ErrInvalidBundle)

	empty := &Bundle{}
	assert.True(t, empty.Empty())
	assert.False(t, bundle.Empty())
}

func TestWrapNonDeterministic(t *testing.T) {
	dek := common.GenerateRandByteArray(KeySize)

	b1, err := WrapDEK(master, dek)
	require.NoError(t, err)
	b2, err := WrapDEK(master, dek)
	require.NoError(t, err)

	assert.NotEqual(t, b1.Salt, b2.Salt)
	assert.NotEqual(t, b1.IV, b2.IV)
	assert.NotEqual(t, b1.CT, b2.CT)
}

func TestRotatePreservesDEK(t *testing.T) {
	bundle, err := WrapDEK(master, nil)
	require.NoError(t, err)

	dek, err := UnwrapDEK(bundle, master)
	require.NoError(t, err)

	env, err := EncryptSecret(dek, []byte("payload"))
	require.NoError(t, err)

	newMaster := []byte("battery-staple")
	rotated, err := RotateMasterPassword(bundle, master, newMaster)
	require.NoError(t, err)

	// the old envelope must still decrypt under the re-unwrapped DEK
	dek2, err := UnwrapDEK(rotated, newMaster)
	require.NoError(t, err)
	assert.Equal(t, dek, dek2)

	plain, err := DecryptSecret(dek2, env)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), plain)
}

func TestRotateWrongOldPassword(t *testing.T) {
	bundle, err := WrapDEK(master, nil)
	require.NoError(t, err)

	_, err = RotateMasterPassword(bundle, []byte("nope"), []byte("new"))
	assert.ErrorIs(t, err, common.ErrInvalidCredential)
}

func TestDecryptTamperedEnvelope(t *testing.T) {
	bundle, err := WrapDEK(master, nil)
	require.NoError(t, err)
	dek, err := UnwrapDEK(bundle, master)
	require.NoError(t, err)

	env, err := EncryptSecret(dek, []byte("payload"))
	require.NoError(t, err)

	env.CT[len(env.CT)-1] ^= 0x01
	_, err = DecryptSecret(dek, env)
	assert.ErrorIs(t, err, common.ErrDecryptionFailed)

	_, err = DecryptSecret(dek, &Envelope{})
	assert.ErrorIs(t, err, common.ErrDecryptionFailed)
}

func TestEncryptSecretFreshNonce(t *testing.T) {
	dek := common.GenerateRandByteArray(KeySize)

	e1, err := EncryptSecret(dek, []byte("same"))
	require.NoError(t, err)
	e2, err := EncryptSecret(dek, []byte("same"))
	require.NoError(t, err)

	assert.NotEqual(t, e1.IV, e2.IV)
	assert.NotEqual(t, e1.CT, e2.CT)
}
