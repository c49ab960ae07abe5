package api

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssh-box/sshbox/internal/accounts"
	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/kvstore/memory"
	"github.com/ssh-box/sshbox/internal/logging"
	"github.com/ssh-box/sshbox/internal/secrets"
	"github.com/ssh-box/sshbox/internal/server/httpapi"
	"github.com/ssh-box/sshbox/internal/vault"
	"github.com/ssh-box/sshbox/internal/vault/crypt"
	"github.com/ssh-box/sshbox/internal/vault/session"
)

// newBackend runs a real backend over the in-memory store so the client
// is exercised against the actual protocol, not a stub.
func newBackend(t *testing.T) *Client {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	table := memory.NewTable()
	ss := secrets.NewStore(table, logger)
	t.Cleanup(ss.Close)

	srv, err := httpapi.NewServer(":0", logger, accounts.NewStore(table), ss, "test-secret", time.Hour)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return NewClient(ts.URL)
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	c := newBackend(t)

	require.NoError(t, c.Register(ctx, "a@b.c", []byte("pw")))

	t.Run("duplicate register", func(t *testing.T) {
		err := c.Register(ctx, "a@b.c", []byte("pw"))
		assert.ErrorIs(t, err, common.ErrAlreadyExists)
	})

	t.Run("wrong password", func(t *testing.T) {
		err := c.Login(ctx, "a@b.c", []byte("nope"))
		assert.ErrorIs(t, err, common.ErrUnauthorized)
		assert.Empty(t, c.Token())
	})

	t.Run("ok", func(t *testing.T) {
		require.NoError(t, c.Login(ctx, "a@b.c", []byte("pw")))
		assert.NotEmpty(t, c.Token())
		assert.Equal(t, "a@b.c", c.Email())
	})

	t.Run("logout", func(t *testing.T) {
		c.Logout()
		assert.Empty(t, c.Token())
	})
}

func TestPing(t *testing.T) {
	ctx := context.Background()
	c := newBackend(t)

	status, err := c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong: Unauthorized", status)

	require.NoError(t, c.Register(ctx, "a@b.c", []byte("pw")))
	require.NoError(t, c.Login(ctx, "a@b.c", []byte("pw")))

	status, err = c.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pong: Authorized", status)
}

func TestServerUnavailable(t *testing.T) {
	ctx := context.Background()

	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	c := NewClient(url)
	_, err := c.Ping(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMasterBundle(t *testing.T) {
	ctx := context.Background()
	c := newBackend(t)

	require.NoError(t, c.Register(ctx, "a@b.c", []byte("pw")))
	require.NoError(t, c.Login(ctx, "a@b.c", []byte("pw")))

	_, configured, err := c.GetMaster(ctx)
	require.NoError(t, err)
	assert.False(t, configured)

	bundle, err := crypt.WrapDEK([]byte("master"), nil)
	require.NoError(t, err)

	require.NoError(t, c.Bundles().PutBundle(ctx, bundle))

	got, configured, err := c.GetMaster(ctx)
	require.NoError(t, err)
	require.True(t, configured)
	assert.Equal(t, bundle.Salt, got.Salt)
	assert.Equal(t, bundle.CT, got.CT)

	t.Run("put again rotates", func(t *testing.T) {
		rotated, err := crypt.WrapDEK([]byte("master2"), nil)
		require.NoError(t, err)

		require.NoError(t, c.Bundles().PutBundle(ctx, rotated))

		got, configured, err := c.GetMaster(ctx)
		require.NoError(t, err)
		require.True(t, configured)
		assert.Equal(t, rotated.CT, got.CT)
	})
}

func TestSecrets(t *testing.T) {
	ctx := context.Background()
	c := newBackend(t)

	require.NoError(t, c.Register(ctx, "a@b.c", []byte("pw")))
	require.NoError(t, c.Login(ctx, "a@b.c", []byte("pw")))

	id, err := c.CreateSecret(ctx, "github", &crypt.Envelope{IV: []byte("iv-one"), CT: []byte("ct-one")})
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = c.CreateSecret(ctx, "github", &crypt.Envelope{IV: []byte("iv-two"), CT: []byte("ct-two")})
	require.NoError(t, err)

	t.Run("list", func(t *testing.T) {
		list, err := c.ListSecrets(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "github", list[0].Name)
		assert.Equal(t, int64(2), list[0].Version)
		assert.Equal(t, int64(2), list[0].VersionCount)
		assert.Equal(t, []byte("ct-two"), list[0].CT)
	})

	t.Run("get latest", func(t *testing.T) {
		s, err := c.GetSecret(ctx, "github", -1)
		require.NoError(t, err)
		assert.Equal(t, []byte("ct-two"), s.CT)
		assert.Equal(t, int64(2), s.Version)
	})

	t.Run("get by index", func(t *testing.T) {
		s, err := c.GetSecret(ctx, "github", 1)
		require.NoError(t, err)
		assert.Equal(t, []byte("ct-one"), s.CT)
		assert.Equal(t, int64(1), s.Version)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := c.GetSecret(ctx, "missing", -1)
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.DeleteSecret(ctx, "github"))

		err := c.DeleteSecret(ctx, "github")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("token rejected after logout", func(t *testing.T) {
		c.Logout()
		_, err := c.ListSecrets(ctx)
		assert.ErrorIs(t, err, common.ErrUnauthorized)
	})
}

// The client, the façade and the backend together: configure a master
// password remotely, unlock, store and read back a secret.
func TestVaultOverHTTP(t *testing.T) {
	ctx := context.Background()
	c := newBackend(t)

	require.NoError(t, c.Register(ctx, "a@b.c", []byte("pw")))
	require.NoError(t, c.Login(ctx, "a@b.c", []byte("pw")))

	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	sess := session.NewCache(time.Minute)
	v := vault.New(c.Bundles(), sess, c, logger)
	defer v.Close()

	require.NoError(t, v.ConfigureMasterPassword(ctx, []byte("master")))

	env, err := v.EncryptForStorage([]byte("hunter2"))
	require.NoError(t, err)

	_, err = c.CreateSecret(ctx, "login", env)
	require.NoError(t, err)

	stored, err := c.GetSecret(ctx, "login", -1)
	require.NoError(t, err)

	plain, err := v.DecryptFromStorage(stored.Envelope())
	require.NoError(t, err)
	assert.Equal(t, []byte("hunter2"), plain)

	t.Run("locked vault refuses", func(t *testing.T) {
		v.Lock()
		_, err := v.DecryptFromStorage(stored.Envelope())
		assert.ErrorIs(t, err, common.ErrVaultLocked)

		ok, err := v.Unlock(ctx, []byte("master"))
		require.NoError(t, err)
		require.True(t, ok)

		plain, err := v.DecryptFromStorage(stored.Envelope())
		require.NoError(t, err)
		assert.Equal(t, []byte("hunter2"), plain)
	})
}
