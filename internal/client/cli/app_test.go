package cli

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssh-box/sshbox/internal/accounts"
	"github.com/ssh-box/sshbox/internal/client/api"
	"github.com/ssh-box/sshbox/internal/client/config"
	"github.com/ssh-box/sshbox/internal/kvstore/memory"
	"github.com/ssh-box/sshbox/internal/logging"
	"github.com/ssh-box/sshbox/internal/secrets"
	"github.com/ssh-box/sshbox/internal/server/httpapi"
	"github.com/ssh-box/sshbox/internal/vault"
	"github.com/ssh-box/sshbox/internal/vault/session"
)

// testApp runs the CLI against a real in-process backend. Text input is
// scripted per command; passwords are fed through the readPassword seam.
type testApp struct {
	app *App
	out *bytes.Buffer
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := logging.NewSlogLogger(slog.New(slog.DiscardHandler))
	table := memory.NewTable()
	ss := secrets.NewStore(table, logger)
	t.Cleanup(ss.Close)

	srv, err := httpapi.NewServer(":0", logger, accounts.NewStore(table), ss, "test-secret", time.Hour)
	require.NoError(t, err)

	backend := httptest.NewServer(srv.Handler())
	t.Cleanup(backend.Close)

	cfg := &config.Config{ServerEndpointAddr: backend.URL, UnlockTimeout: time.Minute}
	apiClient := api.NewClient(cfg.ServerEndpointAddr)
	sess := session.NewCache(cfg.UnlockTimeout)
	v := vault.New(apiClient.Bundles(), sess, apiClient, logger)
	t.Cleanup(v.Close)

	out := &bytes.Buffer{}
	return &testApp{
		app: &App{config: cfg, api: apiClient, vault: v, reader: bufio.NewReader(strings.NewReader("")), out: out},
		out: out,
	}
}

func (ta *testApp) feedText(lines ...string) {
	ta.app.reader = bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

func feedPasswords(t *testing.T, passwords ...string) {
	t.Helper()
	orig := readPassword
	t.Cleanup(func() { readPassword = orig })

	i := 0
	readPassword = func() ([]byte, error) {
		pw := passwords[i%len(passwords)]
		i++
		return []byte(pw), nil
	}
}

func (ta *testApp) signUp(t *testing.T, ctx context.Context) {
	t.Helper()
	feedPasswords(t, "login-pw")
	ta.feedText("a@b.c")
	ta.app.register(ctx)
	ta.feedText("a@b.c")
	ta.app.login(ctx)
	require.True(t, ta.app.isLoggedIn())
	ta.out.Reset()
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)

	feedPasswords(t, "login-pw")

	ta.feedText("a@b.c")
	ta.app.register(ctx)
	assert.Contains(t, ta.out.String(), "Registered successfully")

	ta.feedText("a@b.c")
	ta.app.register(ctx)
	assert.Contains(t, ta.out.String(), "already exists")

	ta.feedText("a@b.c")
	ta.app.login(ctx)
	assert.Contains(t, ta.out.String(), "Logged in successfully")
	assert.True(t, ta.app.isLoggedIn())

	ta.app.logout()
	assert.False(t, ta.app.isLoggedIn())
}

func TestLoginWrongPassword(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)
	ta.signUp(t, ctx)
	ta.app.logout()

	feedPasswords(t, "wrong-pw")
	ta.feedText("a@b.c")
	ta.app.login(ctx)
	assert.Contains(t, ta.out.String(), "Login failed")
	assert.False(t, ta.app.isLoggedIn())
}

func TestMasterConfigureAndChange(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)
	ta.signUp(t, ctx)

	// new password asked twice (enter + confirm)
	feedPasswords(t, "master-pw")
	ta.app.master(ctx)
	assert.Contains(t, ta.out.String(), "Master password has been set")

	unlocked, _ := ta.app.vault.LockStatus()
	assert.True(t, unlocked)

	t.Run("change", func(t *testing.T) {
		ta.out.Reset()
		feedPasswords(t, "master-pw", "master-pw2", "master-pw2")
		ta.app.master(ctx)
		assert.Contains(t, ta.out.String(), "Master password has been set")
	})

	t.Run("change with wrong current", func(t *testing.T) {
		ta.out.Reset()
		feedPasswords(t, "bogus", "master-pw3", "master-pw3")
		ta.app.master(ctx)
		assert.Contains(t, ta.out.String(), "Current master password is wrong")
	})

	t.Run("mismatching confirmation", func(t *testing.T) {
		ta.out.Reset()
		feedPasswords(t, "master-pw2", "new-one", "different")
		ta.app.master(ctx)
		assert.Contains(t, ta.out.String(), "Passwords do not match")
	})
}

func TestSecretCommands(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)
	ta.signUp(t, ctx)

	feedPasswords(t, "master-pw")
	ta.app.master(ctx)
	ta.out.Reset()

	ta.feedText("hunter2", "")
	ta.app.add(ctx, "github")
	assert.Contains(t, ta.out.String(), `Secret "github" stored`)

	t.Run("get", func(t *testing.T) {
		ta.out.Reset()
		ta.app.get(ctx, "github", nil)
		assert.Contains(t, ta.out.String(), "hunter2")
	})

	t.Run("list", func(t *testing.T) {
		ta.out.Reset()
		ta.app.list(ctx)
		assert.Contains(t, ta.out.String(), "github")
		assert.Contains(t, ta.out.String(), "NAME")
	})

	t.Run("restore older version", func(t *testing.T) {
		ta.feedText("hunter3", "")
		ta.app.add(ctx, "github")

		ta.out.Reset()
		ta.app.restore(ctx, "github", []string{"1"})
		assert.Contains(t, ta.out.String(), "restored as the latest")

		ta.out.Reset()
		ta.app.get(ctx, "github", nil)
		assert.Contains(t, ta.out.String(), "hunter2")
	})

	t.Run("locked vault", func(t *testing.T) {
		ta.app.lock()
		ta.out.Reset()
		ta.app.get(ctx, "github", nil)
		assert.Contains(t, ta.out.String(), "Vault is locked")

		feedPasswords(t, "master-pw")
		ta.app.unlock(ctx)
		assert.Contains(t, ta.out.String(), "Vault unlocked")
	})

	t.Run("rm", func(t *testing.T) {
		ta.out.Reset()
		ta.app.remove(ctx, "github")
		assert.Contains(t, ta.out.String(), "deleted")

		ta.out.Reset()
		ta.app.remove(ctx, "github")
		assert.Contains(t, ta.out.String(), "Secret not found")
	})
}

func TestUnlockWithoutMaster(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)
	ta.signUp(t, ctx)

	feedPasswords(t, "whatever")
	ta.app.unlock(ctx)
	assert.Contains(t, ta.out.String(), "No master password configured")
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)

	ta.app.status()
	assert.Contains(t, ta.out.String(), "Not logged in")

	ta.signUp(t, ctx)
	ta.app.status()
	assert.Contains(t, ta.out.String(), "Logged in as a@b.c")
	assert.Contains(t, ta.out.String(), "Vault locked")
}
