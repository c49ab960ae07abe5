// Package cli implements the interactive sshbox client: a small REPL over
// the HTTP API and the local vault façade. All cryptography happens here,
// on the user's machine; the server only ever sees envelopes.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ssh-box/sshbox/internal/client/api"
	"github.com/ssh-box/sshbox/internal/client/config"
	"github.com/ssh-box/sshbox/internal/logging"
	"github.com/ssh-box/sshbox/internal/vault"
	"github.com/ssh-box/sshbox/internal/vault/session"
)

type App struct {
	config *config.Config
	api    *api.Client
	vault  *vault.Vault
	reader *bufio.Reader
	out    io.Writer
}

func NewApp(c *config.Config) *App {

	slogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logger := logging.NewSlogLogger(slogger)

	apiClient := api.NewClient(c.ServerEndpointAddr)
	sess := session.NewCache(c.UnlockTimeout)
	v := vault.New(apiClient.Bundles(), sess, apiClient, logger)

	a := &App{
		config: c,
		api:    apiClient,
		vault:  v,
		reader: bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}

	v.OnLock(func() {
		fmt.Fprintln(a.out, "\nVault locked after inactivity.")
	})

	return a
}

func (a *App) Run(ctx context.Context) {
	defer a.vault.Close()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.api.Token() != ""
}
