// Package server initializes and runs the backend application. It selects
// the item store backend, wires the account and secret stores to it, and
// runs the HTTP server with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/ssh-box/sshbox/internal/accounts"
	"github.com/ssh-box/sshbox/internal/kvstore"
	"github.com/ssh-box/sshbox/internal/kvstore/dynamo"
	"github.com/ssh-box/sshbox/internal/kvstore/memory"
	"github.com/ssh-box/sshbox/internal/kvstore/postgres"
	"github.com/ssh-box/sshbox/internal/logging"
	"github.com/ssh-box/sshbox/internal/secrets"
	"github.com/ssh-box/sshbox/internal/server/config"

	hs "github.com/ssh-box/sshbox/internal/server/httpapi"
)

type App struct {
	config         *config.Config
	logger         logging.Logger
	accountService *accounts.Store
	secretService  *secrets.Store
	closeTable     io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSON(os.Stdout)

	table, closer, err := newTable(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("store init error: %w", err)
	}

	as := accounts.NewStore(table)
	ss := secrets.NewStore(table, logger)

	return &App{config: c, logger: logger, accountService: as, secretService: ss, closeTable: closer}, nil
}

// newTable selects and initializes the item store backend.
func newTable(ctx context.Context, c *config.Config) (kvstore.Table, io.Closer, error) {
	switch c.Backend {
	case config.BackendMemory:
		return memory.NewTable(), nil, nil
	case config.BackendDynamo:
		client, err := dynamo.NewClient(ctx, c.DynamoRegion, c.DynamoEndpoint, c.AWSAccessKey, c.AWSSecretKey)
		if err != nil {
			return nil, nil, err
		}
		t := dynamo.NewTable(client, c.DynamoTable)
		if err := t.EnsureTable(ctx); err != nil {
			return nil, nil, err
		}
		return t, nil, nil
	case config.BackendPostgres:
		t, err := postgres.Open(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := hs.NewServer(app.config.EndpointAddr, app.logger, app.accountService, app.secretService,
		app.config.SecretKey, app.config.TokenValidityDuration)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	// drain background version pruning before the store goes away
	app.secretService.Close()

	if app.closeTable != nil {
		if err := app.closeTable.Close(); err != nil {
			app.logger.Error(ctx, "store close error", "error", err)
		}
	}
}
