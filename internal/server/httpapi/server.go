// Package httpapi exposes the vault backend over HTTP/JSON. Every payload
// that crosses this boundary is either login material or an opaque
// encrypted blob; plaintext secrets and master passwords never appear.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/ssh-box/sshbox/internal/accounts"
	"github.com/ssh-box/sshbox/internal/logging"
	"github.com/ssh-box/sshbox/internal/secrets"
)

type Server struct {
	address       string
	accounts      *accounts.Store
	secrets       *secrets.Store
	logger        logging.Logger
	jwtSecret     []byte
	tokenValidity time.Duration
}

func NewServer(a string, l logging.Logger, as *accounts.Store, ss *secrets.Store, secretKey string, tokenValidity time.Duration) (*Server, error) {
	return &Server{
		address:       a,
		logger:        l.With("module", "http_server"),
		accounts:      as,
		secrets:       ss,
		jwtSecret:     []byte(secretKey),
		tokenValidity: tokenValidity,
	}, nil
}

// Handler builds the route table. Split out from Run so tests can drive
// the mux through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/ping", s.handlePing)

	mux.Handle("GET /api/master", s.requireAuth(s.handleGetMaster))
	mux.Handle("POST /api/master", s.requireAuth(s.handleConfigureMaster))
	mux.Handle("PUT /api/master", s.requireAuth(s.handleRotateMaster))

	mux.Handle("GET /api/secrets", s.requireAuth(s.handleListSecrets))
	mux.Handle("POST /api/secrets", s.requireAuth(s.handleCreateSecret))
	mux.Handle("GET /api/secrets/{name}", s.requireAuth(s.handleGetSecret))
	mux.Handle("DELETE /api/secrets/{name}", s.requireAuth(s.handleDeleteSecret))

	return s.logRequests(mux)
}

func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}
