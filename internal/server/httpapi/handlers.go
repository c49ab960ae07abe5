package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/secrets"
	"github.com/ssh-box/sshbox/internal/server/auth"
	"github.com/ssh-box/sshbox/internal/vault/crypt"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the store sentinels onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound), errors.Is(err, common.ErrNoMasterPassword):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrAlreadyExists), errors.Is(err, common.ErrAlreadyConfigured):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid credentials"})
	case errors.Is(err, common.ErrInvalidBundle):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Store unavailable"})
	default:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
	}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Email and password required"})
		return
	}

	if _, err := s.accounts.Register(r.Context(), req.Email, req.Password); err != nil {
		s.logger.Error(r.Context(), "register failed", "error", err)
		writeError(w, err)
		return
	}

	s.logger.Info(r.Context(), "Registered", "email", req.Email)
	writeJSON(w, http.StatusCreated, messageResponse{Message: "User created"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if err := s.accounts.Authenticate(r.Context(), req.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}

	token, err := auth.GenerateToken(req.Email, s.jwtSecret, s.tokenValidity)
	if err != nil {
		s.logger.Error(r.Context(), "token issue failed", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: token, Email: req.Email})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	status := "Unauthorized"
	if token := bearerToken(r); token != "" {
		if _, err := auth.EmailFromToken(token, s.jwtSecret); err == nil {
			status = "Authorized"
		}
	}
	writeJSON(w, http.StatusOK, "pong: "+status)
}

func (s *Server) handleGetMaster(w http.ResponseWriter, r *http.Request) {
	email, _ := emailFromContext(r.Context())

	bundle, ok, err := s.accounts.GetBundle(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, masterResponse{Configured: false})
		return
	}
	writeJSON(w, http.StatusOK, masterResponse{Configured: true, Bundle: bundle})
}

func (s *Server) handleConfigureMaster(w http.ResponseWriter, r *http.Request) {
	email, _ := emailFromContext(r.Context())

	acc, err := s.accounts.Get(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	if acc.HasMasterPassword {
		writeError(w, common.ErrAlreadyConfigured)
		return
	}

	s.putMasterBundle(w, r, email)
}

func (s *Server) handleRotateMaster(w http.ResponseWriter, r *http.Request) {
	email, _ := emailFromContext(r.Context())

	acc, err := s.accounts.Get(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}
	if !acc.HasMasterPassword {
		writeError(w, common.ErrNoMasterPassword)
		return
	}

	s.putMasterBundle(w, r, email)
}

func (s *Server) putMasterBundle(w http.ResponseWriter, r *http.Request, email string) {
	var bundle crypt.Bundle
	if err := json.NewDecoder(r.Body).Decode(&bundle); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
		return
	}

	if err := s.accounts.PutBundle(r.Context(), email, &bundle); err != nil {
		s.logger.Error(r.Context(), "bundle store failed", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Master password stored"})
}

func (s *Server) handleListSecrets(w http.ResponseWriter, r *http.Request) {
	email, _ := emailFromContext(r.Context())

	entries, err := s.secrets.ListMetadata(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	latest, err := s.secrets.LatestEnvelopes(r.Context(), email, entries)
	if err != nil {
		writeError(w, err)
		return
	}

	result := make([]secretResponse, 0, len(entries))
	for _, e := range entries {
		v, ok := latest[e.Name]
		if !ok {
			continue
		}
		result = append(result, secretResponse{
			Name:         e.Name,
			VersionID:    v.VersionID,
			IV:           v.Envelope.IV,
			CT:           v.Envelope.CT,
			Version:      e.DisplayVersion,
			VersionCount: e.TotalVersions,
			CreatedAt:    v.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateSecret(w http.ResponseWriter, r *http.Request) {
	email, _ := emailFromContext(r.Context())

	var req createSecretRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "bad json"})
		return
	}
	if req.Name == "" || len(req.IV) == 0 || len(req.CT) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Name, iv and ct required"})
		return
	}

	v, err := s.secrets.Create(r.Context(), email, req.Name, &crypt.Envelope{IV: req.IV, CT: req.CT})
	if err != nil {
		s.logger.Error(r.Context(), "secret create failed", "error", err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, createSecretResponse{VersionID: v.VersionID})
}

func (s *Server) handleGetSecret(w http.ResponseWriter, r *http.Request) {
	email, _ := emailFromContext(r.Context())
	name := r.PathValue("name")

	var (
		v       *secrets.Version
		display int64
		err     error
	)
	if raw := r.URL.Query().Get("version"); raw != "" {
		idx, convErr := strconv.Atoi(raw)
		if convErr != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "version must be an integer"})
			return
		}
		v, display, err = s.secrets.GetByIndex(r.Context(), email, name, idx)
	} else {
		v, display, err = s.secrets.GetLatest(r.Context(), email, name)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, secretResponse{
		Name:      v.Name,
		VersionID: v.VersionID,
		IV:        v.Envelope.IV,
		CT:        v.Envelope.CT,
		Version:   display,
		CreatedAt: v.CreatedAt,
	})
}

func (s *Server) handleDeleteSecret(w http.ResponseWriter, r *http.Request) {
	email, _ := emailFromContext(r.Context())
	name := r.PathValue("name")

	if _, _, err := s.secrets.GetLatest(r.Context(), email, name); err != nil {
		writeError(w, err)
		return
	}

	if err := s.secrets.DeleteAll(r.Context(), email, name); err != nil {
		s.logger.Error(r.Context(), "secret delete failed", "error", err)
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
