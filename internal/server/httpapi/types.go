package httpapi

import (
	"time"

	"github.com/ssh-box/sshbox/internal/vault/crypt"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type masterResponse struct {
	Configured bool          `json:"configured"`
	Bundle     *crypt.Bundle `json:"bundle,omitempty"`
}

type createSecretRequest struct {
	Name string `json:"name"`
	IV   []byte `json:"iv"`
	CT   []byte `json:"ct"`
}

type createSecretResponse struct {
	VersionID int64 `json:"versionId"`
}

type secretResponse struct {
	Name         string    `json:"name"`
	VersionID    int64     `json:"versionId"`
	IV           []byte    `json:"iv"`
	CT           []byte    `json:"ct"`
	Version      int64     `json:"version"`
	VersionCount int64     `json:"versionCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
