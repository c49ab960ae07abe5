package api

import (
	"time"

	"github.com/ssh-box/sshbox/internal/vault/crypt"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

type masterResponse struct {
	Configured bool          `json:"configured"`
	Bundle     *crypt.Bundle `json:"bundle"`
}

type createSecretRequest struct {
	Name string `json:"name"`
	IV   []byte `json:"iv"`
	CT   []byte `json:"ct"`
}

type createSecretResponse struct {
	VersionID int64 `json:"versionId"`
}

// Secret is one stored version as the backend reports it. The envelope
// stays encrypted; Version is the human-facing ordinal.
type Secret struct {
	Name         string    `json:"name"`
	VersionID    int64     `json:"versionId"`
	IV           []byte    `json:"iv"`
	CT           []byte    `json:"ct"`
	Version      int64     `json:"version"`
	VersionCount int64     `json:"versionCount,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Envelope converts the wire form back into the crypto engine's type.
func (s *Secret) Envelope() *crypt.Envelope {
	return &crypt.Envelope{IV: s.IV, CT: s.CT}
}
