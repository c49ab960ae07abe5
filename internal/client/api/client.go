// Package api is the HTTP client for the sshbox backend. It speaks the
// backend's JSON protocol and maps its statuses back onto the shared
// sentinel errors, so callers never see raw HTTP codes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/vault/crypt"
)

// ErrUnavailable reports that the server could not be reached at all, as
// opposed to reaching it and being refused.
var ErrUnavailable = errors.New("server unavailable")

type Client struct {
	baseURL string
	http    *http.Client

	mu    sync.Mutex
	token string
	email string
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Token returns the current login token, empty when not logged in.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Email returns the account the current token was issued for.
func (c *Client) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

func (c *Client) setSession(token, email string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.email = email
}

// Logout drops the cached token.
func (c *Client) Logout() {
	c.setSession("", "")
}

// do sends one JSON request and decodes the JSON response into out (when
// out is non-nil). Transport failures come back as ErrUnavailable; error
// statuses are mapped by statusErr.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set(common.AuthHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return statusErr(resp)
	}

	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}

// statusErr maps an error response back onto the shared sentinels. The
// server's error message, when present, is attached for display.
func statusErr(resp *http.Response) error {
	var sentinel error
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		sentinel = common.ErrUnauthorized
	case http.StatusForbidden:
		sentinel = common.ErrInvalidToken
	case http.StatusNotFound:
		sentinel = common.ErrNotFound
	case http.StatusConflict:
		sentinel = common.ErrAlreadyExists
	case http.StatusServiceUnavailable:
		sentinel = common.ErrStoreUnavailable
	default:
		sentinel = fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
		return fmt.Errorf("%w: %s", sentinel, body.Error)
	}
	return sentinel
}

func (c *Client) Register(ctx context.Context, email string, password []byte) error {
	req := credentialsRequest{Email: email, Password: string(password)}
	return c.do(ctx, http.MethodPost, "/api/auth/register", req, nil)
}

// Login authenticates and caches the returned token for later calls.
func (c *Client) Login(ctx context.Context, email string, password []byte) error {
	req := credentialsRequest{Email: email, Password: string(password)}

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return err
	}

	c.setSession(resp.Token, resp.Email)
	return nil
}

func (c *Client) Ping(ctx context.Context) (string, error) {
	var status string
	if err := c.do(ctx, http.MethodGet, "/api/ping", nil, &status); err != nil {
		return "", err
	}
	return status, nil
}

// GetMaster fetches the wrapped-DEK bundle. ok is false when the account
// has not configured a master password yet.
func (c *Client) GetMaster(ctx context.Context) (*crypt.Bundle, bool, error) {
	var resp masterResponse
	if err := c.do(ctx, http.MethodGet, "/api/master", nil, &resp); err != nil {
		return nil, false, err
	}
	if !resp.Configured || resp.Bundle == nil {
		return &crypt.Bundle{}, false, nil
	}
	return resp.Bundle, true, nil
}

// ConfigureMaster stores the initial bundle for the account.
func (c *Client) ConfigureMaster(ctx context.Context, bundle *crypt.Bundle) error {
	return c.do(ctx, http.MethodPost, "/api/master", bundle, nil)
}

// RotateMaster replaces the existing bundle.
func (c *Client) RotateMaster(ctx context.Context, bundle *crypt.Bundle) error {
	return c.do(ctx, http.MethodPut, "/api/master", bundle, nil)
}

func (c *Client) ListSecrets(ctx context.Context) ([]Secret, error) {
	var list []Secret
	if err := c.do(ctx, http.MethodGet, "/api/secrets", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// CreateSecret uploads one envelope as the new latest version of name.
func (c *Client) CreateSecret(ctx context.Context, name string, env *crypt.Envelope) (int64, error) {
	req := createSecretRequest{Name: name, IV: env.IV, CT: env.CT}

	var resp createSecretResponse
	if err := c.do(ctx, http.MethodPost, "/api/secrets", req, &resp); err != nil {
		return 0, err
	}
	return resp.VersionID, nil
}

// GetSecret fetches one version of a secret. A negative version index
// means the latest.
func (c *Client) GetSecret(ctx context.Context, name string, version int) (*Secret, error) {
	path := "/api/secrets/" + name
	if version >= 0 {
		path = fmt.Sprintf("%s?version=%d", path, version)
	}

	var resp Secret
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteSecret removes a secret and all of its retained versions.
func (c *Client) DeleteSecret(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/api/secrets/"+name, nil, nil)
}
