package api

import (
	"context"

	"github.com/ssh-box/sshbox/internal/vault/crypt"
)

// RemoteBundles adapts the HTTP client to the vault façade's bundle store.
// PutBundle picks configure or rotate based on what the server already
// holds.
type RemoteBundles struct {
	c *Client
}

func (c *Client) Bundles() *RemoteBundles {
	return &RemoteBundles{c: c}
}

func (r *RemoteBundles) GetBundle(ctx context.Context) (*crypt.Bundle, bool, error) {
	return r.c.GetMaster(ctx)
}

func (r *RemoteBundles) PutBundle(ctx context.Context, bundle *crypt.Bundle) error {
	_, configured, err := r.c.GetMaster(ctx)
	if err != nil {
		return err
	}
	if configured {
		return r.c.RotateMaster(ctx, bundle)
	}
	return r.c.ConfigureMaster(ctx, bundle)
}
