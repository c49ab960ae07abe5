// Package accounts persists per-account login credentials and the
// wrapped-DEK bundle. The server can check a login password here, but the
// master password never appears: only its wrapped output does.
package accounts

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ssh-box/sshbox/internal/common"
	"github.com/ssh-box/sshbox/internal/kvstore"
	"github.com/ssh-box/sshbox/internal/vault/crypt"
)

// Key layout, same partition as the account's secrets:
//
//	USER#{email} | CRED  login hash + has-master-password flag
//	USER#{email} | MP    wrapped-DEK bundle
const (
	credSK = "CRED"
	mpSK   = "MP"
)

const bcryptCost = 10

// Account is the CRED record.
type Account struct {
	Email             string
	HasMasterPassword bool
	CreatedAt         time.Time
}

type Store struct {
	table kvstore.Table
}

func NewStore(table kvstore.Table) *Store {
	return &Store{table: table}
}

func credKey(email string) kvstore.Key {
	return kvstore.Key{PK: "USER#" + email, SK: credSK}
}

func mpKey(email string) kvstore.Key {
	return kvstore.Key{PK: "USER#" + email, SK: mpSK}
}

// Register creates the CRED record with a bcrypt login hash and no master
// password. Fails with common.ErrAlreadyExists for a known email.
func (s *Store) Register(ctx context.Context, email, password string) (*Account, error) {
	_, err := s.table.Get(ctx, credKey(email))
	if err == nil {
		return nil, common.ErrAlreadyExists
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	err = s.table.Put(ctx, credKey(email), kvstore.Item{
		"hash":  string(hash),
		"hasMp": false,
		"cAt":   kvstore.FormatTime(now),
	})
	if err != nil {
		return nil, err
	}

	return &Account{Email: email, CreatedAt: now}, nil
}

// Authenticate checks the login password. Unknown email and wrong
// password both come back as common.ErrUnauthorized.
func (s *Store) Authenticate(ctx context.Context, email, password string) error {
	item, err := s.table.Get(ctx, credKey(email))
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrUnauthorized
		}
		return err
	}

	hash := kvstore.AsString(item["hash"])
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return common.ErrUnauthorized
	}
	return nil
}

// Get returns the CRED record.
func (s *Store) Get(ctx context.Context, email string) (*Account, error) {
	item, err := s.table.Get(ctx, credKey(email))
	if err != nil {
		return nil, err
	}
	return &Account{
		Email:             email,
		HasMasterPassword: kvstore.AsBool(item["hasMp"]),
		CreatedAt:         kvstore.AsTime(item["cAt"]),
	}, nil
}

// GetBundle returns the account's wrapped-DEK bundle and whether a master
// password has been configured. An unconfigured account yields an empty
// bundle, not an error.
func (s *Store) GetBundle(ctx context.Context, email string) (*crypt.Bundle, bool, error) {
	acc, err := s.Get(ctx, email)
	if err != nil {
		return nil, false, err
	}
	if !acc.HasMasterPassword {
		return &crypt.Bundle{}, false, nil
	}

	item, err := s.table.Get(ctx, mpKey(email))
	if err != nil {
		return nil, false, err
	}

	bundle := &crypt.Bundle{
		Salt: kvstore.AsBytes(item["salt"]),
		IV:   kvstore.AsBytes(item["iv"]),
		CT:   kvstore.AsBytes(item["ct"]),
	}
	if err := bundle.Validate(); err != nil {
		return nil, false, err
	}
	return bundle, true, nil
}

// PutBundle stores a fully populated bundle and flips the hasMp flag.
// The bundle lands before the flag, so hasMp never points at nothing.
func (s *Store) PutBundle(ctx context.Context, email string, b *crypt.Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}

	acc, err := s.Get(ctx, email)
	if err != nil {
		return err
	}

	now := kvstore.FormatTime(time.Now())
	item := kvstore.Item{
		"salt": b.Salt,
		"iv":   b.IV,
		"ct":   b.CT,
		"uAt":  now,
	}
	if !acc.HasMasterPassword {
		item["cAt"] = now
	}

	if err := s.table.Put(ctx, mpKey(email), item); err != nil {
		return err
	}

	return s.table.Update(ctx, credKey(email), kvstore.Item{"hasMp": true})
}

// ForAccount binds the store to one account, matching the single-account
// bundle-source shape the vault façade consumes.
func (s *Store) ForAccount(email string) *AccountBundles {
	return &AccountBundles{store: s, email: email}
}

// AccountBundles is a single-account view over the store.
type AccountBundles struct {
	store *Store
	email string
}

func (a *AccountBundles) GetBundle(ctx context.Context) (*crypt.Bundle, bool, error) {
	return a.store.GetBundle(ctx, a.email)
}

func (a *AccountBundles) PutBundle(ctx context.Context, b *crypt.Bundle) error {
	return a.store.PutBundle(ctx, a.email, b)
}
