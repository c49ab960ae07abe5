package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ssh-box/sshbox/internal/common"
)

func (a *App) requireUnlockedHint(err error) bool {
	if errors.Is(err, common.ErrVaultLocked) {
		fmt.Fprintln(a.out, "Vault is locked. Run 'unlock' first.")
		return true
	}
	return false
}

func (a *App) add(ctx context.Context, name string) {
	plaintext, err := GetMultiline(a.reader, "Enter the secret value", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}
	if plaintext == "" {
		fmt.Fprintln(a.out, "Nothing to store.")
		return
	}

	env, err := a.vault.EncryptForStorage([]byte(plaintext))
	if err != nil {
		if !a.requireUnlockedHint(err) {
			fmt.Fprintln(a.out, "Encryption failed:", err)
		}
		return
	}

	id, err := a.api.CreateSecret(ctx, name, env)
	if err != nil {
		fmt.Fprintln(a.out, "Upload failed:", err)
		return
	}

	fmt.Fprintf(a.out, "Secret %q stored (version id %d).\n", name, id)
}

func (a *App) get(ctx context.Context, name string, args []string) {
	version := -1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintln(a.out, "Usage: get <name> [version-index]")
			return
		}
		version = v
	}

	secret, err := a.api.GetSecret(ctx, name, version)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintln(a.out, "Secret not found.")
		} else {
			fmt.Fprintln(a.out, "Fetch failed:", err)
		}
		return
	}

	plaintext, err := a.vault.DecryptFromStorage(secret.Envelope())
	if err != nil {
		if !a.requireUnlockedHint(err) {
			fmt.Fprintln(a.out, "Decryption failed:", err)
		}
		return
	}
	defer common.WipeByteArray(plaintext)

	fmt.Fprintln(a.out, string(plaintext))
}

func (a *App) list(ctx context.Context) {
	secrets, err := a.api.ListSecrets(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "List failed:", err)
		return
	}

	if len(secrets) == 0 {
		fmt.Fprintln(a.out, "No secrets found.")
		return
	}

	fmt.Fprintf(a.out, "%-24s %-8s %-9s %s\n", "NAME", "VERSION", "RETAINED", "CREATED")
	for _, s := range secrets {
		fmt.Fprintf(a.out, "%-24s %-8d %-9d %s\n",
			s.Name, s.Version, s.VersionCount, s.CreatedAt.Format(time.DateTime))
	}
}

func (a *App) remove(ctx context.Context, name string) {
	if err := a.api.DeleteSecret(ctx, name); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintln(a.out, "Secret not found.")
		} else {
			fmt.Fprintln(a.out, "Delete failed:", err)
		}
		return
	}
	fmt.Fprintf(a.out, "Secret %q and all retained versions deleted.\n", name)
}

// restore re-publishes an older version as the newest one. The envelope is
// decrypted locally first so a wrong key cannot silently restore garbage,
// then uploaded unchanged.
func (a *App) restore(ctx context.Context, name string, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(a.out, "Usage: restore <name> <version-index>")
		return
	}
	version, err := strconv.Atoi(args[0])
	if err != nil || version < 0 {
		fmt.Fprintln(a.out, "Usage: restore <name> <version-index>")
		return
	}

	secret, err := a.api.GetSecret(ctx, name, version)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			fmt.Fprintln(a.out, "Secret or version not found.")
		} else {
			fmt.Fprintln(a.out, "Fetch failed:", err)
		}
		return
	}

	plaintext, err := a.vault.DecryptFromStorage(secret.Envelope())
	if err != nil {
		if !a.requireUnlockedHint(err) {
			fmt.Fprintln(a.out, "Verification failed:", err)
		}
		return
	}
	common.WipeByteArray(plaintext)

	id, err := a.api.CreateSecret(ctx, name, secret.Envelope())
	if err != nil {
		fmt.Fprintln(a.out, "Restore failed:", err)
		return
	}

	fmt.Fprintf(a.out, "Version %d of %q restored as the latest (version id %d).\n", secret.Version, name, id)
}
