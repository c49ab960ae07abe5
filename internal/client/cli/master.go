package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ssh-box/sshbox/internal/common"
)

// master configures the master password on first use and rotates it
// afterwards. The password itself never leaves this process; only the
// wrapped bundle travels to the server.
func (a *App) master(ctx context.Context) {
	_, configured, err := a.api.GetMaster(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}

	var current []byte
	if configured {
		fmt.Fprintln(a.out, "Master password is configured, please provide it to proceed.")
		current, err = GetPassword("Enter current master password", a.out)
		if err != nil {
			fmt.Fprintln(a.out, "error:", err)
			return
		}
		defer common.WipeByteArray(current)
	}

	password, err := GetPassword("Enter new master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}
	defer common.WipeByteArray(password)

	confirm, err := GetPassword("Confirm master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}
	defer common.WipeByteArray(confirm)

	if string(password) != string(confirm) {
		fmt.Fprintln(a.out, "Passwords do not match.")
		return
	}

	if configured {
		err = a.vault.ChangeMasterPassword(ctx, current, password)
	} else {
		if err = a.vault.ConfigureMasterPassword(ctx, password); err == nil {
			_, err = a.vault.Unlock(ctx, password)
		}
	}
	if err != nil {
		if errors.Is(err, common.ErrInvalidCredential) {
			fmt.Fprintln(a.out, "Current master password is wrong.")
		} else {
			fmt.Fprintln(a.out, "Failed to set master password:", err)
		}
		return
	}

	fmt.Fprintln(a.out, "Master password has been set. The vault is unlocked.")
}

func (a *App) unlock(ctx context.Context) {
	password, err := GetPassword("Enter master password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}
	defer common.WipeByteArray(password)

	ok, err := a.vault.Unlock(ctx, password)
	if err != nil {
		if errors.Is(err, common.ErrNoMasterPassword) {
			fmt.Fprintln(a.out, "No master password configured yet. Run 'master' first.")
		} else {
			fmt.Fprintln(a.out, "Unlock failed:", err)
		}
		return
	}
	if !ok {
		fmt.Fprintln(a.out, "Wrong master password.")
		return
	}

	fmt.Fprintln(a.out, "Vault unlocked.")
}

func (a *App) lock() {
	if a.vault.Lock() {
		fmt.Fprintln(a.out, "Vault locked.")
	} else {
		fmt.Fprintln(a.out, "Vault is already locked.")
	}
}

func (a *App) status() {
	if !a.isLoggedIn() {
		fmt.Fprintln(a.out, "Not logged in.")
		return
	}
	fmt.Fprintln(a.out, "Logged in as", a.api.Email())

	unlocked, lockAt := a.vault.LockStatus()
	if unlocked {
		fmt.Fprintln(a.out, "Vault unlocked, auto-lock at", lockAt.Format("15:04:05"))
	} else {
		fmt.Fprintln(a.out, "Vault locked.")
	}
}
