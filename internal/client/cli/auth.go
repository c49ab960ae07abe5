package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/ssh-box/sshbox/internal/client/api"
	"github.com/ssh-box/sshbox/internal/common"
)

func (a *App) register(ctx context.Context) {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}

	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}
	defer common.WipeByteArray(password)

	if err := a.api.Register(ctx, email, password); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			fmt.Fprintln(a.out, "An account with this email already exists.")
		} else {
			fmt.Fprintln(a.out, "Registration failed:", err)
		}
		return
	}

	fmt.Fprintln(a.out, "Registered successfully! You can now login.")
}

func (a *App) login(ctx context.Context) {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}

	password, err := GetPassword("Enter password", a.out)
	if err != nil {
		fmt.Fprintln(a.out, "error:", err)
		return
	}
	defer common.WipeByteArray(password)

	if err := a.api.Login(ctx, email, password); err != nil {
		if errors.Is(err, api.ErrUnavailable) {
			fmt.Fprintln(a.out, "Server unavailable.")
		} else {
			fmt.Fprintln(a.out, "Login failed:", err)
		}
		return
	}

	fmt.Fprintln(a.out, "Logged in successfully!")
}

func (a *App) logout() {
	a.vault.Lock()
	a.api.Logout()
	fmt.Fprintln(a.out, "Logged out.")
}

func (a *App) ping(ctx context.Context) {
	status, err := a.api.Ping(ctx)
	if err != nil {
		fmt.Fprintln(a.out, "Ping failed:", err)
		return
	}
	fmt.Fprintln(a.out, status)
}
