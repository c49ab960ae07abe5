package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) getStatus() string {
	if !a.isLoggedIn() {
		return ""
	}
	s := a.api.Email()
	if unlocked, _ := a.vault.LockStatus(); unlocked {
		s += " unlocked"
	} else {
		s += " locked"
	}
	return fmt.Sprintf("(%s)", s)
}

func (a *App) Root(ctx context.Context) {

	fmt.Fprintln(a.out, "Welcome to sshbox CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Fprintf(a.out, "sshbox %s> ", a.getStatus())
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(a.out, "Available commands: master, unlock, lock, status, add <name>, get <name> [version], list, rm <name>, restore <name> <version>, ping, logout, exit")
			} else {
				fmt.Fprintln(a.out, "Available commands: register, login, ping, exit")
			}

		case "register":
			a.register(ctx)
		case "login":
			a.login(ctx)
		case "logout":
			a.logout()
		case "ping":
			a.ping(ctx)
		case "master":
			a.master(ctx)
		case "unlock":
			a.unlock(ctx)
		case "lock":
			a.lock()
		case "status":
			a.status()
		case "add":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: add <name>")
				continue
			}
			a.add(ctx, args[0])
		case "get":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: get <name> [version-index]")
				continue
			}
			a.get(ctx, args[0], args[1:])
		case "l", "list":
			a.list(ctx)
		case "rm":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: rm <name>")
				continue
			}
			a.remove(ctx, args[0])
		case "restore":
			if len(args) == 0 {
				fmt.Fprintln(a.out, "Usage: restore <name> <version-index>")
				continue
			}
			a.restore(ctx, args[0], args[1:])
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return

		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}
