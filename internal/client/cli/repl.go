package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs. The real App
// type satisfies it; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Resume(ctx context.Context) error
	Set(ctx context.Context, args []string) error
	Status(ctx context.Context) error
	Upload(ctx context.Context, args []string) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Submit(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands line by line and dispatches them. Handler errors
// are reported by the handlers themselves; the loop only cares about EOF and
// the exit commands.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner, out io.Writer) {
	for {
		fmt.Fprintf(out, "admit %s> ", statusFn())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(out, "Available commands: status, set <name> <value>, upload <path>, next, prev, submit, resume, logout, exit")
			} else {
				fmt.Fprintln(out, "Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)
		case "login":
			_ = a.Login(ctx)
		case "resume":
			_ = a.Resume(ctx)
		case "set":
			_ = a.Set(ctx, args)
		case "status", "show":
			_ = a.Status(ctx)
		case "upload":
			_ = a.Upload(ctx, args)
		case "next", "n":
			_ = a.Next(ctx)
		case "prev", "p", "back":
			_ = a.Previous(ctx)
		case "submit":
			_ = a.Submit(ctx)
		case "logout":
			_ = a.Logout(ctx)
		case "exit", "quit":
			return
		default:
			fmt.Fprintf(out, "Unknown command: %s\n", cmd)
		}
	}
}
