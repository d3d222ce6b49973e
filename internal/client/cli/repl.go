package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	AddUser(ctx context.Context) error
	AddInspection(ctx context.Context) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Photo(ctx context.Context, args []string) error
	Close(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the FieldSafe CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Prompt & Commands
//
// The prompt shows the current status (from statusFn) and accepts commands:
//
//	  - help               — show available commands
//	  - login              — authenticate against the server
//	  - adduser            — create or update an inspector account
//	  - add                — record a new inspection finding
//	  - list [status]      — list findings, optionally filtered by status
//	  - show <id>          — show one finding with its attachments
//	  - photo <id> <file>  — attach a photo to a finding
//	  - close <id>         — close a finding with an audit comment
//	  - delete <id>        — soft-delete a finding
//	  - sync               — synchronize with the server
//	  - status             — show dirty documents and pending uploads
//	  - exit | quit        — leave the program
//
// Commands work offline except login and sync; every edit is queued locally
// until the next sync. Any errors returned by command handlers are ignored
// here; handlers should log their own errors. This keeps the REPL loop
// resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("fs> %s > ", statusFn()))
		if !scanner.Scan() {
			return
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
				printlnFn("Available commands: add, (l)ist, show, photo, close, delete, sync, status, adduser, exit")
			} else {
				printlnFn("Available commands: login, add, (l)ist, show, photo, close, delete, status, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "adduser":
			_ = a.AddUser(ctx)

		case "add":
			_ = a.AddInspection(ctx)

		case "l", "list":
			_ = a.List(ctx, args)

		case "show":
			_ = a.Show(ctx, args)

		case "photo":
			_ = a.Photo(ctx, args)

		case "close":
			_ = a.Close(ctx, args)

		case "delete":
			_ = a.Delete(ctx, args)

		case "sync":
			_ = a.Sync(ctx)

		case "status":
			_ = a.Status(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
