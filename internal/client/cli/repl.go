package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isAuthenticated() bool
	Login(ctx context.Context) error
	Register(ctx context.Context, role string) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Book(ctx context.Context, caregiverID string) error
	Message(ctx context.Context, caregiverID string) error
	Upvote(ctx context.Context, featureID string) error
	Profile(ctx context.Context, fullName string) error
	Avatar(ctx context.Context, path string) error
	Recover(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the CareLink client.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Gated commands (book, message, upvote, profile, avatar) work while signed
// out too: the guard records the intent, sends the user to the auth page,
// and replays the action after the next sign-in.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("care> %s > ", statusFn()))
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
			if a.isAuthenticated() {
				printlnFn("Available commands: status, book <caregiver>, message <caregiver>, upvote <feature>, profile <name...>, avatar <file>, logout, exit")
			} else {
				printlnFn("Available commands: login, register <role>, recover, status, book <caregiver>, message <caregiver>, upvote <feature>, exit")
			}

		case "login":
			_ = a.Login(ctx)

		case "register":
			role := ""
			if len(args) > 0 {
				role = args[0]
			}
			_ = a.Register(ctx, role)

		case "logout":
			_ = a.Logout(ctx)

		case "status":
			_ = a.Status(ctx)

		case "book":
			if len(args) == 0 {
				printlnFn("Usage: book <caregiver-id>")
				continue
			}
			_ = a.Book(ctx, args[0])

		case "message":
			if len(args) == 0 {
				printlnFn("Usage: message <caregiver-id>")
				continue
			}
			_ = a.Message(ctx, args[0])

		case "upvote":
			if len(args) == 0 {
				printlnFn("Usage: upvote <feature-id>")
				continue
			}
			_ = a.Upvote(ctx, args[0])

		case "profile":
			if len(args) == 0 {
				printlnFn("Usage: profile <full name>")
				continue
			}
			_ = a.Profile(ctx, strings.Join(args, " "))

		case "avatar":
			if len(args) == 0 {
				printlnFn("Usage: avatar <image-file>")
				continue
			}
			_ = a.Avatar(ctx, args[0])

		case "recover":
			_ = a.Recover(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
