package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Signup(ctx context.Context) error
	ResendSignupOTP(ctx context.Context) error
	Verify(ctx context.Context) error
	CreatePassword(ctx context.Context) error
	Login(ctx context.Context) error
	SocialLogin(ctx context.Context) error
	Forgot(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Logout(ctx context.Context) error
	Delete(ctx context.Context) error
	Invite(ctx context.Context) error
	Accept(ctx context.Context) error
	Invitations(ctx context.Context) error
	Sweep(ctx context.Context) error
	Ping(ctx context.Context) error
}

const (
	guestHelp  = "Available commands: signup, resend, verify, createpw, login, social, forgot, ping, exit"
	signedHelp = "Available commands: whoami, invite, accept, invites, delete, sweep, logout, ping, exit"
)

// runREPL starts a simple read-eval-print loop for the authctl CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Commands that need a session are refused
// while signed out. The loop exits on EOF or when the user types "exit" or
// "quit". Command errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("auth> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && line != "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var fn func(context.Context) error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(signedHelp)
			} else {
				printlnFn(guestHelp)
			}
			continue

		case "signup":
			fn = a.Signup
		case "resend":
			fn = a.ResendSignupOTP
		case "verify":
			fn = a.Verify
		case "createpw":
			fn = a.CreatePassword
		case "login":
			fn = a.Login
		case "social":
			fn = a.SocialLogin
		case "forgot":
			fn = a.Forgot
		case "ping":
			fn = a.Ping

		case "whoami", "logout", "delete", "invite", "accept", "invites", "sweep":
			if !a.isLoggedIn() {
				printlnFn("Sign in first")
				continue
			}
			fn = map[string]func(context.Context) error{
				"whoami":  a.WhoAmI,
				"logout":  a.Logout,
				"delete":  a.Delete,
				"invite":  a.Invite,
				"accept":  a.Accept,
				"invites": a.Invitations,
				"sweep":   a.Sweep,
			}[cmd]

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
			continue
		}

		if err := fn(ctx); err != nil {
			printlnFn("Error:", err)
		}
	}
}
