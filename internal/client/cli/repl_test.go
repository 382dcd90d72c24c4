package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	failOn   string

	calls []string
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }

func (f *fakeExec) run(name string) error {
	f.calls = append(f.calls, name)
	if name == f.failOn {
		return errors.New(name + " failed")
	}
	return nil
}

func (f *fakeExec) Signup(context.Context) error          { return f.run("signup") }
func (f *fakeExec) ResendSignupOTP(context.Context) error { return f.run("resend") }
func (f *fakeExec) Verify(context.Context) error {
	f.loggedIn = true
	return f.run("verify")
}
func (f *fakeExec) CreatePassword(context.Context) error { return f.run("createpw") }
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.run("login")
}
func (f *fakeExec) SocialLogin(context.Context) error { return f.run("social") }
func (f *fakeExec) Forgot(context.Context) error      { return f.run("forgot") }
func (f *fakeExec) WhoAmI(context.Context) error      { return f.run("whoami") }
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.run("logout")
}
func (f *fakeExec) Delete(context.Context) error      { return f.run("delete") }
func (f *fakeExec) Invite(context.Context) error      { return f.run("invite") }
func (f *fakeExec) Accept(context.Context) error      { return f.run("accept") }
func (f *fakeExec) Invitations(context.Context) error { return f.run("invites") }
func (f *fakeExec) Sweep(context.Context) error       { return f.run("sweep") }
func (f *fakeExec) Ping(context.Context) error        { return f.run("ping") }

func capturePrint(t *testing.T) *[]string {
	t.Helper()
	var lines []string
	orig := printlnFn
	printlnFn = func(a ...any) (int, error) {
		lines = append(lines, strings.TrimSpace(fmt.Sprintln(a...)))
		return 0, nil
	}
	t.Cleanup(func() { printlnFn = orig })
	return &lines
}

func runLines(exec *fakeExec, lines ...string) {
	r := bufio.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	runREPL(context.Background(), exec, func() string { return "status" }, r)
}

func TestRunREPL_SignupFlowAndCommands(t *testing.T) {
	out := capturePrint(t)
	exec := &fakeExec{}

	runLines(exec,
		"help",
		"signup",
		"verify",
		"help",
		"whoami",
		"invite",
		"invites",
		"accept tok",
		"sweep",
		"logout",
		"exit",
	)

	assert.Equal(t, []string{"signup", "verify", "whoami", "invite", "invites", "accept", "sweep", "logout"}, exec.calls)
	assert.Contains(t, *out, guestHelp)
	assert.Contains(t, *out, signedHelp)
	assert.Contains(t, *out, "Bye!")
}

func TestRunREPL_ProtectedCommandsNeedSession(t *testing.T) {
	out := capturePrint(t)
	exec := &fakeExec{}

	runLines(exec, "whoami", "delete", "sweep", "quit")

	assert.Empty(t, exec.calls)
	assert.Contains(t, *out, "Sign in first")
}

func TestRunREPL_GuestCommands(t *testing.T) {
	capturePrint(t)
	exec := &fakeExec{}

	runLines(exec, "resend", "createpw", "social", "forgot", "ping", "login", "delete")

	assert.Equal(t, []string{"resend", "createpw", "social", "forgot", "ping", "login", "delete"}, exec.calls)
}

func TestRunREPL_ErrorsAreReported(t *testing.T) {
	out := capturePrint(t)
	exec := &fakeExec{failOn: "login"}

	runLines(exec, "login", "bogus", "")

	assert.Contains(t, *out, "Error: login failed")
	assert.Contains(t, *out, "Unknown command: bogus")
}

func TestRunREPL_EOF(t *testing.T) {
	capturePrint(t)
	exec := &fakeExec{loggedIn: true}

	runLines(exec)

	assert.Empty(t, exec.calls)
}
