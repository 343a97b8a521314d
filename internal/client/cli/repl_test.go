package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	authed bool

	calls []string
	args  []string
}

func (f *fakeExec) record(call, arg string) {
	f.calls = append(f.calls, call)
	f.args = append(f.args, arg)
}

func (f *fakeExec) isAuthenticated() bool { return f.authed }

func (f *fakeExec) Login(ctx context.Context) error {
	f.record("login", "")
	f.authed = true
	return nil
}

func (f *fakeExec) Register(ctx context.Context, role string) error {
	f.record("register", role)
	return nil
}

func (f *fakeExec) Logout(ctx context.Context) error {
	f.record("logout", "")
	f.authed = false
	return nil
}

func (f *fakeExec) Status(ctx context.Context) error { f.record("status", ""); return nil }

func (f *fakeExec) Book(ctx context.Context, id string) error { f.record("book", id); return nil }

func (f *fakeExec) Message(ctx context.Context, id string) error {
	f.record("message", id)
	return nil
}

func (f *fakeExec) Upvote(ctx context.Context, id string) error { f.record("upvote", id); return nil }

func (f *fakeExec) Profile(ctx context.Context, name string) error {
	f.record("profile", name)
	return nil
}

func (f *fakeExec) Avatar(ctx context.Context, path string) error {
	f.record("avatar", path)
	return nil
}

func (f *fakeExec) Recover(ctx context.Context) error { f.record("recover", ""); return nil }

func muteOutput(t *testing.T) {
	t.Helper()
	origPrint := printlnFn
	printlnFn = func(...any) (int, error) { return 0, nil }
	t.Cleanup(func() { printlnFn = origPrint })
}

func TestRunREPL_DispatchesCommands(t *testing.T) {
	muteOutput(t)

	input := strings.NewReader(strings.Join([]string{
		"help",
		"register professional",
		"login",
		"help",
		"book cg-7",
		"message cg-7",
		"upvote f-42",
		"profile Dana Smith",
		"avatar pic.png",
		"status",
		"logout",
		"nonsense",
		"exit",
	}, "\n"))

	exec := &fakeExec{}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "status" }, sc)

	assert.Equal(t, []string{
		"register", "login", "book", "message", "upvote", "profile", "avatar", "status", "logout",
	}, exec.calls)
	assert.Equal(t, []string{
		"professional", "", "cg-7", "cg-7", "f-42", "Dana Smith", "pic.png", "", "",
	}, exec.args)
}

func TestRunREPL_UsageAndQuit(t *testing.T) {
	muteOutput(t)

	input := strings.NewReader("book\nmessage\nupvote\nprofile\navatar\nquit\n")
	exec := &fakeExec{authed: true}
	sc := bufio.NewScanner(input)

	runREPL(context.Background(), exec, func() string { return "s" }, sc)

	assert.Empty(t, exec.calls)
}

func TestRunREPL_ExitsOnEOF(t *testing.T) {
	muteOutput(t)

	exec := &fakeExec{}
	sc := bufio.NewScanner(strings.NewReader(""))

	runREPL(context.Background(), exec, func() string { return "" }, sc)

	assert.Empty(t, exec.calls)
}
