package cli

import (
	"bufio"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubExec struct {
	loggedIn bool
	calls    []string
}

func (s *stubExec) record(name string) error {
	s.calls = append(s.calls, name)
	return nil
}

func (s *stubExec) isLoggedIn() bool                                 { return s.loggedIn }
func (s *stubExec) Register(ctx context.Context) error               { return s.record("register") }
func (s *stubExec) Login(ctx context.Context) error                  { return s.record("login") }
func (s *stubExec) Resume(ctx context.Context) error                 { return s.record("resume") }
func (s *stubExec) Set(ctx context.Context, args []string) error     { return s.record("set") }
func (s *stubExec) Status(ctx context.Context) error                 { return s.record("status") }
func (s *stubExec) Upload(ctx context.Context, args []string) error  { return s.record("upload") }
func (s *stubExec) Next(ctx context.Context) error                   { return s.record("next") }
func (s *stubExec) Previous(ctx context.Context) error               { return s.record("prev") }
func (s *stubExec) Submit(ctx context.Context) error                 { return s.record("submit") }
func (s *stubExec) Logout(ctx context.Context) error                 { return s.record("logout") }

func runWith(t *testing.T, exec *stubExec, input string) string {
	t.Helper()
	var out bytes.Buffer
	scanner := bufio.NewScanner(strings.NewReader(input))
	runREPL(context.Background(), exec, func() string { return "(test)" }, scanner, &out)
	return out.String()
}

func TestREPL_DispatchesCommands(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	runWith(t, exec, "set first_name Ada\nnext\nprev\nsubmit\nstatus\nexit\n")

	assert.Equal(t, []string{"set", "next", "prev", "submit", "status"}, exec.calls)
}

func TestREPL_Aliases(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	runWith(t, exec, "n\np\nback\nshow\nquit\n")

	assert.Equal(t, []string{"next", "prev", "prev", "status"}, exec.calls)
}

func TestREPL_UnknownCommand(t *testing.T) {
	exec := &stubExec{}
	out := runWith(t, exec, "frobnicate\nexit\n")

	assert.Contains(t, out, "Unknown command: frobnicate")
	assert.Empty(t, exec.calls)
}

func TestREPL_HelpDependsOnLogin(t *testing.T) {
	out := runWith(t, &stubExec{}, "help\nexit\n")
	assert.Contains(t, out, "register, login")

	out = runWith(t, &stubExec{loggedIn: true}, "help\nexit\n")
	assert.Contains(t, out, "submit")
}

func TestREPL_ExitsOnEOF(t *testing.T) {
	exec := &stubExec{}
	runWith(t, exec, "")
	assert.Empty(t, exec.calls)
}

func TestREPL_SkipsBlankLines(t *testing.T) {
	exec := &stubExec{loggedIn: true}
	runWith(t, exec, "\n\nstatus\nexit\n")
	assert.Equal(t, []string{"status"}, exec.calls)
}
