package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Tiliavir/tsheet/internal/gateway/gatewaytest"
	"github.com/Tiliavir/tsheet/internal/model"
)

type harness struct {
	t       *testing.T
	srv     *gatewaytest.Server
	dir     string
	config  string
	session string
	now     time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := gatewaytest.New(t)
	dir := t.TempDir()
	h := &harness{
		t:       t,
		srv:     srv,
		dir:     dir,
		config:  filepath.Join(dir, "config.json"),
		session: filepath.Join(dir, "auth", "session.json"),
		now:     time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC),
	}
	cfg := fmt.Sprintf(`{
  // fake backend
  "server": {"base_url": %q, "timeout": "5s"},
  "auth": {"session_file": %q},
  "log": {"level": "error", "format": "json"}
}
`, srv.BaseURL(), h.session)
	if err := os.WriteFile(h.config, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	prev := clock
	clock = func() time.Time { return h.now }
	t.Cleanup(func() { clock = prev })
	return h
}

// run executes a fresh command tree with args and returns its output.
func (h *harness) run(args ...string) (string, error) {
	return h.runWithInput(nil, args...)
}

func (h *harness) runWithInput(in io.Reader, args ...string) (string, error) {
	h.t.Helper()
	root := NewRootCommand(context.Background())
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	if in != nil {
		root.SetIn(in)
	}
	root.SetArgs(append([]string{"--config", h.config}, args...))
	err := root.Execute()
	return buf.String(), err
}

// signIn registers u on the fake backend and logs in as it.
func (h *harness) signIn(u model.User) model.User {
	h.t.Helper()
	u = h.srv.AddUser(u, "pw")
	if out, err := h.run("login", "--email", u.Email, "--password", "pw"); err != nil {
		h.t.Fatalf("login: %v\n%s", err, out)
	}
	return u
}
