package cmd

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/Tiliavir/tsheet/internal/auth"
	"github.com/Tiliavir/tsheet/internal/model"
)

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser(model.User{Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin, PreferredHours: model.Hours(6)}, "pw")

	out, err := h.run("login", "--email", "ada@example.com", "--password", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Signed in as Ada (admin).") {
		t.Errorf("unexpected output: %q", out)
	}
	if _, err := os.Stat(h.session); err != nil {
		t.Fatalf("session file not written: %v", err)
	}

	out, err = h.run("whoami")
	if err != nil {
		t.Fatalf("whoami: %v", err)
	}
	for _, want := range []string{"ada@example.com", "admin", "6h 0m"} {
		if !strings.Contains(out, want) {
			t.Errorf("whoami output missing %q: %q", want, out)
		}
	}

	if out, err := h.run("logout"); err != nil || !strings.Contains(out, "Signed out.") {
		t.Fatalf("logout: %v %q", err, out)
	}
	if _, err := h.run("whoami"); !errors.Is(err, auth.ErrUnauthenticated) {
		t.Errorf("whoami after logout = %v, want ErrUnauthenticated", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser(model.User{Name: "Ada", Email: "ada@example.com"}, "pw")

	_, err := h.run("login", "--email", "ada@example.com", "--password", "nope")
	if err == nil || !strings.Contains(err.Error(), "Invalid credentials") {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(h.session); !os.IsNotExist(err) {
		t.Error("session file written after a failed login")
	}
}

func TestLoginPromptsForPassword(t *testing.T) {
	h := newHarness(t)
	h.srv.AddUser(model.User{Name: "Ada", Email: "ada@example.com"}, "secret")

	out, err := h.runWithInput(strings.NewReader("secret\n"), "login", "--email", "ada@example.com")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !strings.Contains(out, "Password: ") || !strings.Contains(out, "Signed in as Ada") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRegister(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("register", "--name", "Cy", "--email", "cy@example.com", "--password", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !strings.Contains(out, "User registered successfully") {
		t.Errorf("unexpected output: %q", out)
	}
	if _, err := h.run("register", "--name", "Cy", "--email", "cy@example.com", "--password", "pw"); err == nil ||
		!strings.Contains(err.Error(), "User already exists") {
		t.Errorf("duplicate register err = %v", err)
	}
	if _, err := h.run("register", "--name", "Cy", "--email", "cz@example.com", "--password", "pw", "--role", "boss"); err == nil {
		t.Error("unknown role accepted")
	}
}

func TestServerFlagIsValidated(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("--server", "ftp://example.com", "whoami")
	if err == nil || !strings.Contains(err.Error(), "server.base_url") {
		t.Fatalf("err = %v", err)
	}
}
