package dispatch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func withExecutable(t *testing.T, path string) {
	t.Helper()
	orig := executable
	executable = func() (string, error) { return path, nil }
	t.Cleanup(func() { executable = orig })
}

func TestResolve_RelativeToBinary(t *testing.T) {
	dir := t.TempDir()
	withExecutable(t, filepath.Join(dir, "idxagent"))

	got, err := Resolve("auto_index.py")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if want := filepath.Join(dir, "auto_index.py"); got != want {
		t.Errorf("Resolve() = %q; want %q", got, want)
	}
}

func TestResolve_Absolute(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "x", "..", "index.py")
	got, err := Resolve(abs)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got != filepath.Clean(abs) {
		t.Errorf("expected cleaned absolute path, got %q", got)
	}
}

func TestResolve_Empty(t *testing.T) {
	if _, err := Resolve(""); !errors.Is(err, ErrIndexerNotFound) {
		t.Fatalf("expected ErrIndexerNotFound, got %v", err)
	}
}

func TestLocate(t *testing.T) {
	dir := t.TempDir()
	withExecutable(t, filepath.Join(dir, "idxagent"))

	if _, err := Locate("auto_index.py"); !errors.Is(err, ErrIndexerNotFound) {
		t.Fatalf("expected ErrIndexerNotFound for missing script, got %v", err)
	}

	if err := os.Mkdir(filepath.Join(dir, "adir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := Locate("adir"); !errors.Is(err, ErrIndexerNotFound) {
		t.Fatalf("expected ErrIndexerNotFound for directory, got %v", err)
	}

	script := filepath.Join(dir, "auto_index.py")
	if err := os.WriteFile(script, []byte("print('hi')\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Locate("auto_index.py")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if got != script {
		t.Errorf("Locate() = %q; want %q", got, script)
	}
}

func TestClientCheck(t *testing.T) {
	script := filepath.Join(t.TempDir(), "index.py")
	c, err := NewClient("python", script)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if err := c.Check(); !errors.Is(err, ErrIndexerNotFound) {
		t.Fatalf("expected ErrIndexerNotFound, got %v", err)
	}
	if err := os.WriteFile(script, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if c.Command() != "python" || c.Script() != script {
		t.Errorf("unexpected client fields: %q %q", c.Command(), c.Script())
	}
}

func TestInterpreter_DirectScript(t *testing.T) {
	c := &Client{script: "/x/index"}
	got, err := c.Interpreter()
	if err != nil || got != "" {
		t.Fatalf("expected empty interpreter, got %q, %v", got, err)
	}
}
