// Package dispatch hands created paths to the external indexer process.
package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrIndexerNotFound is returned when the indexer entrypoint is missing.
// The agent cannot do anything useful without it.
var ErrIndexerNotFound = errors.New("indexer entrypoint not found")

// executable is swapped in tests.
var executable = os.Executable

// Request is a single dispatch. ID only exists to correlate log lines.
type Request struct {
	ID   string
	Path string
}

// Client starts the indexer for one path at a time. It keeps no state
// between calls and is safe for concurrent use.
type Client struct {
	command string
	script  string
}

// NewClient resolves script and returns a client that runs
// "command script <path>". An empty command runs the script directly.
func NewClient(command, script string) (*Client, error) {
	resolved, err := Resolve(script)
	if err != nil {
		return nil, err
	}
	return &Client{command: command, script: resolved}, nil
}

func (c *Client) Command() string { return c.command }
func (c *Client) Script() string  { return c.script }

// Resolve returns script as an absolute path. Relative paths are taken
// relative to the directory holding the agent binary.
func Resolve(script string) (string, error) {
	if script == "" {
		return "", fmt.Errorf("%w: no script configured", ErrIndexerNotFound)
	}
	if filepath.IsAbs(script) {
		return filepath.Clean(script), nil
	}
	exe, err := executable()
	if err != nil {
		return "", fmt.Errorf("failed to locate agent binary: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), script), nil
}

// Locate resolves script and checks that it is a regular file.
func Locate(script string) (string, error) {
	path, err := Resolve(script)
	if err != nil {
		return "", err
	}
	if err := checkFile(path); err != nil {
		return "", err
	}
	return path, nil
}

// Check reports ErrIndexerNotFound when the entrypoint has gone missing.
func (c *Client) Check() error {
	return checkFile(c.script)
}

// Interpreter looks the configured command up on PATH. It returns an empty
// string when the script is run directly.
func (c *Client) Interpreter() (string, error) {
	if c.command == "" {
		return "", nil
	}
	return exec.LookPath(c.command)
}

// Dispatch starts the indexer for path and returns as soon as the process
// is running. The returned channel is closed when the process exits. The
// exit status is not inspected and the output is discarded.
func (c *Client) Dispatch(path string) (<-chan struct{}, error) {
	req := Request{ID: uuid.NewString(), Path: path}

	name, args := c.command, []string{c.script, req.Path}
	if name == "" {
		name, args = c.script, []string{req.Path}
	}

	cmd := exec.Command(name, args...)
	cmd.SysProcAttr = sysProcAttr()

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start indexer for %s: %w", req.Path, err)
	}
	slog.Info("Dispatched", "file", req.Path, "pid", cmd.Process.Pid, "id", req.ID)

	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		slog.Debug("Indexer exited", "file", req.Path, "id", req.ID)
		close(done)
	}()
	return done, nil
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrIndexerNotFound, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrIndexerNotFound, path)
	}
	return nil
}
