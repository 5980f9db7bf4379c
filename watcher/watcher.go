// Package watcher turns filesystem notifications for one root into
// create/write events and feeds them through the skip filter.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Op describes what happened to a path.
type Op uint8

const (
	Create Op = 1 << iota
	Write
)

func (o Op) Has(h Op) bool { return o&h != 0 }

func (o Op) String() string {
	var parts []string
	if o.Has(Create) {
		parts = append(parts, "CREATE")
	}
	if o.Has(Write) {
		parts = append(parts, "WRITE")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, "|")
}

// Event is a single change notification for a file or folder.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Notifier delivers events for one recursively watched root. Both channels
// are closed once the notifier has shut down.
type Notifier interface {
	Events() <-chan Event
	Errors() <-chan error
	Close() error
}

// PathFilter reports whether a path is noise.
type PathFilter interface {
	ShouldSkip(path string) bool
}

type Backend string

const (
	BackendAuto     Backend = "auto"
	BackendNative   Backend = "native"
	BackendFSNotify Backend = "fsnotify"
	BackendPoll     Backend = "poll"
)

// ParseBackend accepts the backend names used in the config file. An empty
// string selects auto.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BackendAuto, nil
	case BackendAuto, BackendNative, BackendFSNotify, BackendPoll:
		return b, nil
	default:
		return "", fmt.Errorf("unknown watch backend %q (allowed: auto, native, fsnotify, poll)", s)
	}
}

const (
	DefaultPollInterval = time.Second
	DefaultBufferSize   = 1024
)

type Options struct {
	Backend      Backend
	PollInterval time.Duration
	// Skip prunes rejected subtrees where the backend supports it. Events
	// are still filtered by the RootWatcher.
	Skip       PathFilter
	BufferSize int
}

func (o Options) bufferSize() int {
	if o.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return o.BufferSize
}

func (o Options) pollInterval() time.Duration {
	if o.PollInterval < time.Millisecond {
		return DefaultPollInterval
	}
	return o.PollInterval
}

func (o Options) skip(path string) bool {
	return o.Skip != nil && o.Skip.ShouldSkip(path)
}

// OpenFunc opens a notifier for a root. Open is the production version.
type OpenFunc func(root string, opts Options) (Notifier, error)

// Open starts a recursive notifier on root using the selected backend.
// With BackendAuto the platform backend is tried first and polling is
// used if it fails.
func Open(root string, opts Options) (Notifier, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("root %s is not accessible: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", root)
	}

	switch opts.Backend {
	case BackendNative:
		return openNative(root, opts)
	case BackendFSNotify:
		return openFSNotify(root, opts)
	case BackendPoll:
		return openPoll(root, opts)
	case BackendAuto, "":
		primary := platformBackend()
		var n Notifier
		if primary == BackendNative {
			n, err = openNative(root, opts)
		} else {
			n, err = openFSNotify(root, opts)
		}
		if err == nil {
			return n, nil
		}
		slog.Warn("Falling back to polling", "root", root, "backend", primary, "error", err)
		return openPoll(root, opts)
	default:
		return nil, fmt.Errorf("unknown watch backend %q", opts.Backend)
	}
}

// ReadDirectoryChangesW and FSEvents are recursive natively. Everywhere
// else fsnotify with an explicit walk is cheaper to reason about.
func platformBackend() Backend {
	switch runtime.GOOS {
	case "windows", "darwin":
		return BackendNative
	default:
		return BackendFSNotify
	}
}

// stream holds the output side shared by all backends. Only the backend's
// delivery goroutine sends on or closes the channels.
type stream struct {
	events chan Event
	errors chan error
	done   chan struct{}
	once   sync.Once
}

func newStream() *stream {
	return &stream{
		events: make(chan Event),
		errors: make(chan error),
		done:   make(chan struct{}),
	}
}

func (s *stream) Events() <-chan Event { return s.events }
func (s *stream) Errors() <-chan error { return s.errors }

func (s *stream) emit(ev Event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *stream) fail(err error) bool {
	select {
	case s.errors <- err:
		return true
	case <-s.done:
		return false
	}
}

func (s *stream) closing() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// shutdown reports true only for the first caller.
func (s *stream) shutdown() bool {
	first := false
	s.once.Do(func() {
		close(s.done)
		first = true
	})
	return first
}

func (s *stream) finish() {
	close(s.events)
	close(s.errors)
}
