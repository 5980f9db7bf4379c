// Package supervisor opens one watcher per eligible root and keeps them
// running until shutdown.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/basilbenny1002/idxagent/volumes"
	"github.com/basilbenny1002/idxagent/watcher"
)

type Config struct {
	// Roots overrides volume enumeration when non-empty.
	Roots        []string
	Lister       volumes.Lister
	Open         watcher.OpenFunc
	WatchOptions watcher.Options
	Filter       watcher.PathFilter
	Sink         watcher.Sink
	// CheckIndexer runs before any watcher is created. An error from it
	// is the only thing that makes Start fail.
	CheckIndexer func() error
}

// Failure records a root that could not be watched.
type Failure struct {
	Root string
	Err  error
}

type Supervisor struct {
	cfg Config

	mu       sync.Mutex
	watchers []*watcher.RootWatcher
	failed   []Failure
}

func New(cfg Config) *Supervisor {
	if cfg.Lister == nil {
		cfg.Lister = volumes.System{}
	}
	if cfg.Open == nil {
		cfg.Open = watcher.Open
	}
	return &Supervisor{cfg: cfg}
}

// Start checks the indexer, then opens a watcher for every root. Roots that
// fail to open are logged and skipped.
func (s *Supervisor) Start() error {
	if s.cfg.CheckIndexer != nil {
		if err := s.cfg.CheckIndexer(); err != nil {
			return fmt.Errorf("cannot start watchers: %w", err)
		}
	}

	for _, root := range s.roots() {
		s.startRoot(root)
	}

	if len(s.Roots()) == 0 {
		slog.Warn("No drives are being watched", "failed", len(s.Failed()))
	}
	return nil
}

func (s *Supervisor) roots() []string {
	if len(s.cfg.Roots) > 0 {
		roots := volumes.Outermost(s.cfg.Roots)
		if len(roots) < len(s.cfg.Roots) {
			slog.Info("Ignoring duplicate or nested roots", "configured", len(s.cfg.Roots), "watched", len(roots))
		}
		return roots
	}

	roots, err := volumes.EligibleRoots(s.cfg.Lister)
	if err != nil {
		slog.Error("Failed to enumerate drives", "error", err)
		return nil
	}
	return roots
}

func (s *Supervisor) startRoot(root string) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic while opening watcher: %v", r)
			s.fail(root, err)
			slog.Warn("Could not watch drive", "root", root, "error", err)
		}
	}()

	n, err := s.cfg.Open(root, s.cfg.WatchOptions)
	if err != nil {
		s.fail(root, err)
		slog.Warn("Could not watch drive", "root", root, "error", err)
		return
	}

	s.mu.Lock()
	s.watchers = append(s.watchers, watcher.NewRootWatcher(root, n, s.cfg.Filter, s.cfg.Sink))
	s.mu.Unlock()
	slog.Info("Watching drive: " + root)
}

func (s *Supervisor) fail(root string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed = append(s.failed, Failure{Root: root, Err: err})
}

func (s *Supervisor) live() []*watcher.RootWatcher {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*watcher.RootWatcher(nil), s.watchers...)
}

// Run blocks until ctx is cancelled, then closes every notifier.
func (s *Supervisor) Run(ctx context.Context) error {
	watchers := s.live()
	g, gctx := errgroup.WithContext(ctx)
	for _, rw := range watchers {
		g.Go(func() error {
			return rw.Run(gctx)
		})
	}

	<-ctx.Done()
	for _, rw := range watchers {
		if err := rw.Notifier().Close(); err != nil {
			slog.Warn("Failed to close watcher", "root", rw.Root(), "error", err)
		}
	}
	slog.Info("Watchers stopped", "count", len(watchers))
	return g.Wait()
}

// Roots returns the roots that are being watched.
func (s *Supervisor) Roots() []string {
	watchers := s.live()
	roots := make([]string, 0, len(watchers))
	for _, rw := range watchers {
		roots = append(roots, rw.Root())
	}
	return roots
}

// Failed returns the roots that could not be watched.
func (s *Supervisor) Failed() []Failure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Failure(nil), s.failed...)
}
