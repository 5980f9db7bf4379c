// Package agent wires the watchers, settle tracker, selector and dispatch
// pool together.
package agent

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/basilbenny1002/idxagent/config"
	"github.com/basilbenny1002/idxagent/dispatch"
	"github.com/basilbenny1002/idxagent/filter"
	"github.com/basilbenny1002/idxagent/processor"
	"github.com/basilbenny1002/idxagent/selector"
	"github.com/basilbenny1002/idxagent/supervisor"
	"github.com/basilbenny1002/idxagent/tracker"
	"github.com/basilbenny1002/idxagent/volumes"
	"github.com/basilbenny1002/idxagent/watcher"
)

type Option func(*Agent)

// WithDispatcher replaces the indexer process client.
func WithDispatcher(d processor.Dispatcher) Option {
	return func(a *Agent) { a.dispatcher = d }
}

func WithLister(l volumes.Lister) Option {
	return func(a *Agent) { a.lister = l }
}

func WithOpener(open watcher.OpenFunc) Option {
	return func(a *Agent) { a.open = open }
}

// WithIndexerCheck replaces the startup check for the indexer entrypoint.
func WithIndexerCheck(check func() error) Option {
	return func(a *Agent) { a.indexerCheck = check }
}

type Agent struct {
	cfg          config.ConfigData
	dispatcher   processor.Dispatcher
	indexerCheck func() error
	lister       volumes.Lister
	open         watcher.OpenFunc

	filter  *filter.PathFilter
	tracker *tracker.EventTracker
	pool    *processor.Pool
	sup     *supervisor.Supervisor
}

// Stats is a point-in-time view of the pipeline.
type Stats struct {
	processor.Stats
	Roots   int
	Pending int
}

func New(cfg config.ConfigData, opts ...Option) (*Agent, error) {
	a := &Agent{
		cfg:    cfg,
		lister: volumes.System{},
		open:   watcher.Open,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.dispatcher == nil {
		client, err := dispatch.NewClient(cfg.IndexerCommand(), cfg.Indexer.Script)
		if err != nil {
			return nil, err
		}
		a.dispatcher = client
		if a.indexerCheck == nil {
			a.indexerCheck = client.Check
		}
		if _, err := client.Interpreter(); err != nil {
			slog.Warn("Indexer interpreter not found on PATH", "command", client.Command(), "error", err)
		}
		slog.Info("Indexer", "command", client.Command(), "script", client.Script())
	}

	backend, err := watcher.ParseBackend(cfg.Watch.Backend)
	if err != nil {
		return nil, err
	}
	overflow, err := processor.ParseOverflow(cfg.Dispatch.Overflow)
	if err != nil {
		return nil, err
	}

	a.filter = filter.New(cfg.Rules())
	a.tracker = tracker.NewEventTracker(cfg.Settle(), cfg.MaxSettle())
	a.pool = processor.NewPool(a.dispatcher, processor.Options{
		Workers:     cfg.Workers(),
		QueueSize:   cfg.QueueSize(),
		Overflow:    overflow,
		WaitForExit: cfg.WaitForExit(),
	})
	a.sup = supervisor.New(supervisor.Config{
		Roots:  cfg.Watch.Roots,
		Lister: a.lister,
		Open:   a.open,
		WatchOptions: watcher.Options{
			Backend:      backend,
			PollInterval: cfg.PollInterval(),
			Skip:         a.filter,
		},
		Filter:       a.filter,
		Sink:         a.tracker,
		CheckIndexer: a.indexerCheck,
	})
	return a, nil
}

// Run starts the watchers and blocks until ctx is cancelled. It fails only
// when the indexer entrypoint is missing.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.sup.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.pool.Run(gctx)
	})
	g.Go(func() error {
		selector.StartSelector(gctx, a.tracker, a.pool, selector.Interval(a.tracker.Settle()))
		return nil
	})
	g.Go(func() error {
		return a.sup.Run(gctx)
	})
	if hb := a.cfg.HeartbeatInterval(); hb > 0 {
		g.Go(func() error {
			a.heartbeat(gctx, hb)
			return nil
		})
	}

	slog.Info("Agent running", "roots", len(a.sup.Roots()))
	err := g.Wait()

	if n := a.tracker.Drain(); n > 0 {
		slog.Info("Dropped pending events on shutdown", "count", n)
	}
	slog.Info("Agent stopped")
	return err
}

func (a *Agent) heartbeat(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := a.Stats()
			slog.Info("Heartbeat",
				"roots", s.Roots,
				"pending", s.Pending,
				"queued", s.Queued,
				"dispatched", s.Dispatched,
				"failed", s.Failed,
				"dropped", s.Dropped)
		}
	}
}

func (a *Agent) Roots() []string { return a.sup.Roots() }

func (a *Agent) Stats() Stats {
	return Stats{
		Stats:   a.pool.Stats(),
		Roots:   len(a.sup.Roots()),
		Pending: a.tracker.Pending(),
	}
}
