package watcher

import (
	"context"
	"log/slog"
)

// Sink receives the paths that survived filtering.
type Sink interface {
	RecordCreate(path string)
	RecordWrite(path string)
}

// RootWatcher consumes one notifier. It never waits on dispatch: creations
// are handed to the sink, which only records them.
type RootWatcher struct {
	root   string
	n      Notifier
	filter PathFilter
	sink   Sink
}

func NewRootWatcher(root string, n Notifier, filter PathFilter, sink Sink) *RootWatcher {
	return &RootWatcher{root: root, n: n, filter: filter, sink: sink}
}

func (rw *RootWatcher) Root() string { return rw.root }

func (rw *RootWatcher) Notifier() Notifier { return rw.n }

// Run handles events until ctx is cancelled or the notifier shuts down.
// Notifier errors are logged and the watcher stays subscribed.
func (rw *RootWatcher) Run(ctx context.Context) error {
	events, errs := rw.n.Events(), rw.n.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				slog.Warn("Watcher stopped", "root", rw.root)
				return nil
			}
			rw.handle(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			slog.Warn("Watcher error", "root", rw.root, "error", err)
		}
	}
}

func (rw *RootWatcher) handle(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Error handling event", "file", ev.Path, "panic", r)
		}
	}()

	if rw.filter != nil && rw.filter.ShouldSkip(ev.Path) {
		return
	}

	switch {
	case ev.Op.Has(Create):
		rw.sink.RecordCreate(ev.Path)
	case ev.Op.Has(Write):
		rw.sink.RecordWrite(ev.Path)
	}
}
