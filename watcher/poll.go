package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/radovskyb/watcher"
)

// pollWatcher compares directory listings on an interval. It is the
// fallback when no event facility is usable for the root.
type pollWatcher struct {
	*stream
	w *watcher.Watcher
}

func openPoll(root string, opts Options) (Notifier, error) {
	w := watcher.New()
	w.FilterOps(watcher.Create, watcher.Write)
	w.AddFilterHook(func(_ os.FileInfo, path string) error {
		if path != root && opts.skip(path) {
			return watcher.ErrSkip
		}
		return nil
	})

	if err := w.AddRecursive(root); err != nil {
		return nil, fmt.Errorf("failed to poll %s: %w", root, err)
	}

	pw := &pollWatcher{stream: newStream(), w: w}
	go pw.loop()

	interval := opts.pollInterval()
	go func() {
		if err := w.Start(interval); err != nil {
			slog.Error("Polling watcher stopped", "root", root, "error", err)
		}
	}()
	w.Wait()

	slog.Debug("Polling", "root", root, "interval", interval)
	return pw, nil
}

func (pw *pollWatcher) Close() error {
	if pw.shutdown() {
		pw.w.Close()
	}
	return nil
}

// loop keeps draining the poller after shutdown so Close never waits on
// an undelivered event.
func (pw *pollWatcher) loop() {
	defer pw.finish()
	for {
		select {
		case <-pw.w.Closed:
			return

		case ev := <-pw.w.Event:
			if pw.closing() {
				continue
			}
			var op Op
			switch ev.Op {
			case watcher.Create:
				op = Create
			case watcher.Write:
				op = Write
			default:
				continue
			}
			pw.emit(Event{Path: ev.Path, Op: op, Time: time.Now()})

		case err := <-pw.w.Error:
			if pw.closing() {
				continue
			}
			pw.fail(err)
		}
	}
}
