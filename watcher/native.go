package watcher

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/rjeczalik/notify"
)

// nativeWatcher uses the operating system's recursive watch facility.
type nativeWatcher struct {
	*stream
	c chan notify.EventInfo
}

func openNative(root string, opts Options) (Notifier, error) {
	c := make(chan notify.EventInfo, opts.bufferSize())
	if err := notify.Watch(filepath.Join(root, "..."), c, notify.Create, notify.Write); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	nw := &nativeWatcher{stream: newStream(), c: c}
	go nw.loop()
	return nw, nil
}

func (nw *nativeWatcher) Close() error {
	if nw.shutdown() {
		notify.Stop(nw.c)
	}
	return nil
}

func (nw *nativeWatcher) loop() {
	defer nw.finish()
	for {
		select {
		case <-nw.done:
			return

		case ei := <-nw.c:
			slog.Debug("Filesystem event", "Op", ei.Event(), "Name", ei.Path())

			var op Op
			switch ei.Event() {
			case notify.Create:
				op = Create
			case notify.Write:
				op = Write
			default:
				continue
			}
			if !nw.emit(Event{Path: ei.Path(), Op: op, Time: time.Now()}) {
				return
			}
		}
	}
}
