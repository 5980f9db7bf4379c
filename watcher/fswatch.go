package watcher

import (
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// replayWindow bounds how long a path reported by followDir absorbs the
// matching Create from the kernel.
const replayWindow = time.Second

// deviceOf is swapped in tests.
var deviceOf = deviceID

// fsWatcher emulates a recursive watch with fsnotify by adding every
// directory under the root and following new directories as they appear.
// The walk stays on the root's filesystem.
type fsWatcher struct {
	*stream
	w    *fsnotify.Watcher
	opts Options

	device   func(string) (uint64, bool)
	rootDev  uint64
	hasDev   bool
	replayed map[string]time.Time // only touched by the loop goroutine
}

func newFSWatcher(w *fsnotify.Watcher, root string, opts Options) *fsWatcher {
	fw := &fsWatcher{
		stream:   newStream(),
		w:        w,
		opts:     opts,
		device:   deviceOf,
		replayed: make(map[string]time.Time),
	}
	fw.rootDev, fw.hasDev = fw.device(root)
	return fw
}

func openFSNotify(root string, opts Options) (Notifier, error) {
	w, err := fsnotify.NewBufferedWatcher(uint(opts.bufferSize()))
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	fw := newFSWatcher(w, root, opts)
	if err := fw.addTree(root, false); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", root, err)
	}

	go fw.loop()
	return fw, nil
}

func (fw *fsWatcher) Close() error {
	if !fw.shutdown() {
		return nil
	}
	return fw.w.Close()
}

func (fw *fsWatcher) loop() {
	defer fw.finish()
	for {
		select {
		case <-fw.done:
			return

		case event, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if !fw.handle(event) {
				return
			}

		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			if !fw.fail(err) {
				return
			}
		}
	}
}

// handle converts one fsnotify event. It returns false once the stream is
// shutting down.
func (fw *fsWatcher) handle(event fsnotify.Event) bool {
	slog.Debug("Filesystem event", "Op", event.Op, "Name", event.Name)

	var op Op
	if event.Has(fsnotify.Create) {
		op |= Create
	}
	if event.Has(fsnotify.Write) {
		op |= Write
	}

	now := time.Now()
	if op.Has(Create) && fw.wasReplayed(event.Name, now) {
		// followDir already reported it and watched it if it is a directory.
		op &^= Create
	}
	if op == 0 {
		return true
	}

	if !fw.emit(Event{Path: event.Name, Op: op, Time: now}) {
		return false
	}
	if op.Has(Create) && !fw.opts.skip(event.Name) {
		fw.followDir(event.Name)
	}
	return true
}

// wasReplayed consumes the replay record for path.
func (fw *fsWatcher) wasReplayed(path string, now time.Time) bool {
	at, ok := fw.replayed[path]
	if !ok {
		return false
	}
	delete(fw.replayed, path)
	return now.Sub(at) < replayWindow
}

// otherDevice reports whether dir is a mount point for another filesystem.
func (fw *fsWatcher) otherDevice(dir string) bool {
	if !fw.hasDev {
		return false
	}
	dev, ok := fw.device(dir)
	return ok && dev != fw.rootDev
}

// followDir starts watching a directory that was just created. Anything
// created inside it before the watch was in place is reported as created.
func (fw *fsWatcher) followDir(path string) {
	now := time.Now()
	for p, at := range fw.replayed {
		if now.Sub(at) >= replayWindow {
			delete(fw.replayed, p)
		}
	}
	if err := fw.addTree(path, true); err != nil {
		slog.Debug("Could not follow new path", "path", path, "error", err)
	}
}

// addTree adds path and every directory below it, pruning subtrees the
// skip filter rejects and directories on another filesystem. Unreadable
// directories below path are skipped.
func (fw *fsWatcher) addTree(path string, report bool) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			slog.Debug("Skipping unreadable path", "path", p, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p != path && fw.opts.skip(p) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() && fw.otherDevice(p) {
			slog.Debug("Not crossing mount point", "path", p)
			return fs.SkipDir
		}
		if report && p != path {
			now := time.Now()
			fw.replayed[p] = now
			if !fw.emit(Event{Path: p, Op: Create, Time: now}) {
				return fs.SkipAll
			}
		}
		if !d.IsDir() {
			return nil
		}
		if err := fw.w.Add(p); err != nil {
			if p == path {
				return err
			}
			slog.Warn("Failed to watch directory", "path", p, "error", err)
		}
		return nil
	})
}
