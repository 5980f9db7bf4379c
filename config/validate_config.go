package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/basilbenny1002/idxagent/filter"
	"github.com/basilbenny1002/idxagent/processor"
	"github.com/basilbenny1002/idxagent/watcher"
)

const minPollIntervalMs = 10

// ValidateConfig checks the loaded config and returns a single error describing all issues.
func ValidateConfig(cfg *ConfigData) error {
	var errs multiErr

	// ---- top-level checks ----
	if cfg == nil {
		return errors.New("config is nil")
	}
	if !isValidLogLevel(cfg.LogLevel) {
		errs.addf("invalid loglevel %q (allowed: debug, info, warn, error)", cfg.LogLevel)
	}
	if cfg.Heartbeat < 0 {
		errs.addf("heartbeat %d must not be negative", cfg.Heartbeat)
	}

	// ---- indexer ----
	if strings.TrimSpace(cfg.Indexer.Script) == "" {
		errs.addf("indexer.script is required")
	}

	// ---- watch ----
	if _, err := watcher.ParseBackend(cfg.Watch.Backend); err != nil {
		errs.addf("watch.backend: %v", err)
	}
	for i, root := range cfg.Watch.Roots {
		if strings.TrimSpace(root) == "" {
			errs.addf("watch.roots[%d] is empty", i)
		} else if !filepath.IsAbs(root) {
			errs.addf("watch.roots[%d] %q must be an absolute path", i, root)
		}
	}
	settle, maxSettle := deref(cfg.Watch.SettleMs, defaultSettleMs), deref(cfg.Watch.MaxSettleMs, defaultMaxSettleMs)
	if settle < 0 {
		errs.addf("watch.settle_ms %d must not be negative", settle)
	}
	if maxSettle < settle {
		errs.addf("watch.max_settle_ms %d must be at least settle_ms %d", maxSettle, settle)
	}
	if poll := deref(cfg.Watch.PollIntervalMs, defaultPollIntervalMs); poll < minPollIntervalMs {
		errs.addf("watch.poll_interval_ms %d must be at least %d", poll, minPollIntervalMs)
	}

	// ---- dispatch ----
	if w := deref(cfg.Dispatch.Workers, defaultWorkers); w < 1 {
		errs.addf("dispatch.workers %d must be at least 1", w)
	}
	if q := deref(cfg.Dispatch.QueueSize, defaultQueueSize); q < 1 {
		errs.addf("dispatch.queue_size %d must be at least 1", q)
	}
	if _, err := processor.ParseOverflow(cfg.Dispatch.Overflow); err != nil {
		errs.addf("dispatch.overflow: %v", err)
	}

	// ---- skip rules ----
	for i, f := range cfg.Skip.Folders {
		if strings.TrimSpace(f) == "" {
			errs.addf("skip.folders[%d] is empty", i)
		} else if filter.ContainsSeparator(f) {
			errs.addf("skip.folders[%d] %q must be a single folder name", i, f)
		}
	}
	for i, p := range cfg.Skip.Patterns {
		// An empty pattern would match every path.
		if strings.TrimSpace(p) == "" {
			errs.addf("skip.patterns[%d] is empty", i)
		}
	}

	if errs.len() > 0 {
		return errs.err()
	}
	return nil
}

// ---- helpers ----

type multiErr struct {
	list []string
}

func (m *multiErr) addf(format string, a ...any) {
	m.list = append(m.list, fmt.Sprintf(format, a...))
}
func (m *multiErr) len() int { return len(m.list) }
func (m *multiErr) err() error {
	return errors.New(strings.Join(m.list, "; "))
}

func isValidLogLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug", "info", "warn", "warning", "error", "":
		return true
	default:
		return false
	}
}
