// selector/selector.go
package selector

import (
	"context"
	"log/slog"
	"time"

	"github.com/basilbenny1002/idxagent/tracker"
)

const (
	minInterval = 10 * time.Millisecond
	maxInterval = 250 * time.Millisecond
)

// Queue accepts settled paths for dispatch. Enqueue reports false when the
// path was not accepted.
type Queue interface {
	Enqueue(path string) bool
}

// Interval returns the sweep interval for a settle delay: a quarter of the
// delay, kept between 10ms and 250ms.
func Interval(settle time.Duration) time.Duration {
	i := settle / 4
	if i < minInterval {
		return minInterval
	}
	if i > maxInterval {
		return maxInterval
	}
	return i
}

// StartSelector moves paths whose settle delay has elapsed from the tracker
// into the queue until ctx is cancelled. A path is dispatched at most one
// interval after it became due.
func StartSelector(
	ctx context.Context,
	trackerMap *tracker.EventTracker,
	queue Queue,
	interval time.Duration,
) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep(ctx, trackerMap, queue, time.Now())
		}
	}
}

func sweep(ctx context.Context, trackerMap *tracker.EventTracker, queue Queue, now time.Time) int {
	due := trackerMap.PopDue(now)
	queued := 0
	for i, file := range due {
		if ctx.Err() != nil {
			slog.Debug("Selector stopping", "dropped", len(due)-i)
			break
		}
		if queue.Enqueue(file) {
			slog.Debug("Queued file after delay", "file", file)
			queued++
		}
	}
	return queued
}
