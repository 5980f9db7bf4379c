// Package tracker holds created paths while they settle.
package tracker

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

type entry struct {
	first time.Time
	due   time.Time
	count int
}

// EventTracker maps a path to the time it becomes due for dispatch.
// Creations are counted, not merged: a path created twice while pending is
// returned twice by PopDue.
type EventTracker struct {
	mu        sync.Mutex
	pending   map[string]*entry
	settle    time.Duration
	maxSettle time.Duration
	now       func() time.Time
}

func NewEventTracker(settle, maxSettle time.Duration) *EventTracker {
	if maxSettle < settle {
		maxSettle = settle
	}
	slog.Debug("New Event Tracker", "settle", settle, "maxSettle", maxSettle)
	return &EventTracker{
		pending:   make(map[string]*entry),
		settle:    settle,
		maxSettle: maxSettle,
		now:       time.Now,
	}
}

func (et *EventTracker) Settle() time.Duration { return et.settle }

// RecordCreate counts a creation of name and pushes its due time out.
func (et *EventTracker) RecordCreate(name string) {
	et.mu.Lock()
	defer et.mu.Unlock()

	now := et.now()
	e, ok := et.pending[name]
	if !ok {
		e = &entry{first: now}
		et.pending[name] = e
	}
	e.count++
	et.extend(e, now)
	slog.Debug("RecordCreate", "name", name, "count", e.count, "due", e.due)
}

// RecordWrite pushes the due time of a pending path out. Writes to paths
// that are not pending are ignored.
func (et *EventTracker) RecordWrite(name string) {
	et.mu.Lock()
	defer et.mu.Unlock()

	e, ok := et.pending[name]
	if !ok {
		return
	}
	et.extend(e, et.now())
}

// extend never moves due past first+maxSettle so a file that is written
// continuously is still dispatched.
func (et *EventTracker) extend(e *entry, now time.Time) {
	due := now.Add(et.settle)
	if limit := e.first.Add(et.maxSettle); due.After(limit) {
		due = limit
	}
	if due.After(e.due) {
		e.due = due
	}
}

// PopDue removes every entry due at or before now and returns its path once
// per recorded creation, earliest first.
func (et *EventTracker) PopDue(now time.Time) []string {
	et.mu.Lock()
	defer et.mu.Unlock()

	type due struct {
		name string
		e    *entry
	}
	var ready []due
	for name, e := range et.pending {
		if !e.due.After(now) {
			ready = append(ready, due{name, e})
			delete(et.pending, name)
		}
	}
	if len(ready) == 0 {
		return nil
	}

	sort.Slice(ready, func(i, j int) bool {
		if ready[i].e.due.Equal(ready[j].e.due) {
			return ready[i].name < ready[j].name
		}
		return ready[i].e.due.Before(ready[j].e.due)
	})

	var out []string
	for _, r := range ready {
		for range r.e.count {
			out = append(out, r.name)
		}
	}
	return out
}

// Pending returns the number of creations waiting to settle.
func (et *EventTracker) Pending() int {
	et.mu.Lock()
	defer et.mu.Unlock()
	n := 0
	for _, e := range et.pending {
		n += e.count
	}
	return n
}

// Len returns the number of distinct pending paths.
func (et *EventTracker) Len() int {
	et.mu.Lock()
	defer et.mu.Unlock()
	return len(et.pending)
}

// GetSnapshot returns a copy of the pending due times.
func (et *EventTracker) GetSnapshot() map[string]time.Time {
	et.mu.Lock()
	defer et.mu.Unlock()

	snapshot := make(map[string]time.Time, len(et.pending))
	for name, e := range et.pending {
		snapshot[name] = e.due
	}
	return snapshot
}

// Drain drops everything pending and returns the number of creations lost.
func (et *EventTracker) Drain() int {
	et.mu.Lock()
	defer et.mu.Unlock()
	n := 0
	for _, e := range et.pending {
		n += e.count
	}
	et.pending = make(map[string]*entry)
	return n
}
