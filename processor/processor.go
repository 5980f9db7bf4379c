// Package processor runs dispatches on a fixed number of workers fed from
// a bounded queue.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Dispatcher starts the work for one path. The returned channel, if any,
// is closed when that work has finished.
type Dispatcher interface {
	Dispatch(path string) (<-chan struct{}, error)
}

// Overflow selects what Enqueue does when the queue is full.
type Overflow string

const (
	OverflowBlock      Overflow = "block"
	OverflowDropOldest Overflow = "drop-oldest"
)

func ParseOverflow(s string) (Overflow, error) {
	switch o := Overflow(strings.ToLower(strings.TrimSpace(s))); o {
	case "":
		return OverflowBlock, nil
	case OverflowBlock, OverflowDropOldest:
		return o, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q (allowed: block, drop-oldest)", s)
	}
}

type Options struct {
	Workers   int
	QueueSize int
	Overflow  Overflow
	// WaitForExit keeps a worker busy until the dispatched process exits,
	// which bounds the number of live processes by Workers.
	WaitForExit bool
}

type Stats struct {
	Queued     int
	Dispatched uint64
	Failed     uint64
	Dropped    uint64
}

type Pool struct {
	d     Dispatcher
	opts  Options
	queue chan string

	done     chan struct{}
	stopOnce sync.Once
	evict    sync.Mutex

	dispatched atomic.Uint64
	failed     atomic.Uint64
	dropped    atomic.Uint64
}

func NewPool(d Dispatcher, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1
	}
	if opts.Overflow == "" {
		opts.Overflow = OverflowBlock
	}
	return &Pool{
		d:     d,
		opts:  opts,
		queue: make(chan string, opts.QueueSize),
		done:  make(chan struct{}),
	}
}

// Enqueue adds path to the queue. With OverflowBlock it waits for room;
// with OverflowDropOldest it evicts the oldest queued path instead. It
// returns false once the pool has stopped.
func (p *Pool) Enqueue(path string) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	if p.opts.Overflow != OverflowDropOldest {
		select {
		case p.queue <- path:
			return true
		case <-p.done:
			return false
		}
	}

	p.evict.Lock()
	defer p.evict.Unlock()
	for {
		select {
		case p.queue <- path:
			return true
		case <-p.done:
			return false
		default:
		}
		select {
		case old := <-p.queue:
			p.dropped.Add(1)
			slog.Warn("Dispatch queue full, dropped oldest", "file", old)
		default:
		}
	}
}

// Run starts the workers and blocks until ctx is cancelled. Paths still
// queued at that point are discarded.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.opts.Workers; i++ {
		g.Go(func() error {
			p.worker(gctx)
			return nil
		})
	}

	<-ctx.Done()
	p.stop()
	err := g.Wait()

	if n := len(p.queue); n > 0 {
		slog.Info("Discarded queued dispatches", "count", n)
	}
	return err
}

func (p *Pool) stop() {
	p.stopOnce.Do(func() { close(p.done) })
}

func (p *Pool) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case file := <-p.queue:
			if ctx.Err() != nil {
				return
			}
			p.process(ctx, file)
		}
	}
}

func (p *Pool) process(ctx context.Context, file string) {
	defer func() {
		if r := recover(); r != nil {
			p.failed.Add(1)
			slog.Error("Recovered from panic during dispatch", "file", file, "panic", r)
		}
	}()

	exited, err := p.d.Dispatch(file)
	if err != nil {
		p.failed.Add(1)
		slog.Error("Dispatch failed", "file", file, "error", err)
		return
	}
	p.dispatched.Add(1)

	if p.opts.WaitForExit && exited != nil {
		select {
		case <-exited:
		case <-ctx.Done():
		}
	}
}

func (p *Pool) Stats() Stats {
	return Stats{
		Queued:     len(p.queue),
		Dispatched: p.dispatched.Load(),
		Failed:     p.failed.Load(),
		Dropped:    p.dropped.Load(),
	}
}
