package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []string
	live    int
	maxLive int
	hold    bool
	release chan struct{}
}

func newFakeDispatcher(hold bool) *fakeDispatcher {
	return &fakeDispatcher{hold: hold, release: make(chan struct{})}
}

func (f *fakeDispatcher) Dispatch(path string) (<-chan struct{}, error) {
	switch path {
	case "bad":
		return nil, errors.New("spawn failed")
	case "panic":
		panic("dispatch exploded")
	}

	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.live++
	if f.live > f.maxLive {
		f.maxLive = f.live
	}
	f.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if f.hold {
			<-f.release
		}
		f.mu.Lock()
		f.live--
		f.mu.Unlock()
		close(done)
	}()
	return done, nil
}

func (f *fakeDispatcher) snapshot() ([]string, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...), f.maxLive
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func startPool(t *testing.T, p *Pool) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		if err := p.Run(ctx); err != nil {
			t.Errorf("Run returned error: %v", err)
		}
		close(done)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Error("pool did not stop")
		}
	}
}

func TestPool_DispatchesEveryPath(t *testing.T) {
	d := newFakeDispatcher(false)
	p := NewPool(d, Options{Workers: 2, QueueSize: 8, WaitForExit: true})
	cancel := startPool(t, p)
	defer cancel()

	for _, f := range []string{"a", "b", "c", "a"} {
		if !p.Enqueue(f) {
			t.Fatalf("Enqueue(%s) rejected", f)
		}
	}
	eventually(t, func() bool { return p.Stats().Dispatched == 4 }, "expected 4 dispatches")

	calls, _ := d.snapshot()
	counts := map[string]int{}
	for _, c := range calls {
		counts[c]++
	}
	if counts["a"] != 2 || counts["b"] != 1 || counts["c"] != 1 {
		t.Errorf("unexpected dispatch counts: %v", counts)
	}
}

func TestPool_ContainsFailuresAndPanics(t *testing.T) {
	d := newFakeDispatcher(false)
	p := NewPool(d, Options{Workers: 1, QueueSize: 8})
	cancel := startPool(t, p)
	defer cancel()

	for _, f := range []string{"bad", "panic", "good"} {
		p.Enqueue(f)
	}
	eventually(t, func() bool {
		s := p.Stats()
		return s.Dispatched == 1 && s.Failed == 2
	}, "expected one dispatch and two failures")
}

func TestPool_WaitForExitBoundsLiveProcesses(t *testing.T) {
	d := newFakeDispatcher(true)
	p := NewPool(d, Options{Workers: 2, QueueSize: 8, WaitForExit: true})
	cancel := startPool(t, p)
	defer cancel()

	for _, f := range []string{"1", "2", "3", "4", "5"} {
		p.Enqueue(f)
	}
	eventually(t, func() bool { return p.Stats().Dispatched == 2 }, "expected two dispatches")

	time.Sleep(50 * time.Millisecond)
	if got := p.Stats().Dispatched; got != 2 {
		t.Fatalf("expected workers to wait for exit, dispatched=%d", got)
	}

	close(d.release)
	eventually(t, func() bool { return p.Stats().Dispatched == 5 }, "expected all dispatches after release")

	if _, maxLive := d.snapshot(); maxLive > 2 {
		t.Errorf("max live processes %d exceeds worker count", maxLive)
	}
}

func TestPool_FireAndForgetWithoutWait(t *testing.T) {
	d := newFakeDispatcher(true)
	defer close(d.release)
	p := NewPool(d, Options{Workers: 1, QueueSize: 8, WaitForExit: false})
	cancel := startPool(t, p)
	defer cancel()

	for _, f := range []string{"1", "2", "3"} {
		p.Enqueue(f)
	}
	eventually(t, func() bool { return p.Stats().Dispatched == 3 }, "expected dispatches not to wait for exit")
}

func TestPool_DropOldest(t *testing.T) {
	d := newFakeDispatcher(false)
	p := NewPool(d, Options{Workers: 1, QueueSize: 2, Overflow: OverflowDropOldest})

	for _, f := range []string{"a", "b", "c"} {
		if !p.Enqueue(f) {
			t.Fatalf("Enqueue(%s) rejected", f)
		}
	}
	if s := p.Stats(); s.Dropped != 1 || s.Queued != 2 {
		t.Fatalf("unexpected stats after overflow: %+v", s)
	}

	cancel := startPool(t, p)
	defer cancel()
	eventually(t, func() bool { return p.Stats().Dispatched == 2 }, "expected remaining paths dispatched")

	calls, _ := d.snapshot()
	if len(calls) != 2 || calls[0] != "b" || calls[1] != "c" {
		t.Errorf("expected oldest entry to be evicted, got %v", calls)
	}
}

func TestPool_BlockedEnqueueReleasedOnStop(t *testing.T) {
	d := newFakeDispatcher(true)
	defer close(d.release)
	p := NewPool(d, Options{Workers: 1, QueueSize: 1, WaitForExit: true})
	cancel := startPool(t, p)

	p.Enqueue("held")
	eventually(t, func() bool { return p.Stats().Dispatched == 1 }, "expected first dispatch")
	p.Enqueue("queued")

	result := make(chan bool)
	go func() { result <- p.Enqueue("blocked") }()

	select {
	case <-result:
		t.Fatal("Enqueue should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	select {
	case <-result:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked Enqueue was not released")
	}
	if p.Enqueue("late") {
		t.Error("expected Enqueue to fail after stop")
	}
}

func TestParseOverflow(t *testing.T) {
	for in, want := range map[string]Overflow{"": OverflowBlock, "BLOCK": OverflowBlock, "drop-oldest": OverflowDropOldest} {
		got, err := ParseOverflow(in)
		if err != nil || got != want {
			t.Errorf("ParseOverflow(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseOverflow("drop-newest"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestNewPool_Defaults(t *testing.T) {
	p := NewPool(newFakeDispatcher(false), Options{})
	if p.opts.Workers != 1 || p.opts.QueueSize != 1 || p.opts.Overflow != OverflowBlock {
		t.Errorf("unexpected defaults: %+v", p.opts)
	}
}
