package indicator

import (
	"sync"
	"testing"
	"time"
)

type fakeTicker struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.c }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

type tickers struct {
	mu  sync.Mutex
	all []*fakeTicker
}

func (ts *tickers) new(time.Duration) Ticker {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ft := &fakeTicker{c: make(chan time.Time)}
	ts.all = append(ts.all, ft)
	return ft
}

func (ts *tickers) count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.all)
}

type change struct {
	target string
	on     bool
}

type recorder struct {
	ch chan change
}

func (r recorder) Indicate(target string, on bool) { r.ch <- change{target, on} }

func expect(t *testing.T, ch <-chan change, want change) {
	t.Helper()
	select {
	case got := <-ch:
		if got != want {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %+v", want)
	}
}

func TestStartFlashingIsIdempotent(t *testing.T) {
	ts := &tickers{}
	rec := recorder{ch: make(chan change, 16)}
	c := NewControllerWithTicker(DefaultInterval, rec, ts.new)
	defer c.Close()

	if !c.StartFlashing(TargetOrigin) {
		t.Fatal("first start should create a schedule")
	}
	if c.StartFlashing(TargetOrigin) {
		t.Fatal("second start should be a no-op")
	}
	if ts.count() != 1 {
		t.Fatalf("expected exactly one ticker, got %d", ts.count())
	}
	if active := c.Active(); len(active) != 1 || active[0] != TargetOrigin {
		t.Fatalf("expected one active target, got %v", active)
	}
}

func TestFlashTogglesAndStopResets(t *testing.T) {
	ts := &tickers{}
	rec := recorder{ch: make(chan change, 16)}
	c := NewControllerWithTicker(DefaultInterval, rec, ts.new)

	c.StartFlashing(TargetStatus)
	ft := ts.all[0]

	ft.c <- time.Now()
	expect(t, rec.ch, change{TargetStatus, true})
	ft.c <- time.Now()
	expect(t, rec.ch, change{TargetStatus, false})
	ft.c <- time.Now()
	expect(t, rec.ch, change{TargetStatus, true})

	c.StopFlashing(TargetStatus)
	expect(t, rec.ch, change{TargetStatus, false})

	if !ft.isStopped() {
		t.Error("ticker should be stopped")
	}
	if len(c.Active()) != 0 {
		t.Error("target should no longer be flashing")
	}

	// Restarting after a stop creates a fresh schedule.
	if !c.StartFlashing(TargetStatus) {
		t.Error("expected a new schedule after stop")
	}
	c.Close()
}

func TestTargetsAreIndependent(t *testing.T) {
	ts := &tickers{}
	rec := recorder{ch: make(chan change, 16)}
	c := NewControllerWithTicker(DefaultInterval, rec, ts.new)
	defer c.Close()

	c.StartFlashing(TargetOrigin)
	c.StartFlashing(TargetStatus)
	origin, status := ts.all[0], ts.all[1]

	c.StopFlashing(TargetOrigin)
	expect(t, rec.ch, change{TargetOrigin, false})

	status.c <- time.Now()
	expect(t, rec.ch, change{TargetStatus, true})

	if !origin.isStopped() || status.isStopped() {
		t.Error("stopping one target must not affect the other")
	}
}

func TestStopUnknownTargetIsNoop(t *testing.T) {
	rec := recorder{ch: make(chan change, 1)}
	c := NewController(time.Hour, rec)
	c.StopFlashing("nothing")
	select {
	case ch := <-rec.ch:
		t.Fatalf("unexpected indication %+v", ch)
	default:
	}
}

func TestRealTickerFlashes(t *testing.T) {
	rec := recorder{ch: make(chan change, 64)}
	c := NewController(5*time.Millisecond, rec)
	c.StartFlashing(TargetOrigin)
	expect(t, rec.ch, change{TargetOrigin, true})
	c.Close()
	if len(c.Active()) != 0 {
		t.Error("close should stop everything")
	}
}
