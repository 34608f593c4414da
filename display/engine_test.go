package display

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kaireichart/vor-nav-display/update"
)

type recordingObserver struct {
	mu          sync.Mutex
	transitions []Transition
}

func (r *recordingObserver) ModeChanged(tr Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, tr)
}

func (r *recordingObserver) all() []Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transition(nil), r.transitions...)
}

func startEngine(t *testing.T, obs Observer) (*Engine, <-chan View) {
	t.Helper()
	views := make(chan View, 256)
	e := NewEngine(PublisherFunc(func(v View) { views <- v }), obs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e, views
}

func next(t *testing.T, views <-chan View) View {
	t.Helper()
	select {
	case v := <-views:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a published view")
	}
	return View{}
}

func TestEnginePublishesInitialView(t *testing.T) {
	_, views := startEngine(t, nil)
	if v := next(t, views); v.Mode != NoOrigin {
		t.Errorf("expected NoOrigin, got %v", v.Mode)
	}
}

func TestEngineAppliesEventsInOrder(t *testing.T) {
	obs := &recordingObserver{}
	e, views := startEngine(t, obs)
	ctx := context.Background()
	next(t, views)

	if err := e.PickOrigin(ctx, update.Coordinate{Lat: 5, Lon: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Update(ctx, update.StateUpdate{Location: loc(5.1, 5.1), Stations: stations("A", "B")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v := next(t, views)
	if v.Mode != SearchingFromOrigin || len(v.Stations) != 0 {
		t.Errorf("origin pick should publish an empty searching view, got %v with %d stations", v.Mode, len(v.Stations))
	}
	v = next(t, views)
	if v.Mode != LocationAcquired || len(v.Stations) != 2 {
		t.Errorf("expected acquired view with 2 stations, got %v with %d", v.Mode, len(v.Stations))
	}

	if snap := e.Snapshot(); snap.Seq != v.Seq {
		t.Errorf("snapshot should be the latest view, got seq %d want %d", snap.Seq, v.Seq)
	}

	trs := obs.all()
	if len(trs) != 2 {
		t.Fatalf("expected 2 transitions, got %d", len(trs))
	}
	if trs[0].From != NoOrigin || trs[0].To != SearchingFromOrigin || trs[0].Cause != "origin_picked" {
		t.Errorf("unexpected first transition %+v", trs[0])
	}
	if trs[1].To != LocationAcquired || trs[1].Cause != "state_update" {
		t.Errorf("unexpected second transition %+v", trs[1])
	}
}

func TestEngineConcurrentWriters(t *testing.T) {
	e, views := startEngine(t, nil)
	ctx := context.Background()
	next(t, views)

	const updates, picks = 100, 10
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < updates; i++ {
			e.Update(ctx, update.StateUpdate{Location: loc(float64(i), 0), Stations: stations("A", "B")})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < picks; i++ {
			e.PickOrigin(ctx, update.Coordinate{Lat: float64(i), Lon: 1})
		}
	}()
	wg.Wait()

	var last View
	for i := 0; i < updates+picks; i++ {
		v := next(t, views)
		if v.Seq <= last.Seq {
			t.Fatalf("views out of order: %d after %d", v.Seq, last.Seq)
		}
		last = v
	}
	if len(last.History) > updates {
		t.Errorf("history longer than the number of fixes: %d", len(last.History))
	}
}

func TestEngineEnqueueHonoursContext(t *testing.T) {
	// Not running: the queue fills and the next call must give up.
	e := NewEngine(nil, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	var err error
	for i := 0; i <= queueSize && err == nil; i++ {
		err = e.Update(ctx, update.StateUpdate{})
	}
	if err == nil {
		t.Fatal("expected an error once the queue is full and the context expires")
	}
}
