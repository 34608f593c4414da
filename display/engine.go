package display

import (
	"context"
	"sync/atomic"

	"github.com/kaireichart/vor-nav-display/log"
	"github.com/kaireichart/vor-nav-display/update"
)

const queueSize = 64

type event struct {
	update *update.StateUpdate
	origin *update.Coordinate
}

// Engine serializes every mutation of the application state through one
// queue. The read worker calls Update, the interaction side calls
// PickOrigin, and only Run touches the State.
type Engine struct {
	state  *State
	events chan event
	pub    Publisher
	obs    Observer
	lg     *log.Logger
	latest atomic.Pointer[View]
}

// NewEngine returns an engine in mode NoOrigin. obs may be nil.
func NewEngine(pub Publisher, obs Observer, lg *log.Logger) *Engine {
	e := &Engine{
		state:  NewState(),
		events: make(chan event, queueSize),
		pub:    pub,
		obs:    obs,
		lg:     lg,
	}
	v := e.state.View()
	e.latest.Store(&v)
	return e
}

// Update queues a decoded state update. It blocks while the queue is full.
func (e *Engine) Update(ctx context.Context, u update.StateUpdate) error {
	return e.enqueue(ctx, event{update: &u})
}

// PickOrigin queues an origin change.
func (e *Engine) PickOrigin(ctx context.Context, c update.Coordinate) error {
	return e.enqueue(ctx, event{origin: &c})
}

func (e *Engine) enqueue(ctx context.Context, ev event) error {
	select {
	case e.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the most recently published view.
func (e *Engine) Snapshot() View {
	return *e.latest.Load()
}

// Run applies queued events until ctx is done. It publishes the initial
// view first so a renderer attached before any input shows NoOrigin.
func (e *Engine) Run(ctx context.Context) error {
	e.publish(e.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-e.events:
			e.apply(ev)
		}
	}
}

func (e *Engine) apply(ev event) {
	from := e.state.Mode()

	var v View
	var cause string
	switch {
	case ev.origin != nil:
		v = e.state.OnOriginPicked(*ev.origin)
		cause = "origin_picked"
		e.lg.Info("origin picked", "lat", ev.origin.Lat, "lon", ev.origin.Lon)
	case ev.update != nil:
		v = e.state.OnStateUpdate(*ev.update)
		cause = "state_update"
		e.lg.Debug("state update applied", "stations", len(v.Stations),
			"has_location", v.Location != nil, "history", len(v.History))
	default:
		return
	}

	if v.Mode != from {
		e.lg.Info("mode changed", "from", from, "to", v.Mode, "cause", cause)
		if e.obs != nil {
			e.obs.ModeChanged(Transition{From: from, To: v.Mode, Cause: cause})
		}
	}

	e.publish(v)
}

func (e *Engine) publish(v View) {
	e.latest.Store(&v)
	if e.pub != nil {
		e.pub.Publish(v)
	}
}
