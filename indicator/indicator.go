package indicator

import (
	"slices"
	"sync"
	"time"
)

// DefaultInterval is how long each on/off phase lasts.
const DefaultInterval = 800 * time.Millisecond

// Well-known targets flashed by the renderer.
const (
	TargetOrigin = "origin"
	TargetStatus = "status"
)

// Ticker delivers periodic ticks until stopped. It matches the subset of
// time.Ticker the controller needs so tests can drive it by hand.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker { return realTicker{time.NewTicker(d)} }

// Sink receives every visual state change. It is called from the
// flashing goroutines and must not block.
type Sink interface {
	Indicate(target string, on bool)
}

type SinkFunc func(target string, on bool)

func (f SinkFunc) Indicate(target string, on bool) { f(target, on) }

type flash struct {
	stop chan struct{}
	done chan struct{}
}

// Controller flashes any number of independent targets, each with its own
// cancellable repeating ticker.
type Controller struct {
	interval  time.Duration
	newTicker func(time.Duration) Ticker
	sink      Sink

	mu     sync.Mutex
	active map[string]*flash
}

func NewController(interval time.Duration, sink Sink) *Controller {
	return NewControllerWithTicker(interval, sink, NewRealTicker)
}

func NewControllerWithTicker(interval time.Duration, sink Sink, newTicker func(time.Duration) Ticker) *Controller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Controller{
		interval:  interval,
		newTicker: newTicker,
		sink:      sink,
		active:    make(map[string]*flash),
	}
}

// StartFlashing begins toggling target. Calling it for a target that is
// already flashing does nothing; it reports whether a new schedule was
// started.
func (c *Controller) StartFlashing(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.active[target]; ok {
		return false
	}

	f := &flash{stop: make(chan struct{}), done: make(chan struct{})}
	c.active[target] = f
	go c.run(target, f, c.newTicker(c.interval))
	return true
}

// StopFlashing cancels target's schedule and forces it back off. No
// toggle for target is delivered after the final off.
func (c *Controller) StopFlashing(target string) {
	c.mu.Lock()
	f, ok := c.active[target]
	delete(c.active, target)
	c.mu.Unlock()

	if !ok {
		return
	}
	close(f.stop)
	<-f.done
	c.sink.Indicate(target, false)
}

// Active lists the flashing targets in sorted order.
func (c *Controller) Active() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var targets []string
	for t := range c.active {
		targets = append(targets, t)
	}
	slices.Sort(targets)
	return targets
}

// Close stops every target.
func (c *Controller) Close() {
	for _, t := range c.Active() {
		c.StopFlashing(t)
	}
}

func (c *Controller) run(target string, f *flash, tk Ticker) {
	defer close(f.done)
	defer tk.Stop()

	on := false
	for {
		select {
		case <-f.stop:
			return
		case <-tk.C():
			on = !on
			c.sink.Indicate(target, on)
		}
	}
}
