package origin

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/kaireichart/vor-nav-display/log"
	"github.com/kaireichart/vor-nav-display/update"
)

// Sink receives origin changes; display.Engine implements it.
type Sink interface {
	PickOrigin(ctx context.Context, c update.Coordinate) error
}

// Resolver looks up a station coordinate by ident or name.
type Resolver interface {
	Resolve(query string) (update.Coordinate, error)
}

// Reporter is told about every pick and every failed write.
type Reporter interface {
	OriginPicked(c update.Coordinate, writeErr error)
}

type flusher interface {
	Flush() error
}

// Picker is the outbound half of the producer protocol: one
// "<lat> <lon>\n" line per picked origin, flushed at once. Nothing is
// read back; the next inbound update confirms receipt.
type Picker struct {
	sink     Sink
	resolver Resolver
	reporter Reporter
	lg       *log.Logger

	// mu serialises the apply-then-write pair of every pick.
	mu sync.Mutex
	w  io.Writer
}

func NewPicker(sink Sink, w io.Writer, lg *log.Logger) *Picker {
	return &Picker{sink: sink, w: w, lg: lg}
}

// WithResolver enables PickStation.
func (p *Picker) WithResolver(r Resolver) *Picker {
	p.resolver = r
	return p
}

func (p *Picker) WithReporter(r Reporter) *Picker {
	p.reporter = r
	return p
}

// Pick applies c locally and then tells the producer about it. The local
// change is queued first so that no update computed for the new origin
// can overtake it. Both steps happen under one lock, so the engine and
// the producer see concurrent picks in the same order. A write error
// leaves the local origin applied.
func (p *Picker) Pick(ctx context.Context, c update.Coordinate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.sink.PickOrigin(ctx, c); err != nil {
		return fmt.Errorf("apply origin: %w", err)
	}

	err := p.writeLine(c)
	if err != nil {
		p.lg.Error("producer did not receive new origin", "lat", c.Lat, "lon", c.Lon, "error", err)
	}
	if p.reporter != nil {
		p.reporter.OriginPicked(c, err)
	}
	return err
}

// PickStation picks the coordinate of the first catalog station whose
// ident or name matches query.
func (p *Picker) PickStation(ctx context.Context, query string) (update.Coordinate, error) {
	if p.resolver == nil {
		return update.Coordinate{}, fmt.Errorf("pick station %q: no station catalog loaded", query)
	}
	c, err := p.resolver.Resolve(query)
	if err != nil {
		return update.Coordinate{}, fmt.Errorf("pick station %q: %w", query, err)
	}
	return c, p.Pick(ctx, c)
}

// writeLine must be called with p.mu held.
func (p *Picker) writeLine(c update.Coordinate) error {
	if _, err := io.WriteString(p.w, c.String()+"\n"); err != nil {
		return fmt.Errorf("write origin: %w", err)
	}
	if f, ok := p.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush origin: %w", err)
		}
	}
	return nil
}
