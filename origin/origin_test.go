package origin

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kaireichart/vor-nav-display/update"
)

type fakeSink struct {
	mu     sync.Mutex
	picked []update.Coordinate
	err    error
}

func (s *fakeSink) PickOrigin(_ context.Context, c update.Coordinate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.picked = append(s.picked, c)
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

type fakeResolver map[string]update.Coordinate

func (r fakeResolver) Resolve(q string) (update.Coordinate, error) {
	c, ok := r[q]
	if !ok {
		return update.Coordinate{}, errors.New("not found")
	}
	return c, nil
}

type recordingReporter struct {
	picks int
	errs  int
}

func (r *recordingReporter) OriginPicked(_ update.Coordinate, err error) {
	r.picks++
	if err != nil {
		r.errs++
	}
}

func TestPickWritesExactlyOneLine(t *testing.T) {
	sink := &fakeSink{}
	var out bytes.Buffer
	p := NewPicker(sink, &out, nil)

	if err := p.Pick(context.Background(), update.Coordinate{Lat: 5, Lon: 5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if out.String() != "5 5\n" {
		t.Errorf("expected %q, got %q", "5 5\n", out.String())
	}
	if len(sink.picked) != 1 || sink.picked[0] != (update.Coordinate{Lat: 5, Lon: 5}) {
		t.Errorf("expected the origin to be applied once, got %v", sink.picked)
	}
}

func TestPickFlushesBufferedWriter(t *testing.T) {
	var out bytes.Buffer
	bw := bufio.NewWriterSize(&out, 4096)
	p := NewPicker(&fakeSink{}, bw, nil)

	if err := p.Pick(context.Background(), update.Coordinate{Lat: 32.6, Lon: -117.25}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.String() != "32.6 -117.25\n" {
		t.Errorf("expected the line to be flushed, got %q", out.String())
	}
}

func TestPickWriteFailureKeepsLocalOrigin(t *testing.T) {
	sink := &fakeSink{}
	rep := &recordingReporter{}
	p := NewPicker(sink, failingWriter{}, nil).WithReporter(rep)

	err := p.Pick(context.Background(), update.Coordinate{Lat: 1, Lon: 2})
	if err == nil {
		t.Fatal("expected the write error to be returned")
	}
	if len(sink.picked) != 1 {
		t.Errorf("origin should still be applied locally, got %v", sink.picked)
	}
	if rep.picks != 1 || rep.errs != 1 {
		t.Errorf("expected one reported pick with an error, got %+v", rep)
	}
}

func TestPickSinkFailureWritesNothing(t *testing.T) {
	var out bytes.Buffer
	p := NewPicker(&fakeSink{err: context.Canceled}, &out, nil)

	if err := p.Pick(context.Background(), update.Coordinate{Lat: 1, Lon: 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be written when the origin was not applied, got %q", out.String())
	}
}

func TestConcurrentPicksProduceWholeLines(t *testing.T) {
	var out bytes.Buffer
	p := NewPicker(&fakeSink{}, &out, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Pick(context.Background(), update.Coordinate{Lat: float64(i), Lon: -float64(i)})
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if len(lines) != 50 {
		t.Fatalf("expected 50 lines, got %d", len(lines))
	}
	for _, l := range lines {
		if len(strings.Fields(l)) != 2 {
			t.Errorf("interleaved line %q", l)
		}
	}
}

func TestPickStation(t *testing.T) {
	var out bytes.Buffer
	p := NewPicker(&fakeSink{}, &out, nil).WithResolver(fakeResolver{"BGN": {Lat: 32, Lon: 34.875}})

	c, err := p.PickStation(context.Background(), "BGN")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c != (update.Coordinate{Lat: 32, Lon: 34.875}) {
		t.Errorf("unexpected coordinate %+v", c)
	}
	if out.String() != "32 34.875\n" {
		t.Errorf("unexpected output %q", out.String())
	}

	if _, err := p.PickStation(context.Background(), "XXX"); err == nil {
		t.Error("expected an error for an unknown station")
	}

	noCatalog := NewPicker(&fakeSink{}, &out, nil)
	if _, err := noCatalog.PickStation(context.Background(), "BGN"); err == nil {
		t.Error("expected an error without a catalog")
	}
}

// stallingSink holds the first pick inside PickOrigin until released.
type stallingSink struct {
	fakeSink
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *stallingSink) PickOrigin(ctx context.Context, c update.Coordinate) error {
	if err := s.fakeSink.PickOrigin(ctx, c); err != nil {
		return err
	}
	first := false
	s.once.Do(func() { first = true })
	if first {
		close(s.entered)
		<-s.release
	}
	return nil
}

func TestConcurrentPicksKeepEngineAndWireOrder(t *testing.T) {
	sink := &stallingSink{entered: make(chan struct{}), release: make(chan struct{})}
	var out bytes.Buffer
	p := NewPicker(sink, &out, nil)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.Pick(context.Background(), update.Coordinate{Lat: 1, Lon: 1})
	}()
	<-sink.entered
	go func() {
		defer wg.Done()
		p.Pick(context.Background(), update.Coordinate{Lat: 2, Lon: 2})
	}()
	// Give the second pick time to race ahead of the stalled first one.
	time.Sleep(50 * time.Millisecond)
	close(sink.release)
	wg.Wait()

	var engine []string
	for _, c := range sink.picked {
		engine = append(engine, c.String())
	}
	wire := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	if strings.Join(engine, "|") != strings.Join(wire, "|") {
		t.Errorf("engine order %q differs from wire order %q", engine, wire)
	}
	if len(wire) != 2 || wire[0] != "1 1" {
		t.Errorf("expected the stalled pick to be written first, got %q", wire)
	}
}
