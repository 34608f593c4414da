package events

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kaireichart/vor-nav-display/display"
	"github.com/kaireichart/vor-nav-display/log"
	"github.com/kaireichart/vor-nav-display/update"
)

// recent is how many events List returns.
const recent = 50

// Journal keeps operator-relevant events in memory and appends them to a
// per-session log file.
type Journal struct {
	mu      sync.Mutex
	events  []Event
	logFile *os.File
	lg      *log.Logger
	now     func() time.Time
}

// Open starts a journal. With an empty dir nothing is written to disk.
func Open(dir string, lg *log.Logger) (*Journal, error) {
	j := &Journal{lg: lg, now: time.Now}
	if dir == "" {
		return j, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create events directory: %w", err)
	}

	timestamp := j.now().Format("2006-01-02_15-04-05")
	logPath := filepath.Join(dir, fmt.Sprintf("events_%s.log", timestamp))

	var err error
	j.logFile, err = os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}

	fmt.Fprintf(j.logFile, "=== Event Log Started at %s ===\n", j.now().Format("2006-01-02 15:04:05"))
	return j, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.logFile == nil {
		return nil
	}
	err := j.logFile.Close()
	j.logFile = nil
	return err
}

// Record appends e, filling in the timestamp if it is zero.
func (j *Journal) Record(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = j.now()
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
	if len(j.events) > 4*recent {
		j.events = slices.Clone(j.events[len(j.events)-recent:])
	}

	if j.logFile == nil {
		return
	}

	// Format: [timestamp] EVENT_TYPE source: detail
	logLine := fmt.Sprintf("[%s] %s %s", e.Timestamp.Format("2006-01-02 15:04:05"),
		strings.ToUpper(e.Type), e.Source)
	if e.Detail != "" {
		logLine += ": " + e.Detail
	}
	if _, err := j.logFile.WriteString(logLine + "\n"); err != nil {
		j.lg.Warnf("failed to write to events file: %v", err)
	}
}

// List returns the most recent events, oldest first.
func (j *Journal) List() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	start := 0
	if len(j.events) > recent {
		start = len(j.events) - recent
	}
	return slices.Clone(j.events[start:])
}

// Newest returns the most recent events, newest first.
func (j *Journal) Newest() []Event {
	ev := j.List()
	slices.Reverse(ev)
	return ev
}

// ModeChanged implements display.Observer.
func (j *Journal) ModeChanged(t display.Transition) {
	j.Record(Event{
		Type:   TypeModeChanged,
		Source: t.Cause,
		Detail: t.From.String() + " -> " + t.To.String(),
	})
}

// OriginPicked implements origin.Reporter.
func (j *Journal) OriginPicked(c update.Coordinate, writeErr error) {
	if writeErr != nil {
		j.Record(Event{Type: TypeOriginFailed, Source: "picker", Detail: c.String() + ": " + writeErr.Error()})
		return
	}
	j.Record(Event{Type: TypeOriginPicked, Source: "picker", Detail: c.String()})
}

func (j *Journal) DecodeFailed(err error) {
	j.Record(Event{Type: TypeDecodeFailed, Source: "reader", Detail: err.Error()})
}

func (j *Journal) FrameDropped(err error) {
	j.Record(Event{Type: TypeFrameDropped, Source: "reader", Detail: err.Error()})
}

// ProducerStarted and ProducerExited implement producer.Observer.
func (j *Journal) ProducerStarted(command string) {
	j.Record(Event{Type: TypeProducerStart, Source: "producer", Detail: command})
}

func (j *Journal) ProducerExited(err error) {
	e := Event{Type: TypeProducerExited, Source: "producer"}
	if err != nil {
		e.Detail = err.Error()
	}
	j.Record(e)
}

func (j *Journal) InputClosed() {
	j.Record(Event{Type: TypeInputClosed, Source: "reader"})
}
