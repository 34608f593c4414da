package display

import (
	"strconv"

	"github.com/kaireichart/vor-nav-display/update"
)

// Mode is the single source of truth for what the operator is looking at.
type Mode int

const (
	NoOrigin Mode = iota
	SearchingFromOrigin
	LocationAcquired
	LocationLost
)

func (m Mode) String() string {
	switch m {
	case NoOrigin:
		return "no_origin"
	case SearchingFromOrigin:
		return "searching_from_origin"
	case LocationAcquired:
		return "location_acquired"
	case LocationLost:
		return "location_lost"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// StationRow is a station prepared for the table: the raw optionals plus
// display strings that stay empty while a value is unresolved.
type StationRow struct {
	update.Station
	BearingText  string `json:"bearing_text"`
	DistanceText string `json:"distance_text"`
}

// View is the read-only snapshot handed to the renderer. Nothing in it is
// shared with the live state.
type View struct {
	Seq      uint64              `json:"seq"`
	Mode     Mode                `json:"mode"`
	Status   string              `json:"status"`
	Origin   *update.Coordinate  `json:"origin"`
	Location *update.Coordinate  `json:"location"`
	Stations []StationRow        `json:"stations"`
	History  []update.Coordinate `json:"history"`

	// InsufficientCoverage overlays the mode when at most one station is
	// in range.
	InsufficientCoverage bool `json:"insufficient_coverage"`
	// NeedsOrigin is true whenever the operator should pick a (new)
	// origin.
	NeedsOrigin bool `json:"needs_origin"`
}

// Publisher receives every view the engine produces. Implementations must
// hand the view off to the renderer's own goroutine and return quickly.
type Publisher interface {
	Publish(View)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(View)

func (f PublisherFunc) Publish(v View) { f(v) }

// Transition describes a mode change, reported to an Observer.
type Transition struct {
	From, To Mode
	Cause    string
}

type Observer interface {
	ModeChanged(Transition)
}
