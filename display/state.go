package display

import (
	"slices"
	"strconv"

	"github.com/kaireichart/vor-nav-display/update"
)

// State is the application state. It has no locking of its own: the
// Engine owns it and is the only caller of its mutating methods.
type State struct {
	mode     Mode
	origin   *update.Coordinate
	location *update.Coordinate
	stations []update.Station
	history  []update.Coordinate

	insufficientCoverage bool
	seq                  uint64
}

func NewState() *State {
	return &State{mode: NoOrigin}
}

func (s *State) Mode() Mode { return s.mode }

func (s *State) HistoryLen() int { return len(s.history) }

// OnStateUpdate replaces stations and location with those of u, extends
// the history and recomputes the mode.
func (s *State) OnStateUpdate(u update.StateUpdate) View {
	s.stations = make([]update.Station, len(u.Stations))
	for i, st := range u.Stations {
		s.stations[i] = cloneStation(st)
	}

	s.location = nil
	if u.Location != nil {
		loc := *u.Location
		s.location = &loc
		s.history = append(s.history, loc)
	}

	switch {
	case s.location != nil:
		s.mode = LocationAcquired
	case s.origin == nil:
		s.mode = NoOrigin
	case s.mode == LocationAcquired, s.mode == LocationLost:
		// Lost sticks until a fix returns or a new origin is picked.
		s.mode = LocationLost
	default:
		s.mode = SearchingFromOrigin
	}

	s.insufficientCoverage = len(s.stations) <= 1

	return s.View()
}

// OnOriginPicked starts a new origin session: everything learned from the
// previous origin is dropped.
func (s *State) OnOriginPicked(c update.Coordinate) View {
	s.origin = &c
	s.stations = []update.Station{}
	s.location = nil
	s.history = nil
	s.insufficientCoverage = false
	s.mode = SearchingFromOrigin

	return s.View()
}

// View builds a snapshot that shares no memory with s.
func (s *State) View() View {
	s.seq++
	v := View{
		Seq:                  s.seq,
		Mode:                 s.mode,
		Origin:               cloneCoord(s.origin),
		Location:             cloneCoord(s.location),
		Stations:             make([]StationRow, len(s.stations)),
		History:              slices.Clone(s.history),
		InsufficientCoverage: s.insufficientCoverage,
	}
	if v.History == nil {
		v.History = []update.Coordinate{}
	}
	v.NeedsOrigin = s.mode == NoOrigin || s.insufficientCoverage
	v.Status = statusText(s.mode, s.insufficientCoverage)

	for i, st := range s.stations {
		v.Stations[i] = StationRow{
			Station:      cloneStation(st),
			BearingText:  formatOptional(st.Bearing, 1),
			DistanceText: formatOptional(st.Distance, 1),
		}
	}
	return v
}

func statusText(m Mode, insufficient bool) string {
	if insufficient {
		return "Not enough stations in range, pick a new origin"
	}
	switch m {
	case NoOrigin:
		return "Pick an origin on the map"
	case SearchingFromOrigin:
		return "Searching for position"
	case LocationAcquired:
		return "Position acquired"
	case LocationLost:
		return "Position lost"
	}
	return ""
}

func formatOptional(v *float64, prec int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}

func cloneCoord(c *update.Coordinate) *update.Coordinate {
	if c == nil {
		return nil
	}
	cc := *c
	return &cc
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	ff := *f
	return &ff
}

func cloneStation(st update.Station) update.Station {
	st.Bearing = cloneFloat(st.Bearing)
	st.Distance = cloneFloat(st.Distance)
	st.BearingTime = cloneFloat(st.BearingTime)
	if st.Identified != nil {
		id := *st.Identified
		st.Identified = &id
	}
	return st
}
