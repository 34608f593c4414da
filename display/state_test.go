package display

import (
	"encoding/json"
	"testing"

	"github.com/kaireichart/vor-nav-display/update"
)

func f(v float64) *float64 { return &v }

func loc(lat, lon float64) *update.Coordinate { return &update.Coordinate{Lat: lat, Lon: lon} }

func stations(ids ...string) []update.Station {
	out := make([]update.Station, len(ids))
	for i, id := range ids {
		out[i] = update.Station{ID: id, Name: id}
	}
	return out
}

func TestInitialState(t *testing.T) {
	s := NewState()
	v := s.View()
	if v.Mode != NoOrigin {
		t.Errorf("expected NoOrigin, got %v", v.Mode)
	}
	if v.Origin != nil || v.Location != nil || len(v.Stations) != 0 || len(v.History) != 0 {
		t.Errorf("expected empty initial view, got %+v", v)
	}
	if v.InsufficientCoverage {
		t.Error("coverage overlay should not be set before any update")
	}
	if !v.NeedsOrigin {
		t.Error("initial view should ask for an origin")
	}
}

func TestScenarioLocationAcquired(t *testing.T) {
	u, err := update.Decode([]byte(`{"location": {"lat": 10.0, "lon": 20.0}, "stations": [{"name":"ALPHA","id":"ALP","frequency":"112.3","bearing":{"value":45},"distance":12.5}]}`))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	s := NewState()
	v := s.OnStateUpdate(u)

	if v.Mode != LocationAcquired {
		t.Errorf("expected LocationAcquired, got %v", v.Mode)
	}
	if len(v.Stations) != 1 {
		t.Fatalf("expected 1 station, got %d", len(v.Stations))
	}
	if v.Stations[0].Bearing == nil || *v.Stations[0].Bearing != 45 {
		t.Errorf("expected bearing 45, got %v", v.Stations[0].Bearing)
	}
	if v.Stations[0].BearingText != "45.0" || v.Stations[0].DistanceText != "12.5" {
		t.Errorf("unexpected display text %q %q", v.Stations[0].BearingText, v.Stations[0].DistanceText)
	}
	if len(v.History) != 1 || v.History[0] != (update.Coordinate{Lat: 10, Lon: 20}) {
		t.Errorf("expected history [(10,20)], got %v", v.History)
	}
	// One station in range.
	if !v.InsufficientCoverage {
		t.Error("expected insufficient coverage with a single station")
	}
}

func TestEmptyUpdateModes(t *testing.T) {
	empty := update.StateUpdate{Stations: []update.Station{}}

	s := NewState()
	if v := s.OnStateUpdate(empty); v.Mode != NoOrigin {
		t.Errorf("without an origin expected NoOrigin, got %v", v.Mode)
	}

	s = NewState()
	s.OnOriginPicked(update.Coordinate{Lat: 1, Lon: 2})
	if v := s.OnStateUpdate(empty); v.Mode != SearchingFromOrigin {
		t.Errorf("with an origin and no prior fix expected SearchingFromOrigin, got %v", v.Mode)
	}

	s.OnStateUpdate(update.StateUpdate{Location: loc(1, 2), Stations: stations("A", "B")})
	if v := s.OnStateUpdate(empty); v.Mode != LocationLost {
		t.Errorf("after losing a fix expected LocationLost, got %v", v.Mode)
	}
}

func TestModeTransitions(t *testing.T) {
	s := NewState()
	steps := []struct {
		name  string
		apply func() View
		want  Mode
	}{
		{"update without origin", func() View { return s.OnStateUpdate(update.StateUpdate{}) }, NoOrigin},
		{"pick origin", func() View { return s.OnOriginPicked(update.Coordinate{Lat: 5, Lon: 5}) }, SearchingFromOrigin},
		{"still searching", func() View { return s.OnStateUpdate(update.StateUpdate{Stations: stations("A", "B")}) }, SearchingFromOrigin},
		{"fix arrives", func() View { return s.OnStateUpdate(update.StateUpdate{Location: loc(5.1, 5.1)}) }, LocationAcquired},
		{"fix drops", func() View { return s.OnStateUpdate(update.StateUpdate{}) }, LocationLost},
		{"still lost", func() View { return s.OnStateUpdate(update.StateUpdate{}) }, LocationLost},
		{"fix reacquired", func() View { return s.OnStateUpdate(update.StateUpdate{Location: loc(5.2, 5.2)}) }, LocationAcquired},
		{"drops again", func() View { return s.OnStateUpdate(update.StateUpdate{}) }, LocationLost},
		{"new origin", func() View { return s.OnOriginPicked(update.Coordinate{Lat: 6, Lon: 6}) }, SearchingFromOrigin},
	}

	for _, step := range steps {
		if v := step.apply(); v.Mode != step.want {
			t.Fatalf("%s: expected %v, got %v", step.name, step.want, v.Mode)
		}
	}
}

func TestUpdateReplacesStationsInOrder(t *testing.T) {
	s := NewState()
	s.OnStateUpdate(update.StateUpdate{Stations: stations("C", "A", "B")})
	v := s.OnStateUpdate(update.StateUpdate{Stations: stations("Z", "Y")})

	if len(v.Stations) != 2 || v.Stations[0].ID != "Z" || v.Stations[1].ID != "Y" {
		t.Errorf("expected [Z Y], got %+v", v.Stations)
	}

	v = s.OnStateUpdate(update.StateUpdate{})
	if len(v.Stations) != 0 {
		t.Errorf("missing stations should empty the list, got %d", len(v.Stations))
	}
}

func TestHistoryGrowsAndResets(t *testing.T) {
	s := NewState()
	const n = 7
	for i := 0; i < n; i++ {
		s.OnStateUpdate(update.StateUpdate{Location: loc(float64(i), 0), Stations: stations("A", "B")})
		// Updates without a fix leave history alone.
		s.OnStateUpdate(update.StateUpdate{Stations: stations("A", "B")})
	}
	if s.HistoryLen() != n {
		t.Fatalf("expected history length %d, got %d", n, s.HistoryLen())
	}

	v := s.OnOriginPicked(update.Coordinate{Lat: 1, Lon: 1})
	if s.HistoryLen() != 0 || len(v.History) != 0 {
		t.Fatalf("expected history reset on origin pick, got %d", s.HistoryLen())
	}
}

func TestOriginPickClearsState(t *testing.T) {
	s := NewState()
	s.OnStateUpdate(update.StateUpdate{Location: loc(10, 20), Stations: stations("A", "B", "C")})

	v := s.OnOriginPicked(update.Coordinate{Lat: 5, Lon: 5})
	if v.Mode != SearchingFromOrigin {
		t.Errorf("expected SearchingFromOrigin, got %v", v.Mode)
	}
	if len(v.Stations) != 0 || v.Location != nil || len(v.History) != 0 {
		t.Errorf("expected cleared view, got %+v", v)
	}
	if v.Origin == nil || *v.Origin != (update.Coordinate{Lat: 5, Lon: 5}) {
		t.Errorf("expected origin (5,5), got %v", v.Origin)
	}
	if v.InsufficientCoverage || v.NeedsOrigin {
		t.Error("a fresh origin should not ask for another one")
	}
}

func TestInsufficientCoverageOverlay(t *testing.T) {
	tests := []struct {
		name     string
		u        update.StateUpdate
		origin   bool
		wantFlag bool
	}{
		{"one station with fix", update.StateUpdate{Location: loc(1, 1), Stations: stations("A")}, true, true},
		{"no stations searching", update.StateUpdate{}, true, true},
		{"two stations", update.StateUpdate{Location: loc(1, 1), Stations: stations("A", "B")}, true, false},
		{"one station no origin", update.StateUpdate{Stations: stations("A")}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			if tt.origin {
				s.OnOriginPicked(update.Coordinate{})
			}
			v := s.OnStateUpdate(tt.u)
			if v.InsufficientCoverage != tt.wantFlag {
				t.Errorf("expected InsufficientCoverage=%v, got %v", tt.wantFlag, v.InsufficientCoverage)
			}
			if tt.wantFlag && !v.NeedsOrigin {
				t.Error("insufficient coverage should ask for a new origin")
			}
		})
	}
}

func TestViewDoesNotAliasState(t *testing.T) {
	s := NewState()
	u := update.StateUpdate{Location: loc(1, 1), Stations: []update.Station{{ID: "A", Bearing: f(10)}}}
	v := s.OnStateUpdate(u)

	*v.Stations[0].Bearing = 99
	v.History[0].Lat = 99
	*u.Stations[0].Bearing = 77

	again := s.View()
	if *again.Stations[0].Bearing != 10 {
		t.Errorf("view mutation leaked into state: bearing %v", *again.Stations[0].Bearing)
	}
	if again.History[0].Lat != 1 {
		t.Errorf("view mutation leaked into history: %v", again.History[0])
	}
	if again.Seq <= v.Seq {
		t.Errorf("expected increasing sequence numbers, got %d then %d", v.Seq, again.Seq)
	}
}

func TestUnresolvedStationText(t *testing.T) {
	s := NewState()
	v := s.OnStateUpdate(update.StateUpdate{Stations: []update.Station{{ID: "A"}, {ID: "B", Bearing: f(0), Distance: f(0)}}})
	if v.Stations[0].BearingText != "" || v.Stations[0].DistanceText != "" {
		t.Errorf("unresolved values should display empty, got %q %q", v.Stations[0].BearingText, v.Stations[0].DistanceText)
	}
	if v.Stations[1].BearingText != "0.0" {
		t.Errorf("a zero bearing is a value, got %q", v.Stations[1].BearingText)
	}
}

func TestNaNFixDoesNotPoisonViews(t *testing.T) {
	s := NewState()
	s.OnOriginPicked(update.Coordinate{Lat: 32, Lon: 34.9})
	s.OnStateUpdate(update.StateUpdate{Location: loc(32.1, 34.8), Stations: stations("A", "B")})

	u, err := update.Decode([]byte(`{"location": {"lat": "nan", "lon": "nan"}, "stations": [{"id": "A", "distance": "nan"}, {"id": "B"}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	v := s.OnStateUpdate(u)
	if v.Mode != LocationLost {
		t.Errorf("expected LocationLost, got %v", v.Mode)
	}
	if _, err := json.Marshal(v); err != nil {
		t.Fatalf("view must stay encodable: %v", err)
	}

	v = s.OnStateUpdate(update.StateUpdate{Location: loc(32.2, 34.7), Stations: stations("A", "B")})
	if _, err := json.Marshal(v); err != nil {
		t.Fatalf("later views must stay encodable: %v", err)
	}
	if s.HistoryLen() != 2 {
		t.Errorf("expected 2 history points, got %d", s.HistoryLen())
	}
}
