package update

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// DecodeError reports a syntactically valid frame whose structure does not
// match a state update. It is recoverable: callers drop the frame and keep
// the previous state.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode state update: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Wire shapes. Pointers distinguish "missing or null" from zero values,
// the same way the producer distinguishes an unresolved bearing from 0°.
type wireUpdate struct {
	Location *wireLocation `json:"location"`
	Stations []wireStation `json:"stations"`
}

type wireLocation struct {
	Lat *flexFloat `json:"lat"`
	Lon *flexFloat `json:"lon"`
}

type wireStation struct {
	Name         *string      `json:"name"`
	ID           *string      `json:"id"`
	Frequency    *flexString  `json:"frequency"`
	Bearing      *wireBearing `json:"bearing"`
	Distance     *flexFloat   `json:"distance"`
	IsIdentified *bool        `json:"is_identified"`
}

// wireBearing accepts {"value": n, "timestamp": t} as well as a bare
// number.
type wireBearing struct {
	Value     *float64
	Timestamp *float64
}

func (b *wireBearing) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var obj struct {
			Value     *float64 `json:"value"`
			Timestamp *float64 `json:"timestamp"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("bearing: %w", err)
		}
		b.Value, b.Timestamp = obj.Value, obj.Timestamp
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("bearing: %w", err)
	}
	b.Value = &v
	return nil
}

// flexFloat is a number that may also arrive quoted ("32.6"). Quoted
// values may spell out nan or inf; see finite.
type flexFloat float64

// finite reports whether f is present and a real number. The producer
// prints a missing fix as "nan", so non-finite values count as absent.
func finite(f *flexFloat) bool {
	return f != nil && !math.IsNaN(float64(*f)) && !math.IsInf(float64(*f), 0)
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number, got %s", data)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("expected number, got %q", s)
	}
	*f = flexFloat(v)
	return nil
}

// flexString is text that may also arrive as a bare number (frequencies
// are emitted unquoted by some producers).
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = flexString(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string, got %s", data)
	}
	*s = flexString(n.String())
	return nil
}

// Decode turns one complete JSON frame into a StateUpdate. Missing or
// null fields take their documented defaults; type mismatches return a
// *DecodeError.
func Decode(frame []byte) (StateUpdate, error) {
	var w wireUpdate
	if err := json.Unmarshal(frame, &w); err != nil {
		return StateUpdate{}, &DecodeError{Err: err}
	}

	u := StateUpdate{Stations: make([]Station, 0, len(w.Stations))}

	// A location without both axes carries no fix.
	if w.Location != nil && finite(w.Location.Lat) && finite(w.Location.Lon) {
		u.Location = &Coordinate{
			Lat: float64(*w.Location.Lat),
			Lon: float64(*w.Location.Lon),
		}
	}

	for _, ws := range w.Stations {
		var st Station
		if ws.Name != nil {
			st.Name = *ws.Name
		}
		if ws.ID != nil {
			st.ID = *ws.ID
		}
		if ws.Frequency != nil {
			st.Frequency = string(*ws.Frequency)
		}
		if ws.Bearing != nil && ws.Bearing.Value != nil && !math.IsNaN(*ws.Bearing.Value) && !math.IsInf(*ws.Bearing.Value, 0) {
			v := *ws.Bearing.Value
			st.Bearing = &v
			if ws.Bearing.Timestamp != nil {
				ts := *ws.Bearing.Timestamp
				st.BearingTime = &ts
			}
		}
		if finite(ws.Distance) {
			d := float64(*ws.Distance)
			st.Distance = &d
		}
		if ws.IsIdentified != nil {
			id := *ws.IsIdentified
			st.Identified = &id
		}
		u.Stations = append(u.Stations, st)
	}

	return u, nil
}
