package update

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Coordinate is a geographic point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// String formats the coordinate the way the producer expects it on the
// output channel: "<lat> <lon>" with the shortest exact decimal form.
func (c Coordinate) String() string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + " " + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

// Validate reports whether c is a real point on the globe.
func (c Coordinate) Validate() error {
	switch {
	case math.IsNaN(c.Lat) || math.IsNaN(c.Lon):
		return errors.New("coordinate is not a number")
	case c.Lat < -90 || c.Lat > 90:
		return fmt.Errorf("latitude %v outside [-90, 90]", c.Lat)
	case c.Lon < -180 || c.Lon > 180:
		return fmt.Errorf("longitude %v outside [-180, 180]", c.Lon)
	}
	return nil
}

// Station is one radio-navigation station as reported by the producer.
// Bearing and Distance stay nil until the producer has resolved them.
type Station struct {
	Name      string   `json:"name"`
	ID        string   `json:"id"`
	Frequency string   `json:"frequency"`
	Bearing   *float64 `json:"bearing,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`

	// Identified mirrors the producer's is_identified flag when present.
	Identified *bool `json:"identified,omitempty"`
	// BearingTime is the producer timestamp of the bearing, in seconds
	// since the epoch.
	BearingTime *float64 `json:"bearing_time,omitempty"`
}

// StateUpdate is one fully decoded message. It replaces, never merges
// with, whatever came before it.
type StateUpdate struct {
	Location *Coordinate `json:"location"`
	Stations []Station   `json:"stations"`
}
