package hub

import (
	"context"
	"errors"
	"fmt"

	"github.com/kaireichart/vor-nav-display/display"
	"github.com/kaireichart/vor-nav-display/producer"
	"github.com/kaireichart/vor-nav-display/tiles"
	"github.com/kaireichart/vor-nav-display/update"
)

// errBadRequest marks requests rejected before reaching the picker.
var errBadRequest = errors.New("bad request")

// Message types exchanged over /ws.
const (
	MsgView        = "view"
	MsgIndicator   = "indicator"
	MsgError       = "error"
	MsgPick        = "pick"
	MsgPickStation = "pick_station"
)

// OutMessage is sent to browsers. Only the fields for Type are set.
type OutMessage struct {
	Type    string        `json:"type"`
	View    *display.View `json:"view,omitempty"`
	Target  string        `json:"target,omitempty"`
	On      *bool         `json:"on,omitempty"`
	Message string        `json:"message,omitempty"`
}

// InMessage is a request from a browser. Lat and Lon are pointers so a
// pick without them is rejected rather than read as (0, 0).
type InMessage struct {
	Type  string   `json:"type"`
	Lat   *float64 `json:"lat,omitempty"`
	Lon   *float64 `json:"lon,omitempty"`
	Query string   `json:"query,omitempty"`
}

// coordinate returns the picked point of a pick message.
func (in InMessage) coordinate() (update.Coordinate, error) {
	if in.Lat == nil || in.Lon == nil {
		return update.Coordinate{}, fmt.Errorf("%w: lat and lon are required", errBadRequest)
	}
	c := update.Coordinate{Lat: *in.Lat, Lon: *in.Lon}
	if err := c.Validate(); err != nil {
		return update.Coordinate{}, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return c, nil
}

// Picker turns a map click or station search into an origin change.
type Picker interface {
	Pick(ctx context.Context, c update.Coordinate) error
	PickStation(ctx context.Context, query string) (update.Coordinate, error)
}

// Snapshotter returns the latest view for HTTP handlers.
type Snapshotter interface {
	Snapshot() display.View
}

// TileSource serves map tiles; tiles.Store implements it.
type TileSource interface {
	Get(ctx context.Context, k tiles.Key) ([]byte, error)
}

// ProducerState reports the supervised producer, if any.
type ProducerState interface {
	State() producer.State
}
