package hub

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kaireichart/vor-nav-display/catalog"
	"github.com/kaireichart/vor-nav-display/display"
	"github.com/kaireichart/vor-nav-display/update"
)

// HistoryGeoJSON encodes the origin, the current fix and the track since
// the last origin pick as a feature collection.
func HistoryGeoJSON(v display.View) ([]byte, error) {
	fc := geojson.NewFeatureCollection()

	if v.Origin != nil {
		f := geojson.NewFeature(point(*v.Origin))
		f.Properties["kind"] = "origin"
		fc.Append(f)
	}

	if len(v.History) > 0 {
		track := make(orb.LineString, 0, len(v.History))
		for _, c := range v.History {
			track = append(track, point(c))
		}
		f := geojson.NewFeature(track)
		f.Properties["kind"] = "track"
		f.Properties["points"] = len(track)
		fc.Append(f)
	}

	if v.Location != nil {
		f := geojson.NewFeature(point(*v.Location))
		f.Properties["kind"] = "location"
		f.Properties["mode"] = v.Mode.String()
		fc.Append(f)
	}

	return fc.MarshalJSON()
}

// StationsGeoJSON encodes catalog stations as point features, with the
// great-circle distance when they come from a range query.
func StationsGeoJSON(stations []catalog.Station, ranges []catalog.InRange) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	add := func(s catalog.Station) *geojson.Feature {
		f := geojson.NewFeature(point(s.Position))
		f.ID = s.ID
		f.Properties["kind"] = "station"
		f.Properties["id"] = s.ID
		f.Properties["name"] = s.Name
		f.Properties["frequency"] = s.Frequency
		fc.Append(f)
		return f
	}
	for _, s := range stations {
		add(s)
	}
	for _, r := range ranges {
		add(r.Station).Properties["distance_km"] = r.DistanceKm
	}
	return fc.MarshalJSON()
}

func point(c update.Coordinate) orb.Point {
	return orb.Point{c.Lon, c.Lat}
}
