package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/kaireichart/vor-nav-display/update"
)

// ErrNotFound is returned when no station matches a query.
var ErrNotFound = errors.New("station not found")

// Station is one row of the VOR list.
type Station struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Frequency string            `json:"frequency"`
	Position  update.Coordinate `json:"position"`
}

// Catalog is an immutable, in-memory VOR station list.
type Catalog struct {
	stations []Station
}

// Load reads the station CSV at path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open station catalog: %w", err)
	}
	defer f.Close()

	c, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse reads a CSV with a header row. Only the id, name, freq, lat and
// lon columns are used; others are ignored. Rows without a usable
// position are skipped.
func Parse(r io.Reader) (*Catalog, error) {
	csvReader := csv.NewReader(r)
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("station catalog is empty")
	} else if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"id", "lat", "lon"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("station catalog has no %q column", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var stations []Station
	for {
		rec, err := csvReader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		lat, err := strconv.ParseFloat(field(rec, "lat"), 64)
		if err != nil {
			continue
		}
		lon, err := strconv.ParseFloat(field(rec, "lon"), 64)
		if err != nil {
			continue
		}

		pos := update.Coordinate{Lat: lat, Lon: lon}
		if pos.Validate() != nil {
			continue
		}
		stations = append(stations, Station{
			ID:        field(rec, "id"),
			Name:      field(rec, "name"),
			Frequency: field(rec, "freq"),
			Position:  pos,
		})
	}

	if len(stations) == 0 {
		return nil, fmt.Errorf("no valid station records found")
	}
	return New(stations), nil
}

// New builds a catalog from stations already in memory.
func New(stations []Station) *Catalog {
	return &Catalog{stations: slices.Clone(stations)}
}

func (c *Catalog) Len() int { return len(c.stations) }

// Stations returns a copy of every station in file order.
func (c *Catalog) Stations() []Station { return slices.Clone(c.stations) }

// Search returns up to limit stations whose ident or name contains q,
// ignoring case. Exact ident matches sort first. A limit <= 0 means no
// limit.
func (c *Catalog) Search(q string, limit int) []Station {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}

	var exact, partial []Station
	for _, s := range c.stations {
		id := strings.ToLower(s.ID)
		switch {
		case id == q:
			exact = append(exact, s)
		case strings.Contains(id, q) || strings.Contains(strings.ToLower(s.Name), q):
			partial = append(partial, s)
		}
	}

	res := append(exact, partial...)
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res
}

// Resolve returns the position of the best match for q.
func (c *Catalog) Resolve(q string) (update.Coordinate, error) {
	res := c.Search(q, 1)
	if len(res) == 0 {
		return update.Coordinate{}, fmt.Errorf("%q: %w", q, ErrNotFound)
	}
	return res[0].Position, nil
}

// DefaultRangeKm is the search radius used when none is given.
const DefaultRangeKm = 400

// InRange is a station together with its great-circle distance from a
// reference point.
type InRange struct {
	Station
	DistanceKm float64 `json:"distance_km"`
}

// WithinRange lists stations no farther than km from p, nearest first.
func (c *Catalog) WithinRange(p update.Coordinate, km float64) []InRange {
	from := orb.Point{p.Lon, p.Lat}

	var res []InRange
	for _, s := range c.stations {
		d := geo.DistanceHaversine(from, orb.Point{s.Position.Lon, s.Position.Lat}) / 1000
		if d <= km {
			res = append(res, InRange{Station: s, DistanceKm: d})
		}
	}
	slices.SortStableFunc(res, func(a, b InRange) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		}
		return 0
	})
	return res
}
