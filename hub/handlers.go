package hub

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kaireichart/vor-nav-display/catalog"
	"github.com/kaireichart/vor-nav-display/export"
	"github.com/kaireichart/vor-nav-display/producer"
	"github.com/kaireichart/vor-nav-display/tiles"
	"github.com/kaireichart/vor-nav-display/update"
)

//go:generate go tool templ generate

//go:embed index.html
var frontendFile []byte

// Handler returns the renderer's HTTP surface.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.serveFrontend)
	mux.HandleFunc("GET /ws", h.serveWS)
	mux.HandleFunc("GET /tiles/{z}/{x}/{y}", h.handleTile)

	mux.HandleFunc("GET /view/state", h.handleState)
	mux.HandleFunc("GET /view/stations", h.handleStations)
	mux.HandleFunc("GET /view/status", h.handleStatus)
	mux.HandleFunc("GET /view/history.geojson", h.handleHistory)
	mux.HandleFunc("POST /view/pick", h.handlePick)

	mux.HandleFunc("GET /export/view.xlsx", h.handleXLSXExport)
	mux.HandleFunc("GET /export/view.zip", h.handleCSVExport)

	mux.HandleFunc("GET /catalog/search", h.handleCatalogSearch)
	mux.HandleFunc("GET /catalog/stations.geojson", h.handleCatalogStations)
	mux.HandleFunc("GET /catalog/nearby", h.handleCatalogNearby)
	mux.HandleFunc("GET /producer/status", h.handleProducerStatus)

	if h.opts.Journal != nil {
		h.opts.Journal.Register(mux)
	}
	return mux
}

func (h *Hub) serveFrontend(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(frontendFile)
}

func (h *Hub) handleTile(w http.ResponseWriter, r *http.Request) {
	if h.opts.Tiles == nil {
		http.Error(w, "No tile database loaded", http.StatusNotFound)
		return
	}

	z, errZ := strconv.Atoi(r.PathValue("z"))
	x, errX := strconv.Atoi(r.PathValue("x"))
	y, errY := strconv.Atoi(strings.TrimSuffix(r.PathValue("y"), ".png"))
	if errZ != nil || errX != nil || errY != nil {
		http.Error(w, "Invalid tile coordinates", http.StatusBadRequest)
		return
	}

	img, err := h.opts.Tiles.Get(r.Context(), tiles.Key{Zoom: z, X: x, Y: y})
	if errors.Is(err, tiles.ErrNotFound) {
		http.NotFound(w, r)
		return
	} else if err != nil {
		h.lg.Warn("tile lookup failed", "z", z, "x", x, "y", y, "error", err)
		http.Error(w, "Failed to load tile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(img)
}

func (h *Hub) handleState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.opts.Views.Snapshot())
}

func (h *Hub) handleStations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := StationTable(h.opts.Views.Snapshot()).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := StatusLine(h.opts.Views.Snapshot()).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Hub) handleHistory(w http.ResponseWriter, r *http.Request) {
	b, err := HistoryGeoJSON(h.opts.Views.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(b)
}

// handlePick is the form-post equivalent of the websocket pick messages,
// for clients without websocket support.
func (h *Hub) handlePick(w http.ResponseWriter, r *http.Request) {
	in := InMessage{Type: MsgPickStation, Query: strings.TrimSpace(r.FormValue("station"))}
	if in.Query == "" {
		lat, errLat := strconv.ParseFloat(r.FormValue("lat"), 64)
		lon, errLon := strconv.ParseFloat(r.FormValue("lon"), 64)
		if errLat != nil || errLon != nil {
			http.Error(w, "lat and lon or station are required", http.StatusBadRequest)
			return
		}
		in = InMessage{Type: MsgPick, Lat: &lat, Lon: &lon}
	}

	if err := h.handle(r.Context(), in); errors.Is(err, errBadRequest) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	} else if err != nil {
		http.Error(w, fmt.Sprintf("Failed to pick origin: %v", err), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Hub) handleXLSXExport(w http.ResponseWriter, r *http.Request) {
	buf, err := export.XLSX(h.opts.Views.Snapshot())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate workbook: %v", err), http.StatusInternalServerError)
		return
	}

	filename := export.Filename("xlsx", time.Now())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func (h *Hub) handleCSVExport(w http.ResponseWriter, r *http.Request) {
	buf, err := export.CSVZip(h.opts.Views.Snapshot())
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to generate CSV files: %v", err), http.StatusInternalServerError)
		return
	}

	filename := export.Filename("zip", time.Now())
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}

func (h *Hub) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if h.opts.Catalog == nil {
		http.Error(w, "No station catalog loaded", http.StatusNotFound)
		return
	}

	limit := 20
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}

	res := h.opts.Catalog.Search(r.URL.Query().Get("q"), limit)
	if res == nil {
		res = []catalog.Station{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(res)
}

func (h *Hub) handleCatalogStations(w http.ResponseWriter, r *http.Request) {
	if h.opts.Catalog == nil {
		http.Error(w, "No station catalog loaded", http.StatusNotFound)
		return
	}
	b, err := StationsGeoJSON(h.opts.Catalog.Stations(), nil)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode stations: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(b)
}

// handleCatalogNearby lists stations within km (default
// catalog.DefaultRangeKm) of lat/lon, or of the current origin when no
// point is given.
func (h *Hub) handleCatalogNearby(w http.ResponseWriter, r *http.Request) {
	if h.opts.Catalog == nil {
		http.Error(w, "No station catalog loaded", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	var from update.Coordinate
	if q.Has("lat") || q.Has("lon") {
		lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
		lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
		from = update.Coordinate{Lat: lat, Lon: lon}
		if errLat != nil || errLon != nil || from.Validate() != nil {
			http.Error(w, "lat and lon must be a valid coordinate", http.StatusBadRequest)
			return
		}
	} else if v := h.opts.Views.Snapshot(); v.Origin != nil {
		from = *v.Origin
	} else {
		http.Error(w, "No origin picked; pass lat and lon", http.StatusBadRequest)
		return
	}

	km := float64(catalog.DefaultRangeKm)
	if s := q.Get("km"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			http.Error(w, "km must be a positive number", http.StatusBadRequest)
			return
		}
		km = v
	}

	b, err := StationsGeoJSON(nil, h.opts.Catalog.WithinRange(from, km))
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode stations: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.Write(b)
}

func (h *Hub) handleProducerStatus(w http.ResponseWriter, r *http.Request) {
	var st *producer.State
	if h.opts.Producer != nil {
		s := h.opts.Producer.State()
		st = &s
	}
	w.Header().Set("Content-Type", "text/html")
	if err := ProducerBadge(st).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
