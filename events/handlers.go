package events

import (
	"encoding/json"
	"net/http"
	"strings"
)

//go:generate go tool templ generate

// Register mounts the journal's endpoints on mux.
func (j *Journal) Register(mux *http.ServeMux) {
	mux.HandleFunc("/events", j.handleEvents)
	mux.HandleFunc("/events/list", j.handleEventsList)
	mux.HandleFunc("/events/manual", j.handleManualEvent)
}

func (j *Journal) handleEventsList(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if err := EventsList(j.Newest()).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleManualEvent lets the operator annotate the session, e.g. when a
// fix is visually confirmed.
func (j *Journal) handleManualEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	detail := strings.TrimSpace(r.FormValue("detail"))
	if detail == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}
	j.Record(Event{Type: TypeManual, Source: "operator", Detail: detail})

	w.Header().Set("Content-Type", "text/html")
	if err := EventsList(j.Newest()).Render(r.Context(), w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (j *Journal) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(j.List())
}

// Helper functions for templates

func formatEventType(eventType string) string {
	parts := strings.Split(eventType, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, " ")
}

func getEventTypeClass(eventType string) string {
	switch eventType {
	case TypeOriginPicked, TypeProducerStart:
		return "bg-green-100 text-green-800"
	case TypeOriginFailed, TypeProducerExited:
		return "bg-red-100 text-red-800"
	case TypeDecodeFailed, TypeFrameDropped:
		return "bg-orange-100 text-orange-800"
	case TypeModeChanged:
		return "bg-indigo-100 text-indigo-800"
	case TypeManual:
		return "bg-yellow-100 text-yellow-800"
	default:
		return "bg-blue-100 text-blue-800"
	}
}
