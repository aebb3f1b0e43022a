package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/judgy/internal/store"
)

// Default and maximum page sizes for the event log.
const (
	DefaultEventLimit = 50
	MaxEventLimit     = 1000
	DefaultDays       = 7
)

// EventHandler serves the event log and daily totals.
type EventHandler struct {
	store *store.Store
}

// NewEventHandler creates a new EventHandler with the given store.
func NewEventHandler(s *store.Store) *EventHandler {
	return &EventHandler{store: s}
}

type eventResponse struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"`
	PickupCount int     `json:"pickup_count"`
	Confidence  float64 `json:"confidence"`
	Line        string  `json:"line,omitempty"`
	Personality string  `json:"personality,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

type dailyResponse struct {
	Days []store.DailyCount `json:"days"`
}

// ServeHTTP routes /api/events and /api/events/daily.
func (h *EventHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/events")
	path = strings.TrimPrefix(path, "/")

	switch {
	case path == "" && r.Method == http.MethodGet:
		h.list(w, r)
	case path == "" && r.Method == http.MethodDelete:
		h.clear(w, r)
	case path == "daily" && r.Method == http.MethodGet:
		h.daily(w, r)
	case path == "" || path == "daily":
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	default:
		http.NotFound(w, r)
	}
}

// list handles GET /api/events?limit=N, newest first.
func (h *EventHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(r, "limit", DefaultEventLimit)
	if !ok {
		WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if limit == 0 || limit > MaxEventLimit {
		limit = MaxEventLimit
	}

	logged, err := h.store.Events().List(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{Events: make([]eventResponse, 0, len(logged))}
	for _, e := range logged {
		response.Events = append(response.Events, eventResponse{
			ID:          e.ID,
			Kind:        e.Kind,
			PickupCount: e.PickupCount,
			Confidence:  e.Confidence,
			Line:        e.Line,
			Personality: e.Personality,
			CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		})
	}

	WriteJSON(w, http.StatusOK, response)
}

// clear handles DELETE /api/events and empties the log and daily totals.
func (h *EventHandler) clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Events().DeleteAll(); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to clear events")
		return
	}
	if err := h.store.Daily().DeleteAll(); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to clear daily counts")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// daily handles GET /api/events/daily?days=N.
func (h *EventHandler) daily(w http.ResponseWriter, r *http.Request) {
	days, ok := queryInt(r, "days", DefaultDays)
	if !ok || days == 0 {
		WriteError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	counts, err := h.store.Daily().Recent(days)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list daily counts")
		return
	}
	if counts == nil {
		counts = []store.DailyCount{}
	}

	WriteJSON(w, http.StatusOK, dailyResponse{Days: counts})
}
