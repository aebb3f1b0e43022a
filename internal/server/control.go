package server

import (
	"net/http"

	"github.com/ayusman/judgy/internal/app"
	"github.com/ayusman/judgy/internal/logger"
	"github.com/ayusman/judgy/internal/reaction"
	"github.com/ayusman/judgy/internal/server/api"
)

type monitoringRequest struct {
	// Action is start, stop or toggle. Empty means toggle.
	Action string `json:"action"`
	// Fresh discards the paused session instead of continuing it.
	Fresh    bool                `json:"fresh"`
	Settings *app.SettingsUpdate `json:"settings,omitempty"`
}

type testResponse struct {
	Reaction reaction.Reaction `json:"reaction"`
	Warning  string            `json:"warning,omitempty"`
}

// handleStatus handles GET /api/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.WriteJSON(w, http.StatusOK, s.config.App.Status())
}

// handleMonitoring handles POST /api/monitoring. Settings sent with a start
// are applied before monitoring begins.
func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req monitoringRequest
	if err := decodeBody(r, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Settings != nil {
		if _, err := s.config.App.UpdateSettings(*req.Settings); err != nil {
			api.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	var st app.Status
	switch req.Action {
	case "", "toggle":
		st = s.config.App.ToggleMonitoring(req.Fresh)
	case "start":
		st = s.config.App.StartMonitoring(req.Fresh)
	case "stop":
		st = s.config.App.StopMonitoring()
	default:
		api.WriteError(w, http.StatusBadRequest, "action must be start, stop or toggle")
		return
	}

	api.WriteJSON(w, http.StatusOK, st)
}

// handleReset handles POST /api/reset.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	api.WriteJSON(w, http.StatusOK, s.config.App.ResetStats())
}

// handleTest handles POST /api/test. Plugin failures are reported as a
// warning alongside the reaction.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rx, err := s.config.App.TestReaction(r.Context())
	if err != nil && rx.Line == "" {
		logger.Error("server", "test reaction failed: %v", err)
		api.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := testResponse{Reaction: rx}
	if err != nil {
		resp.Warning = err.Error()
	}
	api.WriteJSON(w, http.StatusOK, resp)
}

// handleSettings handles GET and PUT /api/settings.
func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		api.WriteJSON(w, http.StatusOK, s.config.App.Settings())
	case http.MethodPut, http.MethodPost:
		var u app.SettingsUpdate
		if err := decodeBody(r, &u); err != nil {
			api.WriteError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
		settings, err := s.config.App.UpdateSettings(u)
		if err != nil {
			api.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		api.WriteJSON(w, http.StatusOK, settings)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
