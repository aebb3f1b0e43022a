package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/ayusman/judgy/internal/events"
	"github.com/ayusman/judgy/internal/plugin"
	"github.com/ayusman/judgy/internal/store"
)

// PluginLookup finds a discovered plugin by name.
type PluginLookup interface {
	Get(name string) (*plugin.Plugin, error)
}

// ActionHandler handles HTTP requests for action resources. An action binds
// a plugin action to an event kind.
type ActionHandler struct {
	store   *store.Store
	plugins PluginLookup
}

// NewActionHandler creates a new ActionHandler with the given store. When
// plugins is non-nil, bindings are checked against the discovered plugins.
func NewActionHandler(s *store.Store, plugins PluginLookup) *ActionHandler {
	return &ActionHandler{store: s, plugins: plugins}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *ActionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/actions or /api/actions/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/actions")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type createActionRequest struct {
	EventKind  string          `json:"event_kind"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type updateActionRequest struct {
	EventKind  string          `json:"event_kind"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    *bool           `json:"enabled"`
}

type actionResponse struct {
	ID         string          `json:"id"`
	EventKind  string          `json:"event_kind"`
	PluginName string          `json:"plugin_name"`
	ActionName string          `json:"action_name"`
	Config     json.RawMessage `json:"config"`
	Enabled    bool            `json:"enabled"`
	CreatedAt  string          `json:"created_at"`
}

type listActionsResponse struct {
	Actions []actionResponse `json:"actions"`
}

func toActionResponse(a *store.Action) actionResponse {
	config := a.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	return actionResponse{
		ID:         a.ID,
		EventKind:  a.EventKind,
		PluginName: a.PluginName,
		ActionName: a.ActionName,
		Config:     config,
		Enabled:    a.Enabled,
		CreatedAt:  a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// list handles GET /api/actions, optionally filtered by ?event_kind=.
func (h *ActionHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		actions []*store.Action
		err     error
	)
	if kind := r.URL.Query().Get("event_kind"); kind != "" {
		if _, perr := events.ParseEvent(kind); perr != nil {
			WriteError(w, http.StatusBadRequest, "event_kind must be picked_up or put_down")
			return
		}
		actions, err = h.store.Actions().ListByEventKind(kind)
	} else {
		actions, err = h.store.Actions().List()
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to list actions")
		return
	}

	response := listActionsResponse{
		Actions: make([]actionResponse, 0, len(actions)),
	}
	for _, a := range actions {
		response.Actions = append(response.Actions, toActionResponse(a))
	}

	WriteJSON(w, http.StatusOK, response)
}

// get handles GET /api/actions/{id}.
func (h *ActionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	action, err := h.store.Actions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Action not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get action")
		return
	}

	WriteJSON(w, http.StatusOK, toActionResponse(action))
}

// create handles POST /api/actions.
func (h *ActionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.EventKind == "" {
		WriteError(w, http.StatusBadRequest, "event_kind is required")
		return
	}
	if req.PluginName == "" {
		WriteError(w, http.StatusBadRequest, "plugin_name is required")
		return
	}
	if req.ActionName == "" {
		WriteError(w, http.StatusBadRequest, "action_name is required")
		return
	}
	if msg := h.validate(req.EventKind, req.PluginName, req.ActionName); msg != "" {
		WriteError(w, http.StatusBadRequest, msg)
		return
	}

	existing, err := h.store.Actions().ListByEventKind(req.EventKind)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to check existing actions")
		return
	}
	for _, a := range existing {
		if a.PluginName == req.PluginName && a.ActionName == req.ActionName {
			WriteError(w, http.StatusConflict, "Action already bound to this event")
			return
		}
	}

	config := req.Config
	if config == nil {
		config = json.RawMessage("{}")
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	action := &store.Action{
		ID:         uuid.New().String(),
		EventKind:  req.EventKind,
		PluginName: req.PluginName,
		ActionName: req.ActionName,
		Config:     config,
		Enabled:    enabled,
	}

	if err := h.store.Actions().Create(action); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to create action")
		return
	}

	WriteJSON(w, http.StatusCreated, toActionResponse(action))
}

// update handles PUT /api/actions/{id}.
func (h *ActionHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	action, err := h.store.Actions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Action not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to get action")
		return
	}

	var req updateActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.EventKind != "" {
		action.EventKind = req.EventKind
	}
	if req.PluginName != "" {
		action.PluginName = req.PluginName
	}
	if req.ActionName != "" {
		action.ActionName = req.ActionName
	}
	if req.Config != nil {
		action.Config = req.Config
	}
	if req.Enabled != nil {
		action.Enabled = *req.Enabled
	}
	if msg := h.validate(action.EventKind, action.PluginName, action.ActionName); msg != "" {
		WriteError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.store.Actions().Update(action); err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to update action")
		return
	}

	WriteJSON(w, http.StatusOK, toActionResponse(action))
}

// delete handles DELETE /api/actions/{id}.
func (h *ActionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Actions().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Action not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "Failed to delete action")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// validate returns a client-facing message for an invalid binding, or "".
func (h *ActionHandler) validate(kind, pluginName, actionName string) string {
	if _, err := events.ParseEvent(kind); err != nil {
		return "event_kind must be picked_up or put_down"
	}
	if h.plugins == nil {
		return ""
	}

	p, err := h.plugins.Get(pluginName)
	if err != nil {
		return "Plugin not found"
	}
	if !p.Manifest.SupportsAction(actionName) {
		return "Plugin does not support action " + actionName
	}
	return ""
}
