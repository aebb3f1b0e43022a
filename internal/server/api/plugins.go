package api

import (
	"net/http"

	"github.com/ayusman/judgy/internal/plugin"
)

// PluginLister lists discovered plugins.
type PluginLister interface {
	List() []*plugin.Plugin
	Discover() error
}

// PluginHandler serves the discovered plugins. POST rescans the plugin
// directory.
type PluginHandler struct {
	plugins PluginLister
}

// NewPluginHandler creates a new PluginHandler.
func NewPluginHandler(p PluginLister) *PluginHandler {
	return &PluginHandler{plugins: p}
}

type listPluginsResponse struct {
	Plugins []plugin.Manifest `json:"plugins"`
}

func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if err := h.plugins.Discover(); err != nil {
			WriteError(w, http.StatusInternalServerError, "Failed to discover plugins")
			return
		}
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	list := h.plugins.List()
	response := listPluginsResponse{Plugins: make([]plugin.Manifest, 0, len(list))}
	for _, p := range list {
		response.Plugins = append(response.Plugins, p.Manifest)
	}
	WriteJSON(w, http.StatusOK, response)
}
