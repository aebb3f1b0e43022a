// Package server provides the HTTP API, video feed and live event socket
// for judgy.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/ayusman/judgy/internal/app"
	"github.com/ayusman/judgy/internal/logger"
	"github.com/ayusman/judgy/internal/plugin"
	"github.com/ayusman/judgy/internal/reaction"
	"github.com/ayusman/judgy/internal/server/api"
	"github.com/ayusman/judgy/internal/store"
)

// Monitor is the part of the application the HTTP layer drives.
type Monitor interface {
	Status() app.Status
	StartMonitoring(fresh bool) app.Status
	StopMonitoring() app.Status
	ToggleMonitoring(fresh bool) app.Status
	ResetStats() app.Status
	TestReaction(ctx context.Context) (reaction.Reaction, error)
	Settings() app.Settings
	UpdateSettings(u app.SettingsUpdate) (app.Settings, error)
	Subscribe() (<-chan app.Notice, func())
	LatestFrame() ([]byte, float64)
}

// Plugins lists, finds and rescans plugins.
type Plugins interface {
	Get(name string) (*plugin.Plugin, error)
	List() []*plugin.Plugin
	Discover() error
}

// Config holds the server configuration. Routes whose dependency is nil
// are not registered.
type Config struct {
	StaticDir string
	Store     *store.Store
	App       Monitor
	Plugins   Plugins
	// Metrics serves /metrics, usually metrics.Metrics.Handler().
	Metrics http.Handler
}

// Server represents the HTTP server for judgy.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/monitoring", s.handleMonitoring)
		s.mux.HandleFunc("/api/reset", s.handleReset)
		s.mux.HandleFunc("/api/test", s.handleTest)
		s.mux.HandleFunc("/api/settings", s.handleSettings)
		s.mux.HandleFunc("/api/frame", s.handleFrame)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App))
		s.mux.Handle("/api/ws", NewEventsSocket(s.config.App))
	}

	if s.config.Store != nil {
		var lookup api.PluginLookup
		if s.config.Plugins != nil {
			lookup = s.config.Plugins
		}
		actions := api.NewActionHandler(s.config.Store, lookup)
		s.mux.Handle("/api/actions", actions)
		s.mux.Handle("/api/actions/", actions)

		eventLog := api.NewEventHandler(s.config.Store)
		s.mux.Handle("/api/events", eventLog)
		s.mux.Handle("/api/events/", eventLog)
	}

	if s.config.Plugins != nil {
		s.mux.Handle("/api/plugins", api.NewPluginHandler(s.config.Plugins))
	}

	if s.config.Metrics != nil {
		s.mux.Handle("/metrics", s.config.Metrics)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	api.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).Round(time.Second).String(),
	})
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server", "listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
