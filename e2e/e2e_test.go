package e2e

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/judgy/internal/app"
	"github.com/ayusman/judgy/internal/capture"
	"github.com/ayusman/judgy/internal/config"
	"github.com/ayusman/judgy/internal/detector"
	"github.com/ayusman/judgy/internal/fixtures"
	"github.com/ayusman/judgy/internal/metrics"
	"github.com/ayusman/judgy/internal/reaction"
	"github.com/ayusman/judgy/internal/server"
	"github.com/ayusman/judgy/internal/store"
)

// writeRecorderPlugin installs a shell plugin that appends every request it
// receives to requests.log in its own directory.
func writeRecorderPlugin(t *testing.T, pluginDir string) string {
	t.Helper()

	dir := filepath.Join(pluginDir, "recorder")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"recorder","version":"1.0.0","executable":"run.sh","actions":["record"]}`
	if err := os.WriteFile(filepath.Join(dir, "plugin.json"), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	script := "#!/bin/sh\ncat >> requests.log\necho >> requests.log\necho '{\"success\":true}'\n"
	if err := os.WriteFile(filepath.Join(dir, "run.sh"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	return filepath.Join(dir, "requests.log")
}

func post(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()

	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	return resp
}

func TestE2E_PickupWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	tmpDir := t.TempDir()
	s, err := store.New(filepath.Join(tmpDir, "data.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	settings := config.Default()
	settings.DataDir = tmpDir
	settings.Camera.FPS = 30
	settings.Camera.DetectEvery = 1
	settings.Reaction.PluginDir = filepath.Join(tmpDir, "plugins")
	requestLog := writeRecorderPlugin(t, settings.Reaction.PluginDir)

	frames := fixtures.Sequence(2, 1)
	defer fixtures.Close(frames)

	// Three frames with a phone, then an empty desk for good.
	mockDetector := detector.NewMockDetector()
	mockDetector.Script(
		[]detector.Detection{detector.Phone(0.9)},
		[]detector.Detection{detector.Phone(0.85)},
		[]detector.Detection{detector.Phone(0.8)},
	)

	m := metrics.New()
	application, err := app.New(app.Config{
		Settings:  settings,
		Store:     s,
		Camera:    capture.NewMockCamera([]*gocv.Mat{frames[0], frames[1]}, true),
		Detector:  mockDetector,
		Responder: reaction.NewPrewritten(func(int) int { return 0 }),
		Metrics:   m,
	})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	if err := application.DiscoverPlugins(); err != nil {
		t.Fatalf("DiscoverPlugins() error = %v", err)
	}

	srv := server.New(server.Config{
		Store:   s,
		App:     application,
		Plugins: application.PluginManager(),
		Metrics: m.Handler(),
	})
	ts := httptest.NewServer(srv)
	defer ts.Close()
	client := ts.Client()

	t.Run("BindRecorder", func(t *testing.T) {
		for _, kind := range []string{"picked_up", "put_down"} {
			resp := post(t, client, ts.URL+"/api/actions",
				fmt.Sprintf(`{"event_kind":%q,"plugin_name":"recorder","action_name":"record"}`, kind))
			resp.Body.Close()
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("bind %s: status = %d, want %d", kind, resp.StatusCode, http.StatusCreated)
			}
		}
	})

	if err := application.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer application.Stop()

	t.Run("StartMonitoring", func(t *testing.T) {
		resp := post(t, client, ts.URL+"/api/monitoring", `{"action":"start","fresh":true}`)
		defer resp.Body.Close()

		var st app.Status
		json.NewDecoder(resp.Body).Decode(&st)
		if !st.Monitoring {
			t.Fatalf("expected monitoring, got %+v", st.Status)
		}
	})

	t.Run("EventsLogged", func(t *testing.T) {
		deadline := time.Now().Add(10 * time.Second)
		for {
			resp, err := client.Get(ts.URL + "/api/events")
			if err != nil {
				t.Fatalf("GET /api/events error = %v", err)
			}
			var body struct {
				Events []struct {
					Kind        string `json:"kind"`
					PickupCount int    `json:"pickup_count"`
					Line        string `json:"line"`
				} `json:"events"`
			}
			json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()

			if len(body.Events) == 2 {
				if body.Events[0].Kind != "put_down" || body.Events[1].Kind != "picked_up" {
					t.Errorf("unexpected events %+v", body.Events)
				}
				if body.Events[1].PickupCount != 1 || body.Events[1].Line != "Put it down!" {
					t.Errorf("unexpected pickup %+v", body.Events[1])
				}
				return
			}
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for pickup and putdown, have %+v", body.Events)
			}
			time.Sleep(100 * time.Millisecond)
		}
	})

	t.Run("PluginReceivedRequests", func(t *testing.T) {
		data, err := os.ReadFile(requestLog)
		if err != nil {
			t.Fatalf("plugin never ran: %v", err)
		}
		log := string(data)
		if !strings.Contains(log, `"event":"picked_up"`) || !strings.Contains(log, `"event":"put_down"`) {
			t.Errorf("expected both events in plugin log, got %s", log)
		}
		if !strings.Contains(log, `"text":"Put it down!"`) {
			t.Errorf("expected the line in plugin log, got %s", log)
		}
	})

	t.Run("Status", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/status")
		if err != nil {
			t.Fatalf("GET /api/status error = %v", err)
		}
		defer resp.Body.Close()

		var st app.Status
		json.NewDecoder(resp.Body).Decode(&st)
		if st.PickupCount != 1 || st.TotalShames != 1 || st.Visible {
			t.Errorf("unexpected status %+v", st.Status)
		}
		if st.DetectorStatus != detector.StatusReady {
			t.Errorf("expected ready detector, got %q", st.DetectorStatus)
		}
	})

	t.Run("Frame", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/api/frame")
		if err != nil {
			t.Fatalf("GET /api/frame error = %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/jpeg" {
			t.Errorf("unexpected frame response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := client.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatalf("GET /metrics error = %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		for _, want := range []string{`judgy_events_total{kind="picked_up"} 1`, `judgy_events_total{kind="put_down"} 1`} {
			if !strings.Contains(string(body), want) {
				t.Errorf("expected %q in metrics", want)
			}
		}
	})
}
