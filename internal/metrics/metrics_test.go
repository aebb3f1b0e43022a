package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.FramesRead.Add(30)
	m.FramesDetected.Add(10)
	m.FramesBridged.Add(2)
	m.Visible.Store(true)
	m.PickupCount.Store(4)
	m.ObserveEvent("picked_up")
	m.ObserveEvent("picked_up")
	m.ObserveEvent("put_down")
	m.ObserveInference(40 * time.Millisecond)
	m.ObserveReaction(time.Second)

	out := scrape(t, m)

	for _, want := range []string{
		"judgy_frames_read_total 30",
		"judgy_frames_detected_total 10",
		"judgy_frames_bridged_total 2",
		"judgy_object_visible 1",
		"judgy_monitoring 0",
		"judgy_pickup_count 4",
		`judgy_events_total{kind="picked_up"} 2`,
		`judgy_events_total{kind="put_down"} 1`,
		"judgy_inference_seconds_count 1",
		"judgy_reaction_seconds_count 1",
	} {
		assert.True(t, strings.Contains(out, want), "missing %q", want)
	}
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.FramesRead.Add(1)

	assert.Contains(t, scrape(t, a), "judgy_frames_read_total 1")
	assert.Contains(t, scrape(t, b), "judgy_frames_read_total 0")
	assert.NotSame(t, a.Registry(), b.Registry())
}
