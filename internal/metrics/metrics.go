// Package metrics exposes capture and detection counters to Prometheus.
package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.
type Metrics struct {
	// Frame counters
	FramesRead     atomic.Uint64
	FramesDetected atomic.Uint64
	FramesBridged  atomic.Uint64
	ReadErrors     atomic.Uint64
	DetectErrors   atomic.Uint64
	EventsDropped  atomic.Uint64

	// Live state
	Visible     atomic.Bool
	Monitoring  atomic.Bool
	PickupCount atomic.Int64

	events    *prometheus.CounterVec
	inference prometheus.Histogram
	reactions prometheus.Histogram

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "judgy_events_total",
			Help: "Confirmed events by kind",
		}, []string{"kind"}),
		inference: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "judgy_inference_seconds",
			Help:    "Object detector latency per analysed frame",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
		}),
		reactions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "judgy_reaction_seconds",
			Help:    "Time to produce a line and run the bound plugins",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		}),
	}

	m.registerPrometheusMetrics()

	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	counter := func(name, help string, v *atomic.Uint64) prometheus.Collector {
		return prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: name, Help: help},
			func() float64 { return float64(v.Load()) },
		)
	}
	gauge := func(name, help string, f func() float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, f)
	}
	boolean := func(b *atomic.Bool) func() float64 {
		return func() float64 {
			if b.Load() {
				return 1
			}
			return 0
		}
	}

	m.registry.MustRegister(
		counter("judgy_frames_read_total", "Frames read from the camera", &m.FramesRead),
		counter("judgy_frames_detected_total", "Frames sent to the object detector", &m.FramesDetected),
		counter("judgy_frames_bridged_total", "Frames kept present by the persistence window", &m.FramesBridged),
		counter("judgy_read_errors_total", "Camera read errors", &m.ReadErrors),
		counter("judgy_detect_errors_total", "Object detector failures", &m.DetectErrors),
		counter("judgy_events_dropped_total", "Events dropped because the reaction queue was full", &m.EventsDropped),
		gauge("judgy_object_visible", "Whether the tracked object is currently confirmed visible", boolean(&m.Visible)),
		gauge("judgy_monitoring", "Whether monitoring is active", boolean(&m.Monitoring)),
		gauge("judgy_pickup_count", "Pickups counted today", func() float64 { return float64(m.PickupCount.Load()) }),
		m.events,
		m.inference,
		m.reactions,
	)
}

// ObserveEvent counts a confirmed event of kind.
func (m *Metrics) ObserveEvent(kind string) {
	m.events.WithLabelValues(kind).Inc()
}

// ObserveInference records one detector call.
func (m *Metrics) ObserveInference(d time.Duration) {
	m.inference.Observe(d.Seconds())
}

// ObserveReaction records one dispatched reaction.
func (m *Metrics) ObserveReaction(d time.Duration) {
	m.reactions.Observe(d.Seconds())
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
