// Package app wires the camera, object detector, event debouncer and
// reaction plugins into the running judgy service.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/judgy/internal/capture"
	"github.com/ayusman/judgy/internal/config"
	"github.com/ayusman/judgy/internal/detector"
	"github.com/ayusman/judgy/internal/events"
	"github.com/ayusman/judgy/internal/logger"
	"github.com/ayusman/judgy/internal/metrics"
	"github.com/ayusman/judgy/internal/plugin"
	"github.com/ayusman/judgy/internal/reaction"
	"github.com/ayusman/judgy/internal/session"
	"github.com/ayusman/judgy/internal/store"
	"github.com/ayusman/judgy/internal/timeutil"
)

// EventQueueSize bounds the hand-off between the capture loop and the
// reaction consumer. Events beyond it are dropped with a warning.
const EventQueueSize = 16

const subscriberBuffer = 8

// Config holds the collaborators of an App. Only Settings is required;
// nil collaborators are built from it.
type Config struct {
	Settings  *config.Config
	Store     *store.Store
	Camera    capture.Camera
	Detector  detector.Detector
	Responder reaction.Responder
	Metrics   *metrics.Metrics
	Clock     timeutil.Clock
}

// Notice is pushed to subscribers when an event is confirmed and again
// when its reaction has run.
type Notice struct {
	Type       string             `json:"type"`
	Event      string             `json:"event"`
	Count      int                `json:"count"`
	Confidence float64            `json:"confidence,omitempty"`
	Reaction   *reaction.Reaction `json:"reaction,omitempty"`
	At         time.Time          `json:"at"`
}

// Notice types.
const (
	NoticeEvent    = "event"
	NoticeReaction = "reaction"
)

// Status is the full status served to the UI and tray.
type Status struct {
	session.Status
	Detector        string             `json:"detector"`
	DetectorStatus  string             `json:"detector_status"`
	DetectorMessage string             `json:"detector_message,omitempty"`
	Tracking        bool               `json:"tracking"`
	FPS             float64            `json:"fps"`
	Personality     string             `json:"personality"`
	Mode            string             `json:"mode"`
	LastReaction    *reaction.Reaction `json:"last_reaction,omitempty"`
}

type pending struct {
	event      events.Event
	count      int
	confidence float64
	at         time.Time
}

// App is the main application that turns camera frames into reactions.
type App struct {
	settings   *config.Config
	store      *store.Store
	camera     capture.Camera
	detector   detector.Detector
	responder  reaction.Responder
	session    *session.State
	metrics    *metrics.Metrics
	clock      timeutil.Clock
	pluginMgr  *plugin.Manager
	pluginExec *plugin.Executor
	dispatcher *reaction.Dispatcher

	// trackMu serialises access to the event detector, which is driven by
	// the capture loop and reset from API calls.
	trackMu sync.Mutex
	events  *events.Detector

	mu           sync.RWMutex
	thresholds   events.Thresholds
	detStatus    string
	detMessage   string
	lastReaction *reaction.Reaction
	stopCh       chan struct{}
	cancel       context.CancelFunc
	wg           sync.WaitGroup

	detReady atomic.Bool
	eventCh  chan pending

	subsMu sync.Mutex
	subs   map[chan Notice]struct{}

	frameMu    sync.RWMutex
	latestJPEG []byte
	fps        float64
}

// New creates an App. It does not open the camera or load the model; call
// Start for that.
func New(cfg Config) (*App, error) {
	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	ec := settings.Events
	tracker, err := events.New(events.Options{
		Clock:         clock,
		PersistFrames: ec.PersistFrames,
		Decay:         ec.Decay,
		Sensitivity:   events.Sensitivity{Fresh: ec.FreshConfidence, Tracking: ec.TrackingConfidence},
	})
	if err != nil {
		return nil, fmt.Errorf("event detector: %w", err)
	}

	a := &App{
		settings:   settings,
		store:      cfg.Store,
		camera:     cfg.Camera,
		detector:   cfg.Detector,
		responder:  cfg.Responder,
		metrics:    cfg.Metrics,
		clock:      clock,
		events:     tracker,
		session:    session.New(clock, settings.Detector.TargetLabel),
		pluginMgr:  plugin.NewManager(settings.Reaction.PluginDir),
		pluginExec: plugin.NewExecutor(settings.Reaction.PluginTimeout.Std()),
		thresholds: events.Thresholds{
			Pickup:   ec.PickupThreshold,
			Putdown:  ec.PutdownThreshold,
			Cooldown: ec.Cooldown.Std(),
		},
		detStatus: detector.StatusLoading,
		eventCh:   make(chan pending, EventQueueSize),
		subs:      make(map[chan Notice]struct{}),
	}

	if a.camera == nil {
		a.camera = capture.NewCamera(capture.Options{Device: settings.Camera.Device, FPS: settings.Camera.FPS})
	}
	if a.detector == nil {
		a.detector = newDetector(settings.Detector)
	}
	if a.responder == nil {
		a.responder = reaction.NewResponder(settings.Reaction.GroqAPIKey, settings.Reaction.GroqModel, func(err error) {
			logger.Warn("reaction", "language model failed, using prewritten line: %v", err)
		})
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}

	dc := reaction.DispatcherConfig{
		Responder:   a.responder,
		Plugins:     a.pluginMgr,
		Runner:      a.pluginExec,
		Personality: settings.Reaction.Personality,
		Praise:      settings.Reaction.Praise,
		Now:         clock.Now,
	}
	if a.store != nil {
		dc.Bindings = a.store.Actions()
	}
	a.dispatcher = reaction.NewDispatcher(dc)
	a.session.SetPraise(settings.Reaction.Praise)

	if err := a.loadSettings(); err != nil {
		logger.Warn("app", "ignoring stored settings: %v", err)
	}

	return a, nil
}

// Start opens the camera, loads the model in the background and starts
// the capture loop and reaction consumer.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopCh != nil {
		return nil
	}

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	if a.settings.Camera.FPS > 0 {
		a.camera.SetFPS(a.settings.Camera.FPS)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.stopCh = make(chan struct{})

	a.wg.Add(3)
	go a.initDetector()
	go a.runPipeline(a.stopCh)
	go a.runReactions(ctx)

	logger.Info("app", "pipeline started (camera %d, detector %s)", a.settings.Camera.Device, a.detector.Name())
	return nil
}

// Stop halts the pipeline and releases the camera and detector.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopCh == nil {
		a.mu.Unlock()
		return
	}
	close(a.stopCh)
	a.cancel()
	a.stopCh = nil
	a.mu.Unlock()

	a.wg.Wait()

	if err := a.camera.Close(); err != nil {
		logger.Warn("app", "error closing camera: %v", err)
	}
	if err := a.detector.Close(); err != nil {
		logger.Warn("app", "error closing detector: %v", err)
	}

	logger.Info("app", "pipeline stopped")
}

func (a *App) initDetector() {
	defer a.wg.Done()

	err := a.detector.Init(a.setDetectorStatus)
	if err != nil {
		a.setDetectorStatus(detector.StatusFailed, err.Error())
		logger.Error("app", "detector %s failed to initialise: %v", a.detector.Name(), err)
		return
	}
	a.detReady.Store(true)
	a.setDetectorStatus(detector.StatusReady, a.detector.Name())
	logger.Info("app", "detector ready: %s", a.detector.Name())
}

func (a *App) setDetectorStatus(status, message string) {
	a.mu.Lock()
	a.detStatus = status
	a.detMessage = message
	a.mu.Unlock()
}

// DiscoverPlugins scans the plugin directory and seeds default bindings
// when none are stored yet.
func (a *App) DiscoverPlugins() error {
	if err := a.pluginMgr.Discover(); err != nil {
		return err
	}
	for _, p := range a.pluginMgr.List() {
		logger.Info("app", "plugin %s %s: %v", p.Manifest.Name, p.Manifest.Version, p.Manifest.Actions)
	}
	return a.seedBindings()
}

// defaultBindings are created for discovered plugins on first run.
var defaultBindings = []struct {
	plugin, action string
	kinds          []events.Event
}{
	{"say", "speak", []events.Event{events.EventPickedUp, events.EventPutDown}},
	{"reachy", "animate", []events.Event{events.EventPickedUp, events.EventPutDown}},
	{"notify", "notify", []events.Event{events.EventPickedUp}},
}

func (a *App) seedBindings() error {
	if a.store == nil {
		return nil
	}
	n, err := a.store.Actions().Count()
	if err != nil || n > 0 {
		return err
	}

	for _, b := range defaultBindings {
		p, err := a.pluginMgr.Get(b.plugin)
		if errors.Is(err, plugin.ErrPluginNotFound) || (err == nil && !p.Manifest.SupportsAction(b.action)) {
			continue
		}
		for _, kind := range b.kinds {
			act := &store.Action{
				ID:         fmt.Sprintf("default-%s-%s", b.plugin, kind),
				EventKind:  kind.String(),
				PluginName: b.plugin,
				ActionName: b.action,
				Enabled:    true,
			}
			if err := a.store.Actions().Create(act); err != nil {
				return fmt.Errorf("seed binding %s: %w", act.ID, err)
			}
			logger.Info("app", "bound %s/%s to %s", b.plugin, b.action, kind)
		}
	}
	return nil
}

// StartMonitoring begins or resumes watching. fresh clears the session
// and pickup count; resuming keeps the count but forgets any tracking
// state from before the pause.
func (a *App) StartMonitoring(fresh bool) Status {
	resetCount := a.session.Start(fresh)

	a.trackMu.Lock()
	if resetCount {
		a.events.Reset()
	} else {
		a.events.ResetTracking()
	}
	a.trackMu.Unlock()

	a.metrics.Monitoring.Store(true)
	logger.Info("app", "monitoring started (fresh=%t)", resetCount)
	return a.Status()
}

// StopMonitoring pauses watching and freezes the streak.
func (a *App) StopMonitoring() Status {
	a.session.Stop()

	a.trackMu.Lock()
	a.events.ResetTracking()
	a.trackMu.Unlock()

	a.metrics.Monitoring.Store(false)
	a.metrics.Visible.Store(false)
	logger.Info("app", "monitoring stopped")
	return a.Status()
}

// ToggleMonitoring stops when monitoring and starts otherwise.
func (a *App) ToggleMonitoring(fresh bool) Status {
	if a.session.Monitoring() {
		return a.StopMonitoring()
	}
	return a.StartMonitoring(fresh)
}

// ResetStats clears the pickup count, tracking state and session totals.
// The stored event log is kept.
func (a *App) ResetStats() Status {
	a.session.Reset()

	a.trackMu.Lock()
	a.events.Reset()
	a.trackMu.Unlock()

	a.metrics.PickupCount.Store(0)
	a.metrics.Visible.Store(false)
	logger.Info("app", "stats reset")
	return a.Status()
}

// TestReaction runs the pickup reaction for the next pickup number without
// touching the counters.
func (a *App) TestReaction(ctx context.Context) (reaction.Reaction, error) {
	a.trackMu.Lock()
	count := a.events.Stats().PickupCount + 1
	a.trackMu.Unlock()

	r, err := a.dispatcher.Handle(ctx, events.EventPickedUp, count)
	a.setLastReaction(r)
	a.publish(Notice{Type: NoticeReaction, Event: r.Event, Count: count, Reaction: &r, At: r.At})
	return r, err
}

// Status returns a snapshot of the session, detector and pipeline.
func (a *App) Status() Status {
	a.trackMu.Lock()
	stats := a.events.Stats()
	a.trackMu.Unlock()

	a.mu.RLock()
	st := Status{
		Status:          a.session.Snapshot(stats),
		Detector:        a.detector.Name(),
		DetectorStatus:  a.detStatus,
		DetectorMessage: a.detMessage,
		Tracking:        stats.Tracking,
		Personality:     a.dispatcher.Personality(),
		Mode:            a.detector.Name() + " | " + a.responder.Name(),
		LastReaction:    a.lastReaction,
	}
	a.mu.RUnlock()

	_, st.FPS = a.LatestFrame()
	return st
}

func (a *App) setLastReaction(r reaction.Reaction) {
	a.mu.Lock()
	a.lastReaction = &r
	a.mu.Unlock()
}

// Subscribe returns a channel of notices and a function that cancels the
// subscription. Slow subscribers miss notices rather than block the
// pipeline.
func (a *App) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, subscriberBuffer)

	a.subsMu.Lock()
	a.subs[ch] = struct{}{}
	a.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			a.subsMu.Lock()
			delete(a.subs, ch)
			a.subsMu.Unlock()
			close(ch)
		})
	}
}

func (a *App) publish(n Notice) {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()

	for ch := range a.subs {
		select {
		case ch <- n:
		default:
		}
	}
}

// LatestFrame returns the most recent annotated JPEG and the measured
// capture rate.
func (a *App) LatestFrame() ([]byte, float64) {
	a.frameMu.RLock()
	defer a.frameMu.RUnlock()
	return a.latestJPEG, a.fps
}

// Store returns the backing store, which may be nil.
func (a *App) Store() *store.Store {
	return a.store
}

// Metrics returns the metrics collector.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.pluginMgr
}

// Detector returns the object detector backend.
func (a *App) Detector() detector.Detector {
	return a.detector
}
