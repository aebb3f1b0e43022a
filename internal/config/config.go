// Package config loads and validates judgy's JSON configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalid wraps every validation failure returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Detector backends.
const (
	BackendSidecar = "sidecar"
	BackendHTTP    = "http"
	BackendMock    = "mock"
)

// Duration is a time.Duration that reads and writes JSON as a string like "10s".
type Duration time.Duration

// MarshalJSON encodes d as a duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON accepts a duration string or a plain number of seconds.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parse duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}
	var secs float64
	if err := json.Unmarshal(b, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds: %s", b)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// CameraConfig selects the capture device and frame pacing.
type CameraConfig struct {
	Device int `json:"device"`
	FPS    int `json:"fps"`
	// DetectEvery runs the object detector on every Nth captured frame.
	DetectEvery int `json:"detect_every"`
}

// DetectorConfig selects and parameterises the object detector backend.
type DetectorConfig struct {
	Backend     string `json:"backend"`
	Python      string `json:"python,omitempty"`
	Script      string `json:"script,omitempty"`
	Model       string `json:"model"`
	Device      string `json:"device"`
	URL         string `json:"url,omitempty"`
	TargetClass int    `json:"target_class"`
	TargetLabel string `json:"target_label"`
}

// EventsConfig holds the debounce parameters.
type EventsConfig struct {
	PickupThreshold    int      `json:"pickup_threshold"`
	PutdownThreshold   int      `json:"putdown_threshold"`
	Cooldown           Duration `json:"cooldown"`
	PersistFrames      int      `json:"persist_frames"`
	Decay              float64  `json:"decay"`
	FreshConfidence    float64  `json:"fresh_confidence"`
	TrackingConfidence float64  `json:"tracking_confidence"`
}

// ReactionConfig controls how events are turned into responses.
type ReactionConfig struct {
	Personality   string   `json:"personality"`
	Praise        bool     `json:"praise"`
	GroqAPIKey    string   `json:"groq_api_key,omitempty"`
	GroqModel     string   `json:"groq_model"`
	PluginDir     string   `json:"plugin_dir"`
	PluginTimeout Duration `json:"plugin_timeout"`
}

// ServerConfig controls the HTTP control surface.
type ServerConfig struct {
	Addr      string `json:"addr"`
	StaticDir string `json:"static_dir,omitempty"`
}

// Config is the root configuration.
type Config struct {
	DataDir  string         `json:"data_dir"`
	LogLevel string         `json:"log_level"`
	Camera   CameraConfig   `json:"camera"`
	Detector DetectorConfig `json:"detector"`
	Events   EventsConfig   `json:"events"`
	Reaction ReactionConfig `json:"reaction"`
	Server   ServerConfig   `json:"server"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	dataDir := ".judgy"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".judgy")
	}

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		Camera: CameraConfig{
			Device:      0,
			FPS:         15,
			DetectEvery: 3,
		},
		Detector: DetectorConfig{
			Backend:     BackendSidecar,
			Model:       "yolov8n.pt",
			Device:      "auto",
			TargetClass: 67,
			TargetLabel: "cell phone",
		},
		Events: EventsConfig{
			PickupThreshold:    3,
			PutdownThreshold:   15,
			Cooldown:           Duration(10 * time.Second),
			PersistFrames:      3,
			Decay:              0.9,
			FreshConfidence:    0.5,
			TrackingConfidence: 0.3,
		},
		Reaction: ReactionConfig{
			Personality:   "angry_boss",
			Praise:        true,
			GroqModel:     "llama-3.1-8b-instant",
			PluginDir:     filepath.Join(dataDir, "plugins"),
			PluginTimeout: Duration(5 * time.Second),
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// DefaultPath returns ~/.judgy/config.json.
func DefaultPath() string {
	return filepath.Join(Default().DataDir, "config.json")
}

// Load reads the config at path on top of Default. A missing file yields the
// defaults. GROQ_API_KEY in the environment fills an empty key.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if cfg.Reaction.GroqAPIKey == "" {
		cfg.Reaction.GroqAPIKey = os.Getenv("GROQ_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON, creating parent directories.
// The API key is never written back.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	out := *c
	out.Reaction.GroqAPIKey = ""

	data, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Camera.FPS <= 0 {
		add("camera.fps must be positive, got %d", c.Camera.FPS)
	}
	if c.Camera.DetectEvery <= 0 {
		add("camera.detect_every must be positive, got %d", c.Camera.DetectEvery)
	}

	switch c.Detector.Backend {
	case BackendSidecar, BackendMock:
	case BackendHTTP:
		if c.Detector.URL == "" {
			add("detector.url is required for the http backend")
		}
	default:
		add("detector.backend must be one of sidecar, http, mock; got %q", c.Detector.Backend)
	}
	if c.Detector.TargetClass < 0 {
		add("detector.target_class must not be negative, got %d", c.Detector.TargetClass)
	}

	e := c.Events
	if e.PickupThreshold <= 0 {
		add("events.pickup_threshold must be positive, got %d", e.PickupThreshold)
	}
	if e.PutdownThreshold <= 0 {
		add("events.putdown_threshold must be positive, got %d", e.PutdownThreshold)
	}
	if e.PickupThreshold > 0 && e.PutdownThreshold > 0 && e.PutdownThreshold < e.PickupThreshold {
		add("events.putdown_threshold must be at least events.pickup_threshold, got %d < %d", e.PutdownThreshold, e.PickupThreshold)
	}
	if e.Cooldown < 0 {
		add("events.cooldown must not be negative, got %s", e.Cooldown.Std())
	}
	if e.PersistFrames < 0 {
		add("events.persist_frames must not be negative, got %d", e.PersistFrames)
	}
	if e.Decay <= 0 || e.Decay > 1 {
		add("events.decay must be in (0, 1], got %g", e.Decay)
	}
	if !inUnit(e.FreshConfidence) {
		add("events.fresh_confidence must be in [0, 1], got %g", e.FreshConfidence)
	}
	if !inUnit(e.TrackingConfidence) {
		add("events.tracking_confidence must be in [0, 1], got %g", e.TrackingConfidence)
	}

	if c.Reaction.PluginTimeout <= 0 {
		add("reaction.plugin_timeout must be positive, got %s", c.Reaction.PluginTimeout.Std())
	}
	if c.Server.Addr == "" {
		add("server.addr is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
