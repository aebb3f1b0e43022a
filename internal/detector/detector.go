// Package detector wraps the external object classifier that reports, per
// frame, where the target object is and how confident the model is.
package detector

import (
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// ErrNotInitialized is returned by Detect when Init has not completed.
var ErrNotInitialized = errors.New("detector not initialized")

// Progress statuses reported during Init.
const (
	StatusLoading = "loading"
	StatusReady   = "ready"
	StatusFailed  = "failed"
)

// ProgressFunc observes model loading. It must not block.
type ProgressFunc func(status, message string)

// Detector defines the interface for object detection backends.
type Detector interface {
	// Init loads the model. It is safe to call more than once; calls after a
	// successful Init return nil immediately.
	Init(progress ProgressFunc) error

	// Detect returns the detections in frame with confidence at or above
	// minConfidence. An empty slice means nothing was found.
	Detect(frame *gocv.Mat, minConfidence float64) ([]Detection, error)

	// Name identifies the backend in logs and status output.
	Name() string

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds the settings shared by detector backends.
type Config struct {
	// Command and Args start the sidecar. Empty Command means a python
	// interpreter running scripts/yolo_service.py.
	Command string
	Args    []string
	Env     []string

	Model  string
	Device string

	// URL is the base address of an HTTP detection service.
	URL string

	// IdleTimeout stops an idle sidecar process. Zero keeps it running.
	IdleTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Model:       "yolov8n.pt",
		Device:      "auto",
		IdleTimeout: 30 * time.Second,
	}
}

// encodeJPEG encodes frame for transport to an out-of-process model.
func encodeJPEG(frame *gocv.Mat) ([]byte, error) {
	if frame == nil || frame.Empty() {
		return nil, errors.New("empty frame")
	}
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}

func report(progress ProgressFunc, status, message string) {
	if progress != nil {
		progress(status, message)
	}
}
