package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu          sync.Mutex
	detections  []Detection
	script      [][]Detection
	err         error
	initErr     error
	initialized bool
	initCalls   int
	confidences []float64
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetDetections sets the detections returned by every Detect call.
func (m *MockDetector) SetDetections(dets []Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections = dets
}

// Script queues per-call results; each Detect consumes one entry before
// falling back to the value from SetDetections.
func (m *MockDetector) Script(frames ...[]Detection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, frames...)
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetInitError makes Init fail with err.
func (m *MockDetector) SetInitError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initErr = err
}

// Name implements Detector.
func (m *MockDetector) Name() string { return "mock" }

// Init marks the mock ready unless an init error is configured.
func (m *MockDetector) Init(progress ProgressFunc) error {
	m.mu.Lock()
	m.initCalls++
	if m.initialized {
		m.mu.Unlock()
		return nil
	}
	err := m.initErr
	if err == nil {
		m.initialized = true
	}
	m.mu.Unlock()

	if err != nil {
		report(progress, StatusFailed, err.Error())
		return err
	}
	report(progress, StatusLoading, "mock model")
	report(progress, StatusReady, "mock model ready")
	return nil
}

// InitCalls returns how many times Init was called.
func (m *MockDetector) InitCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCalls
}

// Detect returns the configured detections above minConfidence.
func (m *MockDetector) Detect(frame *gocv.Mat, minConfidence float64) ([]Detection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.confidences = append(m.confidences, minConfidence)
	if !m.initialized {
		return nil, ErrNotInitialized
	}
	if m.err != nil {
		return nil, m.err
	}

	dets := m.detections
	if len(m.script) > 0 {
		dets = m.script[0]
		m.script = m.script[1:]
	}
	return aboveConfidence(dets, minConfidence), nil
}

// Confidences returns the thresholds passed to Detect, in call order.
func (m *MockDetector) Confidences() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.confidences...)
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Phone returns a cell phone detection with the given confidence.
func Phone(confidence float64) Detection {
	return Detection{
		Box:        Box{X1: 200, Y1: 150, X2: 320, Y2: 380},
		Confidence: confidence,
		ClassID:    CellPhoneClassID,
		Label:      CellPhoneLabel,
	}
}
