package detector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// healthTTL is how long a successful health check is trusted.
const healthTTL = 30 * time.Second

// HTTPDetector posts frames to a YOLO detection service.
type HTTPDetector struct {
	endpoint string
	client   *http.Client

	mu          sync.RWMutex
	initialized bool
	device      string
	healthyAt   time.Time
}

type healthResponse struct {
	Status      string `json:"status"`
	Device      string `json:"device"`
	ModelLoaded bool   `json:"model_loaded"`
}

// NewHTTPDetector creates a detector for the service at endpoint.
func NewHTTPDetector(endpoint string) *HTTPDetector {
	return &HTTPDetector{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Name implements Detector.
func (d *HTTPDetector) Name() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.device != "" {
		return "yolo-http (" + d.device + ")"
	}
	return "yolo-http"
}

// Init waits for the service to report a loaded model.
func (d *HTTPDetector) Init(progress ProgressFunc) error {
	d.mu.RLock()
	done := d.initialized
	d.mu.RUnlock()
	if done {
		return nil
	}

	report(progress, StatusLoading, "contacting "+d.endpoint)
	health, err := d.health()
	if err != nil {
		report(progress, StatusFailed, err.Error())
		return err
	}
	if !health.ModelLoaded {
		err := fmt.Errorf("detection service at %s has no model loaded", d.endpoint)
		report(progress, StatusFailed, err.Error())
		return err
	}

	d.mu.Lock()
	d.initialized = true
	d.device = health.Device
	d.healthyAt = time.Now()
	d.mu.Unlock()

	report(progress, StatusReady, "model loaded on "+health.Device)
	return nil
}

// Detect encodes frame and sends it to the service.
func (d *HTTPDetector) Detect(frame *gocv.Mat, minConfidence float64) ([]Detection, error) {
	data, err := encodeJPEG(frame)
	if err != nil {
		return nil, err
	}
	return d.DetectJPEG(data, minConfidence)
}

// DetectJPEG sends an encoded frame as multipart form data to /detect.
func (d *HTTPDetector) DetectJPEG(data []byte, minConfidence float64) ([]Detection, error) {
	if !d.isHealthy() {
		return nil, ErrNotInitialized
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", "frame.jpg")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := w.WriteField("conf_threshold", fmt.Sprintf("%.3f", minConfidence)); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, d.endpoint+"/detect", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		d.markUnhealthy()
		return nil, fmt.Errorf("detection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detection service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Detections []wireDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode detection response: %w", err)
	}
	return aboveConfidence(fromWire(result.Detections), minConfidence), nil
}

// Close implements Detector.
func (d *HTTPDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func (d *HTTPDetector) health() (*healthResponse, error) {
	resp, err := d.client.Get(d.endpoint + "/health")
	if err != nil {
		return nil, fmt.Errorf("detection service health: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detection service health returned %d", resp.StatusCode)
	}

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health response: %w", err)
	}
	return &h, nil
}

// isHealthy re-checks the service at most once per healthTTL.
func (d *HTTPDetector) isHealthy() bool {
	d.mu.RLock()
	initialized, at := d.initialized, d.healthyAt
	d.mu.RUnlock()

	if !initialized {
		return false
	}
	if time.Since(at) < healthTTL {
		return true
	}

	h, err := d.health()
	if err != nil || !h.ModelLoaded {
		return false
	}
	d.mu.Lock()
	d.healthyAt = time.Now()
	d.mu.Unlock()
	return true
}

func (d *HTTPDetector) markUnhealthy() {
	d.mu.Lock()
	d.healthyAt = time.Time{}
	d.mu.Unlock()
}
