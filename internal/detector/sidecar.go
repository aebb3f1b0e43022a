package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// SidecarDetector runs a YOLO model in a Python subprocess.
//
// Each request is a 4-byte big-endian JPEG length, a 4-byte big-endian
// float32 confidence threshold and the JPEG bytes. Each response is one JSON
// line. While loading, the process emits {"status", "message"} lines ending
// with status "ready" or "failed".
type SidecarDetector struct {
	config Config

	mu          sync.Mutex
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      *bufio.Reader
	started     bool
	initialized bool
	device      string
	idleTimer   *time.Timer
}

// NewSidecarDetector creates a sidecar detector. The process is not started
// until Init.
func NewSidecarDetector(config Config) (*SidecarDetector, error) {
	if config.Command == "" {
		script := findScript("yolo_service.py")
		if script == "" {
			return nil, fmt.Errorf("yolo_service.py not found")
		}
		python := findVenvPython()
		if python == "" {
			python = "python3"
		}
		config.Command = python
		config.Args = append([]string{script}, config.Args...)
	}
	return &SidecarDetector{config: config}, nil
}

// Name implements Detector.
func (d *SidecarDetector) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.device != "" {
		return "yolo-sidecar (" + d.device + ")"
	}
	return "yolo-sidecar"
}

// Init starts the subprocess and waits for the model to load.
func (d *SidecarDetector) Init(progress ProgressFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.initialized {
		return nil
	}
	if err := d.start(progress); err != nil {
		report(progress, StatusFailed, err.Error())
		return err
	}
	d.initialized = true
	return nil
}

// Detect analyzes a frame and returns the detections above minConfidence.
func (d *SidecarDetector) Detect(frame *gocv.Mat, minConfidence float64) ([]Detection, error) {
	data, err := encodeJPEG(frame)
	if err != nil {
		return nil, err
	}
	return d.DetectJPEG(data, minConfidence)
}

// DetectJPEG sends an already encoded frame to the subprocess.
func (d *SidecarDetector) DetectJPEG(data []byte, minConfidence float64) ([]Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.initialized {
		return nil, ErrNotInitialized
	}
	// Restart after an idle shutdown.
	if !d.started {
		if err := d.start(nil); err != nil {
			return nil, err
		}
	}

	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	binary.BigEndian.PutUint32(header[4:], math.Float32bits(float32(minConfidence)))

	if _, err := d.stdin.Write(header); err != nil {
		d.kill()
		return nil, fmt.Errorf("write header: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		d.kill()
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.kill()
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp struct {
		Detections []wireDetection `json:"detections"`
		Error      string          `json:"error"`
	}
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("sidecar: %s", resp.Error)
	}

	d.resetIdleTimer()
	return aboveConfidence(fromWire(resp.Detections), minConfidence), nil
}

// Close shuts down the subprocess.
func (d *SidecarDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.initialized = false
	return d.shutdown()
}

func (d *SidecarDetector) start(progress ProgressFunc) error {
	args := append([]string{}, d.config.Args...)
	if d.config.Model != "" {
		args = append(args, "--model", d.config.Model)
	}
	if d.config.Device != "" {
		args = append(args, "--device", d.config.Device)
	}

	cmd := exec.Command(d.config.Command, args...)
	cmd.Env = append(os.Environ(), d.config.Env...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	report(progress, StatusLoading, "starting "+filepath.Base(d.config.Command))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start detector sidecar: %w", err)
	}

	d.cmd = cmd
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true

	for {
		line, err := d.stdout.ReadBytes('\n')
		if err != nil {
			d.kill()
			return fmt.Errorf("sidecar exited while loading: %w", err)
		}

		var msg struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Device  string `json:"device"`
		}
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}

		switch msg.Status {
		case StatusReady:
			d.device = msg.Device
			report(progress, StatusReady, msg.Message)
			d.resetIdleTimer()
			return nil
		case StatusFailed:
			d.kill()
			return errors.New("sidecar failed to load model: " + msg.Message)
		default:
			report(progress, StatusLoading, msg.Message)
		}
	}
}

func (d *SidecarDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}
	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil
	return err
}

// kill tears down a process that broke the protocol.
func (d *SidecarDetector) kill() {
	if d.cmd != nil && d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.shutdown()
}

func (d *SidecarDetector) resetIdleTimer() {
	if d.config.IdleTimeout <= 0 {
		return
	}
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	d.idleTimer = time.AfterFunc(d.config.IdleTimeout, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.shutdown()
	})
}

func findScript(name string) string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", name),
		filepath.Join("..", "scripts", name),
		filepath.Join(execDir, "scripts", name),
		filepath.Join(os.Getenv("HOME"), ".judgy", "scripts", name),
	}
	return firstExisting(candidates)
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".judgy/venv/bin/python"),
	}
	return firstExisting(candidates)
}

func firstExisting(paths []string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs
			}
			return path
		}
	}
	return ""
}
