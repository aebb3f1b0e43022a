// Package main provides the reachy plugin: it plays a named animation on a
// Reachy Mini robot through the daemon's HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action    string          `json:"action"`
	Event     string          `json:"event"`
	Count     int             `json:"count"`
	Animation string          `json:"animation"`
	Config    json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-binding configuration.
type Config struct {
	URL string `json:"url"`
}

const defaultURL = "http://localhost:8000"

// HeadPose is a head target in millimetres and degrees.
type HeadPose struct {
	Z    float64 `json:"z"`
	Roll float64 `json:"roll"`
}

// Step is one goto target followed by a pause.
type Step struct {
	Head          *HeadPose     `json:"head_pose,omitempty"`
	Antennas      []float64     `json:"antennas,omitempty"`
	BodyYaw       *float64      `json:"body_yaw,omitempty"`
	Duration      float64       `json:"duration"`
	Interpolation string        `json:"interpolation,omitempty"`
	Pause         time.Duration `json:"-"`
}

func head(z, roll float64) *HeadPose { return &HeadPose{Z: z, Roll: roll} }

func yaw(deg float64) *float64 {
	r := deg * math.Pi / 180
	return &r
}

func repeat(n int, steps ...Step) []Step {
	out := make([]Step, 0, n*len(steps))
	for i := 0; i < n; i++ {
		out = append(out, steps...)
	}
	return out
}

// animations maps animation names to their goto sequences.
var animations = map[string][]Step{
	"curious_look": {
		{Head: head(5, 15), Antennas: []float64{0.4, 0.2}, Duration: 0.4, Interpolation: "minjerk", Pause: 300 * time.Millisecond},
	},
	"disappointed_shake": append(
		repeat(3,
			Step{Head: head(0, -15), Antennas: []float64{-0.1, -0.1}, Duration: 0.15, Pause: 150 * time.Millisecond},
			Step{Head: head(0, 15), Antennas: []float64{-0.1, -0.1}, Duration: 0.15, Pause: 150 * time.Millisecond},
		),
		Step{Head: head(0, 0), Antennas: []float64{0, 0}, Duration: 0.3},
	),
	"dramatic_sigh": {
		{Head: head(10, 0), Antennas: []float64{0.5, 0.5}, Duration: 0.4, Pause: 400 * time.Millisecond},
		{Head: head(-5, 0), Antennas: []float64{-0.3, -0.3}, Duration: 0.6, Pause: 800 * time.Millisecond},
		{BodyYaw: yaw(30), Duration: 0.5, Pause: time.Second},
		{Head: head(0, 0), Antennas: []float64{0, 0}, BodyYaw: yaw(0), Duration: 0.5},
	},
	"approving_nod": append(
		repeat(2,
			Step{Head: head(-3, 0), Antennas: []float64{0.2, 0.2}, Duration: 0.2, Pause: 200 * time.Millisecond},
			Step{Head: head(3, 0), Antennas: []float64{0.2, 0.2}, Duration: 0.2, Pause: 200 * time.Millisecond},
		),
		Step{Head: head(0, 0), Antennas: []float64{0.1, 0.1}, Duration: 0.3},
	),
	"idle_breathing": {
		{Antennas: []float64{0.15, 0.15}, Duration: 0.8, Interpolation: "minjerk", Pause: 800 * time.Millisecond},
		{Antennas: []float64{0.05, 0.05}, Duration: 0.8, Interpolation: "minjerk", Pause: 800 * time.Millisecond},
	},
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	var cfg Config
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("failed to parse config: %v", err))
			return
		}
	}
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}

	if req.Action != "animate" {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	steps, ok := animations[req.Animation]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown animation: %s", req.Animation))
		return
	}

	client := &http.Client{Timeout: 2 * time.Second}
	if err := play(client, cfg.URL, steps, time.Sleep); err != nil {
		writeErrorResponse(fmt.Sprintf("animation %s failed: %v", req.Animation, err))
		return
	}

	writeSuccessResponse()
}

// play sends each step to the daemon's goto endpoint, pausing in between.
func play(client *http.Client, baseURL string, steps []Step, sleep func(time.Duration)) error {
	endpoint := strings.TrimSuffix(baseURL, "/") + "/api/move/goto"
	for i, step := range steps {
		body, err := json.Marshal(step)
		if err != nil {
			return err
		}
		resp, err := client.Post(endpoint, "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("step %d: daemon returned %s", i, resp.Status)
		}
		if step.Pause > 0 {
			sleep(step.Pause)
		}
	}
	return nil
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	json.NewEncoder(os.Stdout).Encode(Response{Success: true})
}
