// Package main provides the say plugin: it speaks a reaction line using
// the edge-tts CLI, or ElevenLabs when ELEVENLABS_API_KEY is set, and plays
// the result with a local audio player.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
	"unicode/utf8"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action string          `json:"action"`
	Event  string          `json:"event"`
	Text   string          `json:"text"`
	Count  int             `json:"count"`
	Voice  string          `json:"voice"`
	Config json.RawMessage `json:"config"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Config is the per-binding configuration.
type Config struct {
	Voice  string `json:"voice"`  // overrides the personality voice
	Rate   string `json:"rate"`   // edge-tts rate, e.g. "+10%"
	Player string `json:"player"` // audio player command, auto-detected when empty

	MonthlyLimit int    `json:"monthly_limit"` // ElevenLabs characters per month, 9000 when zero
	UsageFile    string `json:"usage_file"`    // ElevenLabs usage counter, relative to the plugin dir
}

const (
	defaultVoice      = "en-US-GuyNeural"
	elevenLabsVoiceID = "JBFqnCBsd6RMkjVDRZzb"
	elevenLabsModel   = "eleven_turbo_v2_5"
)

var elevenLabsURL = "https://api.elevenlabs.io/v1/text-to-speech/"

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

	switch req.Action {
	case "speak":
		engine, err := speak(req, cfg)
		if err != nil {
			writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
			return
		}
		writeSuccessResponse(map[string]string{"engine": engine})
	default:
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
	}
}

func speak(req Request, cfg Config) (string, error) {
	if req.Text == "" {
		return "", fmt.Errorf("text is required")
	}

	voice := cfg.Voice
	if voice == "" {
		voice = req.Voice
	}
	if voice == "" {
		voice = defaultVoice
	}

	out := filepath.Join(os.TempDir(), fmt.Sprintf("judgy-say-%d.mp3", os.Getpid()))
	defer os.Remove(out)

	engine := "edge-tts"
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		if tryElevenLabs(key, req.Text, out, cfg, time.Now()) {
			engine = "elevenlabs"
		}
	}
	if engine == "edge-tts" {
		if err := synthesizeEdge(req.Text, voice, cfg.Rate, out); err != nil {
			return "", err
		}
	}

	return engine, play(cfg.Player, out)
}

// tryElevenLabs synthesizes with ElevenLabs while the monthly character
// budget allows it and records the spend on success.
func tryElevenLabs(key, text, out string, cfg Config, now time.Time) bool {
	limit := cfg.MonthlyLimit
	if limit <= 0 {
		limit = defaultMonthlyLimit
	}
	path := cfg.UsageFile
	if path == "" {
		path = defaultUsageFile
	}

	n := utf8.RuneCountInString(text)
	u := loadUsage(path, now)
	if !u.allows(n, limit) {
		fmt.Fprintf(os.Stderr, "elevenlabs monthly limit reached (%d/%d chars), using edge-tts\n", u.Chars, limit)
		return false
	}

	if err := synthesizeElevenLabs(key, text, out); err != nil {
		fmt.Fprintf(os.Stderr, "elevenlabs failed, using edge-tts: %v\n", err)
		return false
	}

	u.Chars += n
	if err := saveUsage(path, u); err != nil {
		fmt.Fprintf(os.Stderr, "failed to save elevenlabs usage: %v\n", err)
	}
	return true
}

func synthesizeEdge(text, voice, rate, out string) error {
	args := []string{"--voice", voice, "--text", text, "--write-media", out}
	if rate != "" {
		args = append(args, "--rate", rate)
	}
	cmd := exec.Command("edge-tts", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("edge-tts: %w: %s", err, output)
	}
	return nil
}

func synthesizeElevenLabs(apiKey, text, out string) error {
	body, err := json.Marshal(map[string]string{"text": text, "model_id": elevenLabsModel})
	if err != nil {
		return err
	}

	req, err := http.NewRequest("POST", elevenLabsURL+elevenLabsVoiceID, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", apiKey)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, resp.Body)
	return err
}

// play runs the first available player on path.
func play(player, path string) error {
	candidates := [][]string{
		{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet"},
		{"mpg123", "-q"},
	}
	if runtime.GOOS == "darwin" {
		candidates = append([][]string{{"afplay"}}, candidates...)
	}
	if player != "" {
		candidates = [][]string{{player}}
	}

	for _, c := range candidates {
		if _, err := exec.LookPath(c[0]); err != nil {
			continue
		}
		cmd := exec.Command(c[0], append(c[1:], path)...)
		if output, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("%s: %w: %s", c[0], err, output)
		}
		return nil
	}
	return fmt.Errorf("no audio player found")
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	json.NewEncoder(os.Stdout).Encode(Response{Success: false, Error: errMsg})
}

// writeSuccessResponse writes a success response with data to stdout.
func writeSuccessResponse(data any) {
	raw, _ := json.Marshal(data)
	json.NewEncoder(os.Stdout).Encode(Response{Success: true, Data: raw})
}
