package reaction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/judgy/internal/events"
)

// GroqEndpoint is the OpenAI-compatible chat completions endpoint.
const GroqEndpoint = "https://api.groq.com/openai/v1/chat/completions"

// DefaultGroqModel is the model used when none is configured.
const DefaultGroqModel = "llama-3.1-8b-instant"

const (
	shameSystemPrompt = "You are a snarky desk robot watching someone work.\n" +
		"They just picked up their phone instead of working.\n" +
		"Be judgmental but funny. One short sentence only.\n" +
		"No emoji. No hashtags. Keep it under 15 words."
	praiseSystemPrompt = "You are a desk robot. User just put their phone down.\n" +
		"Give brief approval. One short sentence. No emoji."

	shameMaxTokens  = 50
	praiseMaxTokens = 30
	temperature     = 0.9
)

// ErrUnsupportedEvent is returned for events that have no line.
var ErrUnsupportedEvent = errors.New("reaction: no line for event")

// Prompt is what a Responder needs to produce one line.
type Prompt struct {
	Event       events.Event
	Count       int
	Personality Personality
}

// Responder produces a spoken line for an event.
type Responder interface {
	Generate(ctx context.Context, p Prompt) (string, error)
	Name() string
}

// Prewritten picks a line from the personality's canned lists.
type Prewritten struct {
	pick func(n int) int
}

// NewPrewritten returns a Prewritten responder. pick chooses an index in
// [0,n) and defaults to rand.IntN.
func NewPrewritten(pick func(n int) int) *Prewritten {
	if pick == nil {
		pick = rand.IntN
	}
	return &Prewritten{pick: pick}
}

func (r *Prewritten) Name() string { return "prewritten" }

func (r *Prewritten) Generate(_ context.Context, p Prompt) (string, error) {
	persona := p.Personality
	if len(persona.Shame) == 0 {
		persona = Resolve(persona.Name, r.pick)
	}

	var lines []string
	switch p.Event {
	case events.EventPickedUp:
		lines = persona.Shame
	case events.EventPutDown:
		lines = persona.Praise
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEvent, p.Event)
	}
	return lines[r.pick(len(lines))], nil
}

// Groq asks an OpenAI-compatible chat completions API for a line.
type Groq struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewGroq creates a Groq responder. Empty model and endpoint use the
// defaults.
func NewGroq(apiKey, model, endpoint string) *Groq {
	if model == "" {
		model = DefaultGroqModel
	}
	if endpoint == "" {
		endpoint = GroqEndpoint
	}
	return &Groq{
		apiKey:     apiKey,
		model:      model,
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *Groq) Name() string { return "groq (" + g.model + ")" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *Groq) Generate(ctx context.Context, p Prompt) (string, error) {
	req := chatRequest{Model: g.model, Temperature: temperature}
	switch p.Event {
	case events.EventPickedUp:
		req.MaxTokens = shameMaxTokens
		req.Messages = []chatMessage{
			{Role: "system", Content: shameSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Phone pickup #%d today.", p.Count)},
		}
	case events.EventPutDown:
		req.MaxTokens = praiseMaxTokens
		req.Messages = []chatMessage{
			{Role: "system", Content: praiseSystemPrompt},
			{Role: "user", Content: "User put their phone down."},
		}
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedEvent, p.Event)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("groq API error %d: %s", resp.StatusCode, out.Error.Message)
		}
		return "", fmt.Errorf("groq API error %d", resp.StatusCode)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("groq API returned no choices")
	}

	line := strings.Trim(strings.TrimSpace(out.Choices[0].Message.Content), `"`)
	if line == "" {
		return "", errors.New("groq API returned an empty line")
	}
	return line, nil
}

// Fallback tries Primary and uses Secondary when it fails.
type Fallback struct {
	Primary   Responder
	Secondary Responder
	OnError   func(err error)
}

func (f *Fallback) Name() string {
	return f.Primary.Name() + " -> " + f.Secondary.Name()
}

func (f *Fallback) Generate(ctx context.Context, p Prompt) (string, error) {
	line, err := f.Primary.Generate(ctx, p)
	if err == nil {
		return line, nil
	}
	if errors.Is(err, ErrUnsupportedEvent) {
		return "", err
	}
	if f.OnError != nil {
		f.OnError(err)
	}
	return f.Secondary.Generate(ctx, p)
}

// NewResponder returns the prewritten responder when apiKey is empty and a
// Groq responder backed by prewritten lines otherwise.
func NewResponder(apiKey, model string, onError func(error)) Responder {
	prewritten := NewPrewritten(nil)
	if apiKey == "" {
		return prewritten
	}
	return &Fallback{
		Primary:   NewGroq(apiKey, model, ""),
		Secondary: prewritten,
		OnError:   onError,
	}
}
