// Package plugin discovers and runs reaction plugins: standalone
// executables that receive one JSON request on stdin and answer with one
// JSON response on stdout.
package plugin

import "encoding/json"

// Manifest describes a plugin's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// SupportsAction reports whether the manifest lists action.
func (m Manifest) SupportsAction(action string) bool {
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a plugin for one reaction.
type Request struct {
	Action    string          `json:"action"`
	Event     string          `json:"event"`
	Text      string          `json:"text,omitempty"`
	Count     int             `json:"count"`
	Animation string          `json:"animation,omitempty"`
	Voice     string          `json:"voice,omitempty"`
	Config    json.RawMessage `json:"config"`
	Params    json.RawMessage `json:"params,omitempty"`
}

// Response represents the response from a plugin execution.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Plugin represents a discovered plugin with its manifest and location.
type Plugin struct {
	Manifest   Manifest
	Path       string
	Executable string
}
