// Package hook runs external executables when a gesture is recognized.
//
// A hook lives in its own directory under the hooks directory, described by a
// hook.json manifest. The executable receives one JSON Request on stdin and
// writes one JSON Response to stdout.
package hook

import "encoding/json"

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook's metadata and capabilities.
type Manifest struct {
	Name         string          `json:"name"`
	Version      string          `json:"version"`
	Description  string          `json:"description"`
	Executable   string          `json:"executable"`
	Actions      []string        `json:"actions"`
	ConfigSchema json.RawMessage `json:"configSchema,omitempty"`
}

// SupportsAction reports whether the manifest lists action. A manifest that
// lists no actions accepts any.
func (m Manifest) SupportsAction(action string) bool {
	if len(m.Actions) == 0 {
		return true
	}
	for _, a := range m.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Request is sent to a hook on stdin.
type Request struct {
	Action  string          `json:"action"`
	Label   int             `json:"label"`
	Gesture string          `json:"gesture"` // Human-readable label name
	Set     string          `json:"set,omitempty"`
	Score   float64         `json:"score"`
	EventID string          `json:"event_id,omitempty"`
	Config  json.RawMessage `json:"config"`
}

// Response is read from a hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
