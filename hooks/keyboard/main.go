// Command keyboard is a wandsign hook that sends a keystroke or shortcut for
// a recognized gesture. It uses AppleScript on macOS and xdotool elsewhere.
//
// Build it next to its manifest:
//
//	go build -o hooks/keyboard/keyboard ./hooks/keyboard
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the subset of the hook request this hook reads.
type Request struct {
	Action  string          `json:"action"`
	Label   int             `json:"label"`
	Gesture string          `json:"gesture"`
	Config  json.RawMessage `json:"config"`
}

// Response is written to stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeyConfig is the per-binding configuration.
type KeyConfig struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"` // command, option, control, shift
}

var appleModifiers = map[string]string{
	"command": "command down",
	"cmd":     "command down",
	"super":   "command down",
	"option":  "option down",
	"alt":     "option down",
	"control": "control down",
	"ctrl":    "control down",
	"shift":   "shift down",
}

var xdotoolModifiers = map[string]string{
	"command": "super",
	"cmd":     "super",
	"super":   "super",
	"option":  "alt",
	"alt":     "alt",
	"control": "ctrl",
	"ctrl":    "ctrl",
	"shift":   "shift",
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeResponse(fmt.Errorf("failed to decode request: %w", err))
		return
	}

	switch req.Action {
	case "keystroke", "shortcut":
		writeResponse(handleKeystroke(req.Config))
	default:
		writeResponse(fmt.Errorf("unknown action: %s", req.Action))
	}
}

func handleKeystroke(raw json.RawMessage) error {
	var cfg KeyConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Key == "" {
		return errors.New("key is required")
	}

	if runtime.GOOS == "darwin" {
		return run("osascript", "-e", appleScript(cfg.Key, cfg.Modifiers))
	}
	return run("xdotool", "key", xdotoolChord(cfg.Key, cfg.Modifiers))
}

// appleScript builds a System Events keystroke command.
func appleScript(key string, modifiers []string) string {
	var mods []string
	for _, m := range modifiers {
		if am, ok := appleModifiers[strings.ToLower(m)]; ok {
			mods = append(mods, am)
		}
	}
	if len(mods) == 0 {
		return fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, key)
	}
	return fmt.Sprintf(`tell application "System Events" to keystroke "%s" using {%s}`, key, strings.Join(mods, ", "))
}

// xdotoolChord builds a chord such as "ctrl+shift+t".
func xdotoolChord(key string, modifiers []string) string {
	var parts []string
	for _, m := range modifiers {
		if xm, ok := xdotoolModifiers[strings.ToLower(m)]; ok {
			parts = append(parts, xm)
		}
	}
	return strings.Join(append(parts, key), "+")
}

func writeResponse(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

func run(name string, args ...string) error {
	output, err := exec.Command(name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}
