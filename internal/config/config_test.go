package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/source"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	seg := cfg.SegmenterConfig()
	assert.Equal(t, gesture.DefaultSegmenterConfig(), seg)
	assert.Equal(t, 5, cfg.LibraryConfig().SamplesPerTemplate)
	assert.Equal(t, ":8080", cfg.Server.Listen)
	assert.Equal(t, source.KindUDP, cfg.Source.Kind)
	assert.Equal(t, 5*time.Second, cfg.Hooks.Timeout)
}

func TestLoad_MissingOptional(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"), false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""), false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
set: wands
segmenter:
  start_threshold: 9
  start_polarity: rising
  stop_polarity: falling
  min_window_length: 4
  restart_on_start: false
classifier:
  epsilon: 1.5
  samples_per_template: 3
  workers: 4
pipeline:
  window_queue: 2
source:
  kind: file
  format: xyz
  path: /tmp/stream.txt
store:
  path: ~/data/w.db
hooks:
  timeout: 250ms
  bindings:
    - label: 3
      hook: keyboard
      action: shortcut
      config:
        key: t
        modifiers: [ctrl, shift]
`)

	cfg, err := Load(path, false)
	require.NoError(t, err)

	assert.Equal(t, "wands", cfg.Set)
	seg := cfg.SegmenterConfig()
	assert.Equal(t, 9.0, seg.StartThreshold)
	assert.Equal(t, 7.0, seg.StopThreshold, "unset fields keep defaults")
	assert.Equal(t, gesture.Rising, seg.StartPolarity)
	assert.Equal(t, gesture.Falling, seg.StopPolarity)
	assert.Equal(t, 4, seg.MinWindowLength)
	assert.False(t, seg.RestartOnStart)

	appCfg := cfg.AppConfig()
	assert.Equal(t, "wands", appCfg.Set)
	assert.Equal(t, 1.5, appCfg.Classifier.Epsilon)
	assert.Equal(t, 4, appCfg.Classifier.Workers)
	assert.Equal(t, 2, appCfg.WindowQueue)
	assert.Equal(t, 256, appCfg.SampleQueue)

	assert.Equal(t, source.KindFile, cfg.Source.Kind)
	assert.Equal(t, "/tmp/stream.txt", cfg.Source.Path)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data", "w.db"), cfg.Store.Path)
	assert.Equal(t, 250*time.Millisecond, cfg.Hooks.Timeout)

	bindings, err := cfg.HookBindings()
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.Equal(t, gesture.Label(3), bindings[0].Label)
	assert.Equal(t, "keyboard", bindings[0].Hook)
	assert.JSONEq(t, `{"key":"t","modifiers":["ctrl","shift"]}`, string(bindings[0].Config))
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(writeConfig(t, "segmenter:\n  start_treshold: 3\n"), false)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative threshold", func(c *Config) { c.Segmenter.StopThreshold = -1 }},
		{"bad polarity", func(c *Config) { c.Segmenter.StartPolarity = "up" }},
		{"max not above min", func(c *Config) { c.Segmenter.MaxWindowLength = 10 }},
		{"epsilon below one", func(c *Config) { c.Classifier.Epsilon = 0.5 }},
		{"no samples", func(c *Config) { c.Classifier.SamplesPerTemplate = 0 }},
		{"three axes", func(c *Config) { c.Classifier.AxisCount = 3 }},
		{"negative workers", func(c *Config) { c.Classifier.Workers = -2 }},
		{"negative queue", func(c *Config) { c.Pipeline.WindowQueue = -1 }},
		{"file without path", func(c *Config) { c.Source.Kind = source.KindFile }},
		{"no store path", func(c *Config) { c.Store.Path = "" }},
		{"binding without hook", func(c *Config) {
			c.Hooks.Bindings = []Binding{{Label: 1, Action: "x"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Set = "roundtrip"
	cfg.Hooks.Bindings = []Binding{{Label: 1, Hook: "keyboard", Action: "keystroke", Config: map[string]any{"key": "a"}}}

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, Write(path, cfg))

	got, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
