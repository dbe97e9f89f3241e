// Package config loads the wandsign YAML configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/wandsign/internal/app"
	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/hook"
	"github.com/ayusman/wandsign/internal/source"
)

// Polarity names accepted in the segmenter section.
const (
	PolarityFalling = "falling"
	PolarityRising  = "rising"
)

// AxisCount is the only supported number of classified axes.
const AxisCount = 2

// Segmenter configures start/stop detection.
type Segmenter struct {
	StartThreshold  float64 `yaml:"start_threshold"`
	StopThreshold   float64 `yaml:"stop_threshold"`
	StartPolarity   string  `yaml:"start_polarity"`
	StopPolarity    string  `yaml:"stop_polarity"`
	MinWindowLength int     `yaml:"min_window_length"`
	GuardStart      bool    `yaml:"guard_start"`
	RestartOnStart  bool    `yaml:"restart_on_start"`
	MaxWindowLength int     `yaml:"max_window_length"`
}

// Classifier configures matching.
type Classifier struct {
	Epsilon            float64 `yaml:"epsilon"`
	SamplesPerTemplate int     `yaml:"samples_per_template"`
	AxisCount          int     `yaml:"axis_count"`
	Workers            int     `yaml:"workers"`
	AllowEmpty         bool    `yaml:"allow_empty_templates"`
}

// Pipeline sizes the queues between stages.
type Pipeline struct {
	SampleQueue int `yaml:"sample_queue"`
	WindowQueue int `yaml:"window_queue"`
}

// Store locates the database.
type Store struct {
	Path string `yaml:"path"`
}

// Server configures the HTTP API.
type Server struct {
	Listen string `yaml:"listen"` // Empty disables the server
}

// Binding routes a label to a hook action.
type Binding struct {
	Label  int            `yaml:"label"`
	Hook   string         `yaml:"hook"`
	Action string         `yaml:"action"`
	Config map[string]any `yaml:"config"`
}

// Hooks configures external action hooks.
type Hooks struct {
	Dir      string        `yaml:"dir"`
	Timeout  time.Duration `yaml:"timeout"`
	Bindings []Binding     `yaml:"bindings"`
}

// Config is the root of the configuration file.
type Config struct {
	Set        string        `yaml:"set"` // Gesture set loaded by run
	Segmenter  Segmenter     `yaml:"segmenter"`
	Classifier Classifier    `yaml:"classifier"`
	Pipeline   Pipeline      `yaml:"pipeline"`
	Source     source.Config `yaml:"source"`
	Store      Store         `yaml:"store"`
	Server     Server        `yaml:"server"`
	Hooks      Hooks         `yaml:"hooks"`
	Tray       bool          `yaml:"tray"`
}

// Dir returns the wandsign data directory, ~/.wandsign.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".wandsign"
	}
	return filepath.Join(home, ".wandsign")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() Config {
	seg := gesture.DefaultSegmenterConfig()
	return Config{
		Set: "default",
		Segmenter: Segmenter{
			StartThreshold:  seg.StartThreshold,
			StopThreshold:   seg.StopThreshold,
			StartPolarity:   PolarityFalling,
			StopPolarity:    PolarityRising,
			MinWindowLength: seg.MinWindowLength,
			GuardStart:      seg.GuardStart,
			RestartOnStart:  seg.RestartOnStart,
			MaxWindowLength: seg.MaxWindowLength,
		},
		Classifier: Classifier{
			Epsilon:            1,
			SamplesPerTemplate: 5,
			AxisCount:          AxisCount,
			Workers:            1,
		},
		Pipeline: Pipeline{
			SampleQueue: app.DefaultSampleQueue,
			WindowQueue: app.DefaultWindowQueue,
		},
		Source: source.DefaultConfig(),
		Store:  Store{Path: filepath.Join(Dir(), "wandsign.db")},
		Server: Server{Listen: ":8080"},
		Hooks: Hooks{
			Dir:     filepath.Join(Dir(), "hooks"),
			Timeout: hook.DefaultTimeout,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults when
// optional is true.
func Load(path string, optional bool) (Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}

	cfg.Store.Path = expandHome(cfg.Store.Path)
	cfg.Hooks.Dir = expandHome(cfg.Hooks.Dir)
	cfg.Source.Path = expandHome(cfg.Source.Path)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	var errs []error

	if c.Segmenter.StartThreshold < 0 || c.Segmenter.StopThreshold < 0 {
		errs = append(errs, errors.New("segmenter thresholds must not be negative"))
	}
	if _, err := parsePolarity(c.Segmenter.StartPolarity); err != nil {
		errs = append(errs, fmt.Errorf("start_polarity: %w", err))
	}
	if _, err := parsePolarity(c.Segmenter.StopPolarity); err != nil {
		errs = append(errs, fmt.Errorf("stop_polarity: %w", err))
	}
	if c.Segmenter.MinWindowLength < 0 {
		errs = append(errs, errors.New("min_window_length must not be negative"))
	}
	if c.Segmenter.MaxWindowLength < 0 {
		errs = append(errs, errors.New("max_window_length must not be negative"))
	}
	if c.Segmenter.MaxWindowLength > 0 && c.Segmenter.MaxWindowLength <= c.Segmenter.MinWindowLength {
		errs = append(errs, errors.New("max_window_length must exceed min_window_length"))
	}

	if c.Classifier.Epsilon < 1 {
		errs = append(errs, fmt.Errorf("epsilon must be at least 1, got %v", c.Classifier.Epsilon))
	}
	if c.Classifier.SamplesPerTemplate <= 0 {
		errs = append(errs, errors.New("samples_per_template must be positive"))
	}
	if c.Classifier.AxisCount != AxisCount {
		errs = append(errs, fmt.Errorf("axis_count must be %d", AxisCount))
	}
	if c.Classifier.Workers < 0 {
		errs = append(errs, errors.New("workers must not be negative"))
	}

	if c.Pipeline.SampleQueue < 0 || c.Pipeline.WindowQueue < 0 {
		errs = append(errs, errors.New("queue sizes must not be negative"))
	}

	if err := c.Source.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("source: %w", err))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store path is required"))
	}
	if c.Hooks.Timeout < 0 {
		errs = append(errs, errors.New("hook timeout must not be negative"))
	}
	for i, b := range c.Hooks.Bindings {
		if b.Hook == "" || b.Action == "" {
			errs = append(errs, fmt.Errorf("binding %d needs a hook and an action", i))
		}
	}

	return errors.Join(errs...)
}

func parsePolarity(s string) (gesture.Polarity, error) {
	switch strings.ToLower(s) {
	case PolarityFalling:
		return gesture.Falling, nil
	case PolarityRising:
		return gesture.Rising, nil
	}
	return 0, fmt.Errorf("unknown polarity %q", s)
}

// SegmenterConfig converts the segmenter section. Call after Validate.
func (c Config) SegmenterConfig() gesture.SegmenterConfig {
	start, _ := parsePolarity(c.Segmenter.StartPolarity)
	stop, _ := parsePolarity(c.Segmenter.StopPolarity)
	return gesture.SegmenterConfig{
		StartThreshold:  c.Segmenter.StartThreshold,
		StopThreshold:   c.Segmenter.StopThreshold,
		StartPolarity:   start,
		StopPolarity:    stop,
		MinWindowLength: c.Segmenter.MinWindowLength,
		GuardStart:      c.Segmenter.GuardStart,
		RestartOnStart:  c.Segmenter.RestartOnStart,
		MaxWindowLength: c.Segmenter.MaxWindowLength,
	}
}

// LibraryConfig returns the template validation settings.
func (c Config) LibraryConfig() gesture.LibraryConfig {
	return gesture.LibraryConfig{
		SamplesPerTemplate: c.Classifier.SamplesPerTemplate,
		AllowEmpty:         c.Classifier.AllowEmpty,
	}
}

// AppConfig returns the pipeline configuration.
func (c Config) AppConfig() app.Config {
	return app.Config{
		Set:       c.Set,
		Segmenter: c.SegmenterConfig(),
		Classifier: gesture.ClassifierConfig{
			Epsilon: c.Classifier.Epsilon,
			Workers: c.Classifier.Workers,
		},
		SampleQueue: c.Pipeline.SampleQueue,
		WindowQueue: c.Pipeline.WindowQueue,
	}
}

// HookBindings converts the configured bindings.
func (c Config) HookBindings() (hook.StaticBindings, error) {
	bindings := make(hook.StaticBindings, 0, len(c.Hooks.Bindings))
	for _, b := range c.Hooks.Bindings {
		var raw json.RawMessage
		if b.Config != nil {
			data, err := json.Marshal(b.Config)
			if err != nil {
				return nil, fmt.Errorf("binding for label %d: %w", b.Label, err)
			}
			raw = data
		}
		bindings = append(bindings, hook.Binding{
			Label:  gesture.Label(b.Label),
			Hook:   b.Hook,
			Action: b.Action,
			Config: raw,
		})
	}
	return bindings, nil
}

// Write encodes c as YAML to path, creating its directory.
func Write(path string, c Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return p
		}
		return filepath.Join(home, strings.TrimPrefix(p, "~"))
	}
	return p
}
