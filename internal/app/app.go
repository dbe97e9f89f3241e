// Package app wires a sample source through the segmenter and classifier to
// the result sinks.
package app

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/source"
)

// Queue defaults.
const (
	// DefaultSampleQueue buffers samples between the reader and the segmenter.
	DefaultSampleQueue = 256
	// DefaultWindowQueue buffers closed windows waiting for classification.
	DefaultWindowQueue = 8
)

// ErrRunning is returned by Start when the pipeline is already running.
var ErrRunning = errors.New("pipeline already running")

// Config holds configuration options for the pipeline.
type Config struct {
	Set         string // Gesture set name attached to events
	Segmenter   gesture.SegmenterConfig
	Classifier  gesture.ClassifierConfig
	SampleQueue int
	WindowQueue int
	Disabled    bool // Start with recognition turned off
}

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Enabled          bool      `json:"enabled"`
	Running          bool      `json:"running"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	SamplesRead      uint64    `json:"samples_read"`
	SamplesMalformed uint64    `json:"samples_malformed"`
	SamplesDiscarded uint64    `json:"samples_discarded"`
	WindowsClosed    uint64    `json:"windows_closed"`
	WindowsDropped   uint64    `json:"windows_dropped"`
	WindowsAbandoned uint64    `json:"windows_abandoned"`
	Recognized       uint64    `json:"recognized"`
	NoMatch          uint64    `json:"no_match"`
	SinkErrors       uint64    `json:"sink_errors"`
}

type counters struct {
	samplesRead      atomic.Uint64
	samplesMalformed atomic.Uint64
	samplesDiscarded atomic.Uint64
	windowsClosed    atomic.Uint64
	windowsDropped   atomic.Uint64
	windowsAbandoned atomic.Uint64
	recognized       atomic.Uint64
	noMatch          atomic.Uint64
	sinkErrors       atomic.Uint64
}

// Pipeline runs source -> segmenter -> classifier -> sink with bounded queues
// between the stages, so slow classification never stalls sample ingestion.
type Pipeline struct {
	config     Config
	library    *gesture.Library
	source     source.Source
	sink       Sink
	classifier *gesture.Classifier

	enabled     bool
	resetNeeded atomic.Bool
	mu          sync.RWMutex
	stats       counters
	startedAt   time.Time
	cancel      context.CancelFunc
	done        chan struct{}
	err         error
}

// New creates a pipeline. A nil sink discards events.
func New(config Config, lib *gesture.Library, src source.Source, sink Sink) *Pipeline {
	if config.SampleQueue <= 0 {
		config.SampleQueue = DefaultSampleQueue
	}
	if config.WindowQueue <= 0 {
		config.WindowQueue = DefaultWindowQueue
	}
	if sink == nil {
		sink = SinkFunc(func(context.Context, Event) error { return nil })
	}

	return &Pipeline{
		config:     config,
		library:    lib,
		source:     src,
		sink:       sink,
		classifier: gesture.NewClassifier(config.Classifier),
		enabled:    !config.Disabled,
	}
}

// SetEnabled turns recognition on or off. While disabled, samples are read and
// discarded and any open capture is abandoned.
func (p *Pipeline) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.enabled == enabled {
		return
	}
	p.enabled = enabled
	if !enabled {
		p.resetNeeded.Store(true)
	}
	log.Printf("Recognition enabled: %v", enabled)
}

// IsEnabled returns whether recognition is currently enabled.
func (p *Pipeline) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Library returns the template library in use.
func (p *Pipeline) Library() *gesture.Library {
	return p.library
}

// Set returns the gesture set name.
func (p *Pipeline) Set() string {
	return p.config.Set
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	p.mu.RLock()
	enabled := p.enabled
	running := p.done != nil
	started := p.startedAt
	p.mu.RUnlock()

	return Stats{
		Enabled:          enabled,
		Running:          running,
		StartedAt:        started,
		SamplesRead:      p.stats.samplesRead.Load(),
		SamplesMalformed: p.stats.samplesMalformed.Load(),
		SamplesDiscarded: p.stats.samplesDiscarded.Load(),
		WindowsClosed:    p.stats.windowsClosed.Load(),
		WindowsDropped:   p.stats.windowsDropped.Load(),
		WindowsAbandoned: p.stats.windowsAbandoned.Load(),
		Recognized:       p.stats.recognized.Load(),
		NoMatch:          p.stats.noMatch.Load(),
		SinkErrors:       p.stats.sinkErrors.Load(),
	}
}

// Start runs the pipeline in the background until Stop is called or the
// source ends.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done != nil {
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.err = nil
	done := p.done

	go func() {
		err := p.Run(ctx)
		p.mu.Lock()
		p.err = err
		p.done = nil
		p.cancel = nil
		p.mu.Unlock()
		cancel()
		close(done)
	}()

	log.Println("Recognition pipeline started")
	return nil
}

// Stop cancels a pipeline started with Start and waits for it to finish.
// Queued windows are discarded.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Println("Recognition pipeline stopped")
}

// Wait blocks until a started pipeline finishes and returns its error.
// A context cancellation is not reported as an error.
func (p *Pipeline) Wait() error {
	p.mu.RLock()
	done := p.done
	p.mu.RUnlock()

	if done != nil {
		<-done
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if errors.Is(p.err, context.Canceled) {
		return nil
	}
	return p.err
}
