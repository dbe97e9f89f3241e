package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ayusman/wandsign/internal/gesture"
)

// Event is one classified window as delivered to sinks.
type Event struct {
	ID           string                  `json:"id"`
	Time         time.Time               `json:"time"`
	Set          string                  `json:"set,omitempty"`
	Recognized   bool                    `json:"recognized"`
	Label        gesture.Label           `json:"label"`
	Name         string                  `json:"name,omitempty"`
	Score        float64                 `json:"score"`
	WindowLength int                     `json:"window_length"`
	Distances    []gesture.LabelDistance `json:"distances,omitempty"`
}

// Sink receives classification events.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// NamedSink labels a sink for error reporting.
type NamedSink struct {
	Name string
	Sink Sink
}

// FanOut delivers every event to all of its sinks. A failing sink does not
// stop delivery to the others; all failures are returned joined.
type FanOut []NamedSink

// Publish implements Sink.
func (f FanOut) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Sink.Publish(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("%s sink: %w", s.Name, err))
		}
	}
	return errors.Join(errs...)
}

// LogSink writes one log line per event.
type LogSink struct {
	// Quiet suppresses no-match lines.
	Quiet bool
}

// Publish implements Sink.
func (l LogSink) Publish(_ context.Context, ev Event) error {
	if !ev.Recognized {
		if !l.Quiet {
			log.Printf("No match for %d-sample window", ev.WindowLength)
		}
		return nil
	}
	log.Printf("Recognized %s (label %d, score %.3f, %d samples)", ev.Name, ev.Label, ev.Score, ev.WindowLength)
	return nil
}
