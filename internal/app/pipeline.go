package app

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/source"
)

// malformedLogEvery limits malformed-sample log lines on noisy links.
const malformedLogEvery = 100

// Run blocks until the source is exhausted, a read fails or ctx ends.
//
// Three goroutines are joined by bounded queues:
//  1. the reader pulls samples and blocks when the sample queue is full
//  2. the segmenter owns the state machine and hands closed windows on
//     without blocking; a window that finds the queue full is dropped
//  3. the classifier scores each window and publishes the event
//
// When the source ends, the open capture is discarded and every queued window
// is still classified. When ctx ends, queued work is discarded. The source is
// closed before Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.library == nil {
		return errors.New("no template library")
	}

	p.mu.Lock()
	p.startedAt = time.Now()
	p.mu.Unlock()

	samples := make(chan gesture.Sample, p.config.SampleQueue)
	windows := make(chan gesture.Window, p.config.WindowQueue)

	// Unblock a read that ignores ctx.
	stop := context.AfterFunc(ctx, func() { p.source.Close() })
	defer stop()
	defer p.source.Close()

	var (
		wg      sync.WaitGroup
		readErr error
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		readErr = p.read(ctx, samples)
	}()
	go func() {
		defer wg.Done()
		p.segment(ctx, samples, windows)
	}()
	go func() {
		defer wg.Done()
		p.classify(ctx, windows)
	}()
	wg.Wait()

	if readErr != nil {
		return readErr
	}
	return ctx.Err()
}

// read moves samples from the source onto the queue. It closes the queue
// when it returns.
func (p *Pipeline) read(ctx context.Context, out chan<- gesture.Sample) error {
	defer close(out)

	for {
		s, err := p.source.ReadSample(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, source.ErrMalformedSample) {
				n := p.stats.samplesMalformed.Add(1)
				if n == 1 || n%malformedLogEvery == 0 {
					log.Printf("Skipping malformed sample (%d so far): %v", n, err)
				}
				continue
			}
			if errors.Is(err, io.EOF) {
				log.Println("Sample source exhausted")
				return nil
			}
			log.Printf("Error reading sample: %v", err)
			return err
		}

		p.stats.samplesRead.Add(1)
		if !p.IsEnabled() {
			p.stats.samplesDiscarded.Add(1)
			continue
		}

		select {
		case out <- s:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// segment feeds the segmenter and forwards closed windows. It closes the
// window queue when the sample queue is drained.
func (p *Pipeline) segment(ctx context.Context, in <-chan gesture.Sample, out chan<- gesture.Window) {
	defer close(out)

	seg := gesture.NewSegmenter(p.config.Segmenter)
	abandoned := 0

	for s := range in {
		if ctx.Err() != nil {
			continue
		}
		if p.resetNeeded.Swap(false) && seg.State() == gesture.StateCapturing {
			log.Printf("Discarding %d-sample capture after disable", seg.Pending())
			seg.Reset()
		}

		before := seg.State()
		w, ok := seg.Push(s)

		if n := seg.Abandoned(); n != abandoned {
			p.stats.windowsAbandoned.Add(uint64(n - abandoned))
			abandoned = n
			log.Println("Abandoned over-long capture")
		}
		if before == gesture.StateIdle && seg.State() == gesture.StateCapturing {
			log.Println("Capture started")
		}
		if !ok {
			continue
		}

		p.stats.windowsClosed.Add(1)
		select {
		case out <- w:
		default:
			p.stats.windowsDropped.Add(1)
			log.Printf("Window queue full, dropped %d-sample window", w.Len())
		}
	}

	if seg.Pending() > 0 && ctx.Err() == nil {
		log.Printf("Discarding open %d-sample capture at end of stream", seg.Pending())
	}
}

// classify scores queued windows and publishes one event per window.
func (p *Pipeline) classify(ctx context.Context, in <-chan gesture.Window) {
	for w := range in {
		if ctx.Err() != nil {
			continue
		}

		result := p.classifier.Classify(w, p.library)
		ev := p.event(w, result)
		if result.Recognized {
			p.stats.recognized.Add(1)
		} else {
			p.stats.noMatch.Add(1)
		}

		if err := p.sink.Publish(ctx, ev); err != nil {
			p.stats.sinkErrors.Add(1)
			log.Printf("Error publishing result: %v", err)
		}
	}
}

func (p *Pipeline) event(w gesture.Window, r gesture.Result) Event {
	ev := Event{
		ID:           uuid.NewString(),
		Time:         time.Now(),
		Set:          p.config.Set,
		Recognized:   r.Recognized,
		WindowLength: w.Len(),
		Distances:    r.Distances,
	}
	if r.Recognized {
		ev.Label = r.Label
		ev.Name = p.library.Name(r.Label)
		ev.Score = r.Score
	}
	return ev
}
