package source

import (
	"context"
	"io"
	"sync"

	"github.com/ayusman/wandsign/internal/gesture"
)

// MockSource plays back pre-recorded samples for testing.
type MockSource struct {
	samples []gesture.Sample
	index   int
	loop    bool
	hold    bool
	mu      sync.Mutex
	closed  chan struct{}
	once    sync.Once
}

// NewMockSource returns a source that yields samples in order. With loop set
// it starts over at the end instead of returning io.EOF.
func NewMockSource(samples []gesture.Sample, loop bool) *MockSource {
	return &MockSource{
		samples: samples,
		loop:    loop,
		closed:  make(chan struct{}),
	}
}

// FromZ builds samples whose x and y count up from 0 and whose z follows zs.
func FromZ(zs ...float64) []gesture.Sample {
	out := make([]gesture.Sample, len(zs))
	for i, z := range zs {
		out[i] = gesture.Sample{X: float64(i), Y: -float64(i), Z: z, Timestamp: int64(i)}
	}
	return out
}

// Hold makes the source block after the last sample until closed or cancelled,
// like a live stream that went quiet.
func (m *MockSource) Hold() *MockSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hold = true
	return m
}

// ReadSample returns the next recorded sample.
func (m *MockSource) ReadSample(ctx context.Context) (gesture.Sample, error) {
	select {
	case <-m.closed:
		return gesture.Sample{}, io.EOF
	default:
	}

	m.mu.Lock()
	if m.index >= len(m.samples) && m.loop && len(m.samples) > 0 {
		m.index = 0
	}
	if m.index < len(m.samples) {
		s := m.samples[m.index]
		m.index++
		m.mu.Unlock()
		return s, nil
	}
	hold := m.hold
	m.mu.Unlock()

	if !hold {
		return gesture.Sample{}, io.EOF
	}
	select {
	case <-ctx.Done():
		return gesture.Sample{}, ctx.Err()
	case <-m.closed:
		return gesture.Sample{}, io.EOF
	}
}

// Reset restarts playback from the beginning.
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}

// Close ends playback.
func (m *MockSource) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}
