package gesture

// State is the segmenter state.
type State int

const (
	// StateIdle waits for a start trigger.
	StateIdle State = iota
	// StateCapturing appends samples to the open window until a stop trigger.
	StateCapturing
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	default:
		return "unknown"
	}
}

// Polarity is the direction in which z must cross a trigger threshold.
type Polarity int

const (
	// Falling fires when z < -threshold.
	Falling Polarity = iota
	// Rising fires when z > threshold.
	Rising
)

// fires reports whether z crosses threshold in this polarity.
func (p Polarity) fires(z, threshold float64) bool {
	if p == Rising {
		return z > threshold
	}
	return z < -threshold
}

// SegmenterConfig configures the start/stop trigger state machine.
type SegmenterConfig struct {
	StartThreshold float64  // Magnitude of the start spike
	StopThreshold  float64  // Magnitude of the stop spike
	StartPolarity  Polarity // Direction of the start spike
	StopPolarity   Polarity // Direction of the stop spike

	// MinWindowLength is the count the open window must exceed before a stop
	// trigger closes it.
	MinWindowLength int

	// GuardStart also requires more than MinWindowLength samples since the
	// last transition before a start trigger is honoured.
	GuardStart bool

	// RestartOnStart discards the open window and starts over when a start
	// trigger arrives mid-capture. When false the spike is captured as data.
	RestartOnStart bool

	// MaxWindowLength abandons a capture that grows past it. Zero disables the cap.
	MaxWindowLength int
}

// DefaultSegmenterConfig returns the stop-only guard, restart-on-start variant.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{
		StartThreshold:  7,
		StopThreshold:   7,
		StartPolarity:   Falling,
		StopPolarity:    Rising,
		MinWindowLength: 10,
		GuardStart:      false,
		RestartOnStart:  true,
	}
}

// Segmenter turns a sample stream into gesture windows.
// It is not safe for concurrent use; one goroutine owns it.
type Segmenter struct {
	cfg             SegmenterConfig
	state           State
	window          Window
	sinceTransition int
	abandoned       int
}

// NewSegmenter creates a Segmenter in the idle state.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	return &Segmenter{cfg: cfg, state: StateIdle}
}

// Push feeds one sample. It returns a completed window and true exactly when
// the sample closes a capture.
func (s *Segmenter) Push(sample Sample) (Window, bool) {
	s.sinceTransition++
	startGuardOK := !s.cfg.GuardStart || s.sinceTransition > s.cfg.MinWindowLength

	switch s.state {
	case StateIdle:
		if s.cfg.StartPolarity.fires(sample.Z, s.cfg.StartThreshold) && startGuardOK {
			s.begin()
		}
		return Window{}, false

	case StateCapturing:
		if s.cfg.StopPolarity.fires(sample.Z, s.cfg.StopThreshold) && s.window.Len() > s.cfg.MinWindowLength {
			out := s.window.Clone()
			s.window.Clear()
			s.state = StateIdle
			s.sinceTransition = 0
			return out, true
		}
		if s.cfg.RestartOnStart && s.cfg.StartPolarity.fires(sample.Z, s.cfg.StartThreshold) && startGuardOK {
			s.begin()
			return Window{}, false
		}

		s.window.Append(sample)
		if s.cfg.MaxWindowLength > 0 && s.window.Len() > s.cfg.MaxWindowLength {
			s.abandoned++
			s.Reset()
		}
		return Window{}, false
	}

	return Window{}, false
}

// begin opens a fresh window. The triggering sample is not captured.
func (s *Segmenter) begin() {
	s.window.Clear()
	s.state = StateCapturing
	s.sinceTransition = 0
}

// Reset discards any open window and returns to idle.
func (s *Segmenter) Reset() {
	s.window.Clear()
	s.state = StateIdle
	s.sinceTransition = 0
}

// State returns the current state.
func (s *Segmenter) State() State {
	return s.state
}

// Pending returns the number of samples in the open window.
func (s *Segmenter) Pending() int {
	return s.window.Len()
}

// Abandoned returns how many captures were dropped for exceeding MaxWindowLength.
func (s *Segmenter) Abandoned() int {
	return s.abandoned
}
