// Package gesture provides accelerometer gesture segmentation and recognition.
package gesture

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMalformedTemplateData is returned when template input cannot be turned
	// into a complete library (bad values, wrong sample counts, missing bounds).
	ErrMalformedTemplateData = errors.New("malformed template data")

	// ErrUnknownLabel is returned when a library is queried for a label it never loaded.
	ErrUnknownLabel = errors.New("unknown label")
)

// AxisCount is the number of tracked axes (x and y). It is fixed.
const AxisCount = 2

// Label identifies a reference gesture.
type Label int

// Sample is one triaxial acceleration reading.
type Sample struct {
	X         float64 // X acceleration
	Y         float64 // Y acceleration
	Z         float64 // Z acceleration, drives the start/stop triggers
	Timestamp int64   // Timestamp in milliseconds, zero if the source has none
}

// Sequence is an ordered time series of values for one axis.
type Sequence []float64

// Append adds a value to the end of the sequence.
func (s *Sequence) Append(v float64) {
	*s = append(*s, v)
}

// Len returns the number of values in the sequence.
func (s Sequence) Len() int {
	return len(s)
}

// At returns the value at index i. It panics if i is out of range.
func (s Sequence) At(i int) float64 {
	return s[i]
}

// Clear empties the sequence, keeping its capacity.
func (s *Sequence) Clear() {
	*s = (*s)[:0]
}

// Clone returns an independent copy of the sequence.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// Window is a captured gesture: paired x and y sequences of equal length.
type Window struct {
	X Sequence
	Y Sequence
}

// Len returns the number of captured samples.
func (w Window) Len() int {
	return len(w.X)
}

// Append pushes one sample's x and y to the window.
func (w *Window) Append(s Sample) {
	w.X.Append(s.X)
	w.Y.Append(s.Y)
}

// Clear empties both axes.
func (w *Window) Clear() {
	w.X.Clear()
	w.Y.Clear()
}

// Clone returns an independent copy of the window.
func (w Window) Clone() Window {
	return Window{X: w.X.Clone(), Y: w.Y.Clone()}
}

// Result is the outcome of classifying one window.
type Result struct {
	Recognized bool
	Label      Label   // Valid only when Recognized
	Score      float64 // Margin score of the winning label
	Distances  []LabelDistance
}

// LabelDistance holds the averaged DTW distances of a window against one label.
type LabelDistance struct {
	Label     Label   `json:"label"`
	AvgX      float64 `json:"avg_x"`
	AvgY      float64 `json:"avg_y"`
	Candidate bool    `json:"candidate"` // Both averages within the label's bounds
}

type labelDistanceJSON struct {
	Label     Label    `json:"label"`
	AvgX      *float64 `json:"avg_x"`
	AvgY      *float64 `json:"avg_y"`
	Candidate bool     `json:"candidate"`
}

// MarshalJSON writes an infinite average, from a degenerate template, as null.
func (d LabelDistance) MarshalJSON() ([]byte, error) {
	return json.Marshal(labelDistanceJSON{
		Label:     d.Label,
		AvgX:      finiteOrNil(d.AvgX),
		AvgY:      finiteOrNil(d.AvgY),
		Candidate: d.Candidate,
	})
}

// UnmarshalJSON reads a null average back as +Inf.
func (d *LabelDistance) UnmarshalJSON(b []byte) error {
	var v labelDistanceJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*d = LabelDistance{Label: v.Label, AvgX: math.Inf(1), AvgY: math.Inf(1), Candidate: v.Candidate}
	if v.AvgX != nil {
		d.AvgX = *v.AvgX
	}
	if v.AvgY != nil {
		d.AvgY = *v.AvgY
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return nil
	}
	return &v
}

// NoMatch returns a result for a window that matched no label.
func NoMatch() Result {
	return Result{}
}

// Recognized returns a result naming the matched label.
func Recognized(label Label, score float64) Result {
	return Result{Recognized: true, Label: label, Score: score}
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if !r.Recognized {
		return "no match"
	}
	return fmt.Sprintf("label %d (score %.3f)", r.Label, r.Score)
}
