package gesture

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Calibration summarizes how far a label's own recordings are from each other.
type Calibration struct {
	Label Label
	Pairs int     // Number of sample pairs compared per axis
	MeanX float64 // Mean pairwise DTW distance on the x axis
	MeanY float64
	StdX  float64 // Standard deviation of the pairwise distances
	StdY  float64
}

// Bounds returns the acceptance bounds implied by the calibration: the mean
// pairwise distance per axis.
func (c Calibration) Bounds() Bounds {
	return Bounds{X: c.MeanX, Y: c.MeanY}
}

// Calibrator derives acceptance bounds from template recordings.
type Calibrator struct{}

// NewCalibrator creates a new Calibrator instance.
func NewCalibrator() *Calibrator {
	return &Calibrator{}
}

// Calibrate computes the mean DTW distance over every unordered pair of the
// template's recordings, per axis. At least two recordings are required.
func (c *Calibrator) Calibrate(t Template) (Calibration, error) {
	if len(t.X) != len(t.Y) {
		return Calibration{}, fmt.Errorf("%w: label %d has %d x samples and %d y samples",
			ErrMalformedTemplateData, t.Label, len(t.X), len(t.Y))
	}
	if len(t.X) < 2 {
		return Calibration{}, fmt.Errorf("label %d needs at least 2 samples to calibrate, got %d", t.Label, len(t.X))
	}

	xs := pairwiseDistances(t.X)
	ys := pairwiseDistances(t.Y)

	meanX, stdX := stat.MeanStdDev(xs, nil)
	meanY, stdY := stat.MeanStdDev(ys, nil)
	if math.IsInf(meanX, 0) || math.IsInf(meanY, 0) {
		return Calibration{}, fmt.Errorf("label %d has an empty recording", t.Label)
	}

	return Calibration{
		Label: t.Label,
		Pairs: len(xs),
		MeanX: meanX,
		MeanY: meanY,
		StdX:  stdX,
		StdY:  stdY,
	}, nil
}

// CalibrateAll calibrates each template in the given order.
func (c *Calibrator) CalibrateAll(templates []Template) ([]Calibration, error) {
	out := make([]Calibration, 0, len(templates))
	for _, t := range templates {
		cal, err := c.Calibrate(t)
		if err != nil {
			return nil, err
		}
		out = append(out, cal)
	}
	return out, nil
}

// pairwiseDistances returns DTW distances for all i < j pairs.
func pairwiseDistances(seqs []Sequence) []float64 {
	n := len(seqs)
	out := make([]float64, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, DTWDistance(seqs[i], seqs[j]))
		}
	}
	return out
}
