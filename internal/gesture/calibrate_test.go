package gesture

import (
	"errors"
	"math"
	"testing"
)

func TestCalibrator_Calibrate(t *testing.T) {
	c := NewCalibrator()

	tmpl := Template{
		Label: 3,
		X:     []Sequence{{0, 0}, {1, 1}, {3, 3}},
		Y:     []Sequence{{0}, {0}, {0}},
	}

	cal, err := c.Calibrate(tmpl)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	if cal.Label != 3 {
		t.Errorf("expected label 3, got %d", cal.Label)
	}
	if cal.Pairs != 3 {
		t.Errorf("expected 3 pairs, got %d", cal.Pairs)
	}

	// Pairwise x distances are 2, 6 and 4.
	if cal.MeanX != 4 {
		t.Errorf("expected MeanX 4, got %f", cal.MeanX)
	}
	if math.Abs(cal.StdX-2) > 1e-9 {
		t.Errorf("expected StdX 2, got %f", cal.StdX)
	}
	if cal.MeanY != 0 || cal.StdY != 0 {
		t.Errorf("expected zero y statistics, got mean %f std %f", cal.MeanY, cal.StdY)
	}

	b := cal.Bounds()
	if b.X != 4 || b.Y != 0 {
		t.Errorf("unexpected bounds %+v", b)
	}
}

func TestCalibrator_Errors(t *testing.T) {
	c := NewCalibrator()

	tests := []struct {
		name string
		tmpl Template
	}{
		{"single sample", Template{Label: 1, X: []Sequence{{1}}, Y: []Sequence{{1}}}},
		{"axis mismatch", Template{Label: 1, X: []Sequence{{1}, {2}}, Y: []Sequence{{1}}}},
		{"empty recording", Template{Label: 1, X: []Sequence{{1}, {}}, Y: []Sequence{{1}, {2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := c.Calibrate(tt.tmpl); err == nil {
				t.Error("expected an error")
			}
		})
	}

	_, err := c.Calibrate(Template{Label: 1, X: []Sequence{{1}, {2}}, Y: []Sequence{{1}}})
	if !errors.Is(err, ErrMalformedTemplateData) {
		t.Errorf("expected axis mismatch to wrap ErrMalformedTemplateData, got %v", err)
	}
}

func TestCalibrator_CalibrateAll(t *testing.T) {
	c := NewCalibrator()

	cals, err := c.CalibrateAll([]Template{
		{Label: 1, X: []Sequence{{0}, {2}}, Y: []Sequence{{0}, {1}}},
		{Label: 2, X: []Sequence{{5}, {5}}, Y: []Sequence{{3}, {0}}},
	})
	if err != nil {
		t.Fatalf("CalibrateAll failed: %v", err)
	}
	if len(cals) != 2 {
		t.Fatalf("expected 2 calibrations, got %d", len(cals))
	}
	if cals[0].MeanX != 2 || cals[0].MeanY != 1 {
		t.Errorf("unexpected label 1 calibration %+v", cals[0])
	}
	if cals[1].MeanX != 0 || cals[1].MeanY != 3 {
		t.Errorf("unexpected label 2 calibration %+v", cals[1])
	}
}

func TestCalibratedBoundsAcceptOwnRecordings(t *testing.T) {
	tmpl := Template{
		Label: 1,
		X:     []Sequence{{0, 1, 2, 3}, {0, 1, 2, 4}, {0, 2, 2, 3}},
		Y:     []Sequence{{0, 0, 1, 0}, {0, 1, 1, 0}, {0, 0, 0, 0}},
	}

	cal, err := NewCalibrator().Calibrate(tmpl)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}

	lib, err := NewLibrary(LibraryConfig{SamplesPerTemplate: 3}, []Template{tmpl}, map[Label]Bounds{1: cal.Bounds()})
	if err != nil {
		t.Fatalf("NewLibrary failed: %v", err)
	}

	// Averaging a recording's distance to itself (0) with two others keeps it
	// below the mean pairwise distance when slack is allowed.
	result := NewClassifier(ClassifierConfig{Epsilon: 1.5}).Classify(Window{X: tmpl.X[0], Y: tmpl.Y[0]}, lib)
	if !result.Recognized {
		t.Errorf("expected a template recording to match its own calibration, got %+v", result)
	}
}
