// Package report renders template recordings and captured windows as PNG
// plots, for eyeballing calibration offline.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ayusman/wandsign/internal/gesture"
)

// Plot dimensions.
const (
	Width  = 10 * vg.Inch
	Height = 4 * vg.Inch
)

var windowColor = color.RGBA{A: 255}

// Axis selects the X or Y recordings of a template.
type Axis string

// Plotted axes.
const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// AxisPlot draws every recording of one axis of t, plus the matching axis of
// window when it is not nil.
func AxisPlot(t gesture.Template, axis Axis, window *gesture.Window) (*plot.Plot, error) {
	var seqs []gesture.Sequence
	var windowSeq gesture.Sequence
	switch axis {
	case AxisX:
		seqs = t.X
		if window != nil {
			windowSeq = window.X
		}
	case AxisY:
		seqs = t.Y
		if window != nil {
			windowSeq = window.Y
		}
	default:
		return nil, fmt.Errorf("unknown axis %q", axis)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s - %s axis", title(t), axis)
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Acceleration"

	for i, seq := range seqs {
		if seq.Len() == 0 {
			continue
		}
		line, err := plotter.NewLine(points(seq))
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("sample %d", i), line)
	}

	if windowSeq.Len() > 0 {
		line, err := plotter.NewLine(points(windowSeq))
		if err != nil {
			return nil, err
		}
		line.Color = windowColor
		line.Width = vg.Points(2)
		line.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add("window", line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteTemplate saves label_<n>_x.png and label_<n>_y.png for t into dir and
// returns the file paths.
func WriteTemplate(dir string, t gesture.Template, window *gesture.Window) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	var files []string
	for _, axis := range []Axis{AxisX, AxisY} {
		p, err := AxisPlot(t, axis, window)
		if err != nil {
			return files, err
		}
		file := filepath.Join(dir, fmt.Sprintf("label_%d_%s.png", t.Label, axis))
		if err := p.Save(Width, Height, file); err != nil {
			return files, fmt.Errorf("save %s plot: %w", axis, err)
		}
		files = append(files, file)
	}
	return files, nil
}

// WriteLibrary plots every label of lib, or only the given labels when any
// are passed.
func WriteLibrary(dir string, lib *gesture.Library, window *gesture.Window, labels ...gesture.Label) ([]string, error) {
	if lib == nil {
		return nil, errors.New("no library")
	}
	if len(labels) == 0 {
		labels = lib.Labels()
	}

	var files []string
	for _, label := range labels {
		t, err := lib.TemplatesFor(label)
		if err != nil {
			return files, err
		}
		written, err := WriteTemplate(dir, t, window)
		files = append(files, written...)
		if err != nil {
			return files, err
		}
	}
	return files, nil
}

func points(seq gesture.Sequence) plotter.XYs {
	pts := make(plotter.XYs, seq.Len())
	for i, v := range seq {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	return pts
}

func title(t gesture.Template) string {
	if t.Name != "" {
		return fmt.Sprintf("Label %d (%s)", t.Label, t.Name)
	}
	return fmt.Sprintf("Label %d", t.Label)
}
