package gesture

import (
	"fmt"
	"math"
	"sort"
)

// Template holds the reference recordings of one gesture: exactly S sequences
// per axis.
type Template struct {
	Label Label
	Name  string     // Optional human-readable name
	X     []Sequence // X-axis recordings, one per sample
	Y     []Sequence // Y-axis recordings, one per sample
}

// Bounds is the per-label acceptance boundary on the averaged DTW distance of
// each axis.
type Bounds struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Scale returns the bounds multiplied by a slack factor.
func (b Bounds) Scale(factor float64) Bounds {
	return Bounds{X: b.X * factor, Y: b.Y * factor}
}

// LibraryConfig controls template validation.
type LibraryConfig struct {
	// SamplesPerTemplate is S, the number of recordings every label must carry per axis.
	SamplesPerTemplate int
	// AllowEmpty permits zero-length template sequences.
	AllowEmpty bool
}

// Library is an immutable set of templates and acceptance bounds keyed by label.
// It is safe for concurrent use once built.
type Library struct {
	samples   int
	labels    []Label
	templates map[Label]*Template
	bounds    map[Label]Bounds
}

// NewLibrary validates the templates and bounds and builds a Library.
// Every error wraps ErrMalformedTemplateData; no partial library is returned.
// Bounds for labels without a template are ignored.
func NewLibrary(cfg LibraryConfig, templates []Template, bounds map[Label]Bounds) (*Library, error) {
	if cfg.SamplesPerTemplate <= 0 {
		return nil, fmt.Errorf("%w: samples per template must be positive, got %d", ErrMalformedTemplateData, cfg.SamplesPerTemplate)
	}
	if len(templates) == 0 {
		return nil, fmt.Errorf("%w: no templates", ErrMalformedTemplateData)
	}

	lib := &Library{
		samples:   cfg.SamplesPerTemplate,
		labels:    make([]Label, 0, len(templates)),
		templates: make(map[Label]*Template, len(templates)),
		bounds:    make(map[Label]Bounds, len(templates)),
	}

	for _, t := range templates {
		if _, dup := lib.templates[t.Label]; dup {
			return nil, fmt.Errorf("%w: label %d appears twice", ErrMalformedTemplateData, t.Label)
		}
		if err := validateAxis(cfg, t.Label, "x", t.X); err != nil {
			return nil, err
		}
		if err := validateAxis(cfg, t.Label, "y", t.Y); err != nil {
			return nil, err
		}

		b, ok := bounds[t.Label]
		if !ok {
			return nil, fmt.Errorf("%w: label %d has no acceptance bounds", ErrMalformedTemplateData, t.Label)
		}
		if !validBound(b.X) || !validBound(b.Y) {
			return nil, fmt.Errorf("%w: label %d has invalid bounds (%v, %v)", ErrMalformedTemplateData, t.Label, b.X, b.Y)
		}

		lib.templates[t.Label] = cloneTemplate(t)
		lib.bounds[t.Label] = b
		lib.labels = append(lib.labels, t.Label)
	}

	sort.Slice(lib.labels, func(i, j int) bool { return lib.labels[i] < lib.labels[j] })
	return lib, nil
}

func validateAxis(cfg LibraryConfig, label Label, axis string, seqs []Sequence) error {
	if len(seqs) != cfg.SamplesPerTemplate {
		return fmt.Errorf("%w: label %d axis %s has %d samples, expected %d",
			ErrMalformedTemplateData, label, axis, len(seqs), cfg.SamplesPerTemplate)
	}
	for i, seq := range seqs {
		if len(seq) == 0 && !cfg.AllowEmpty {
			return fmt.Errorf("%w: label %d axis %s sample %d is empty", ErrMalformedTemplateData, label, axis, i)
		}
		for j, v := range seq {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: label %d axis %s sample %d value %d is not finite",
					ErrMalformedTemplateData, label, axis, i, j)
			}
		}
	}
	return nil
}

func validBound(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func cloneTemplate(t Template) *Template {
	c := &Template{
		Label: t.Label,
		Name:  t.Name,
		X:     make([]Sequence, len(t.X)),
		Y:     make([]Sequence, len(t.Y)),
	}
	for i := range t.X {
		c.X[i] = t.X[i].Clone()
	}
	for i := range t.Y {
		c.Y[i] = t.Y[i].Clone()
	}
	return c
}

// Labels returns the loaded labels in ascending order.
func (l *Library) Labels() []Label {
	out := make([]Label, len(l.labels))
	copy(out, l.labels)
	return out
}

// Len returns the number of labels.
func (l *Library) Len() int {
	return len(l.labels)
}

// SamplesPerTemplate returns S.
func (l *Library) SamplesPerTemplate() int {
	return l.samples
}

// TemplatesFor returns the template for a label. The returned sequences are
// shared with the library and must not be modified.
func (l *Library) TemplatesFor(label Label) (Template, error) {
	t, ok := l.templates[label]
	if !ok {
		return Template{}, fmt.Errorf("%w: %d", ErrUnknownLabel, label)
	}
	return *t, nil
}

// AcceptanceBoundsFor returns the configured bounds for a label.
func (l *Library) AcceptanceBoundsFor(label Label) (Bounds, error) {
	b, ok := l.bounds[label]
	if !ok {
		return Bounds{}, fmt.Errorf("%w: %d", ErrUnknownLabel, label)
	}
	return b, nil
}

// Name returns the human-readable name of a label, or its number if unnamed.
func (l *Library) Name(label Label) string {
	if t, ok := l.templates[label]; ok && t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("%d", label)
}
