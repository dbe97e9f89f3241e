package templates

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/wandsign/internal/gesture"
)

// BoundsVersion is the bounds file format version written by this package.
const BoundsVersion = 1

// BoundsEntry is one label's calibrated acceptance bounds.
type BoundsEntry struct {
	Label gesture.Label `yaml:"label"`
	Name  string        `yaml:"name,omitempty"`
	X     float64       `yaml:"x"`
	Y     float64       `yaml:"y"`
}

// BoundsFile is the versioned calibration table stored next to a template CSV.
type BoundsFile struct {
	Version            int           `yaml:"version"`
	Set                string        `yaml:"set,omitempty"`
	SamplesPerTemplate int           `yaml:"samples_per_template,omitempty"`
	Entries            []BoundsEntry `yaml:"bounds"`
}

// LoadBounds decodes a bounds file.
func LoadBounds(r io.Reader) (*BoundsFile, error) {
	var bf BoundsFile
	if err := yaml.NewDecoder(r).Decode(&bf); err != nil {
		return nil, fmt.Errorf("%w: decode bounds: %v", gesture.ErrMalformedTemplateData, err)
	}
	if bf.Version != BoundsVersion {
		return nil, fmt.Errorf("%w: unsupported bounds version %d", gesture.ErrMalformedTemplateData, bf.Version)
	}

	seen := make(map[gesture.Label]bool, len(bf.Entries))
	for _, e := range bf.Entries {
		if seen[e.Label] {
			return nil, fmt.Errorf("%w: label %d listed twice in bounds", gesture.ErrMalformedTemplateData, e.Label)
		}
		seen[e.Label] = true
	}
	return &bf, nil
}

// LoadBoundsFile decodes the bounds file at path.
func LoadBoundsFile(path string) (*BoundsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bounds: %w", err)
	}
	defer f.Close()

	return LoadBounds(f)
}

// WriteBounds encodes bf as YAML.
func WriteBounds(w io.Writer, bf *BoundsFile) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(bf); err != nil {
		return fmt.Errorf("encode bounds: %w", err)
	}
	return enc.Close()
}

// Map returns the bounds keyed by label.
func (bf *BoundsFile) Map() map[gesture.Label]gesture.Bounds {
	out := make(map[gesture.Label]gesture.Bounds, len(bf.Entries))
	for _, e := range bf.Entries {
		out[e.Label] = gesture.Bounds{X: e.X, Y: e.Y}
	}
	return out
}

// Names returns the non-empty label names.
func (bf *BoundsFile) Names() map[gesture.Label]string {
	out := make(map[gesture.Label]string)
	for _, e := range bf.Entries {
		if e.Name != "" {
			out[e.Label] = e.Name
		}
	}
	return out
}

// FromCalibrations builds a bounds file from calibrator output, keeping any
// names already known for the labels.
func FromCalibrations(set string, samples int, cals []gesture.Calibration, names map[gesture.Label]string) *BoundsFile {
	bf := &BoundsFile{
		Version:            BoundsVersion,
		Set:                set,
		SamplesPerTemplate: samples,
		Entries:            make([]BoundsEntry, 0, len(cals)),
	}
	for _, c := range cals {
		b := c.Bounds()
		bf.Entries = append(bf.Entries, BoundsEntry{Label: c.Label, Name: names[c.Label], X: b.X, Y: b.Y})
	}
	sort.Slice(bf.Entries, func(i, j int) bool { return bf.Entries[i].Label < bf.Entries[j].Label })
	return bf
}

// FromLibrary returns the bounds file describing lib.
func FromLibrary(set string, lib *gesture.Library) *BoundsFile {
	bf := &BoundsFile{
		Version:            BoundsVersion,
		Set:                set,
		SamplesPerTemplate: lib.SamplesPerTemplate(),
		Entries:            make([]BoundsEntry, 0, lib.Len()),
	}
	for _, label := range lib.Labels() {
		t, err := lib.TemplatesFor(label)
		if err != nil {
			continue
		}
		b, err := lib.AcceptanceBoundsFor(label)
		if err != nil {
			continue
		}
		bf.Entries = append(bf.Entries, BoundsEntry{Label: label, Name: t.Name, X: b.X, Y: b.Y})
	}
	return bf
}

// Build names the templates from the bounds file and validates everything
// into a Library. When the bounds file records a sample count it must agree
// with cfg.
func Build(cfg gesture.LibraryConfig, templates []gesture.Template, bf *BoundsFile) (*gesture.Library, error) {
	if bf.SamplesPerTemplate != 0 && bf.SamplesPerTemplate != cfg.SamplesPerTemplate {
		return nil, fmt.Errorf("%w: bounds were calibrated for %d samples per template, configured %d",
			gesture.ErrMalformedTemplateData, bf.SamplesPerTemplate, cfg.SamplesPerTemplate)
	}

	names := bf.Names()
	named := make([]gesture.Template, len(templates))
	for i, t := range templates {
		if n, ok := names[t.Label]; ok {
			t.Name = n
		}
		named[i] = t
	}
	return gesture.NewLibrary(cfg, named, bf.Map())
}

// Load decodes a template CSV and bounds file from disk into a Library.
// A nil decoder uses NewDecoder.
func Load(cfg gesture.LibraryConfig, d *Decoder, csvPath, boundsPath string) (*gesture.Library, error) {
	if d == nil {
		d = NewDecoder()
	}
	ts, err := d.DecodeFile(csvPath)
	if err != nil {
		return nil, err
	}
	bf, err := LoadBoundsFile(boundsPath)
	if err != nil {
		return nil, err
	}
	return Build(cfg, ts, bf)
}
