// Package templates reads and writes gesture template recordings and their
// calibrated acceptance bounds.
package templates

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ayusman/wandsign/internal/gesture"
)

// KeyLayout gives the character positions of the label, sample and axis
// digits inside a row key such as "1231".
type KeyLayout struct {
	Label  int
	Sample int
	Axis   int
}

// DefaultKeyLayout is the "1XYZ" layout: a fixed leading character followed
// by the label, sample and axis digits.
func DefaultKeyLayout() KeyLayout {
	return KeyLayout{Label: 1, Sample: 2, Axis: 3}
}

// ParseKeyLayout parses "label,sample,axis" character positions such as "1,2,3".
func ParseKeyLayout(s string) (KeyLayout, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return KeyLayout{}, fmt.Errorf("key layout %q: want label,sample,axis positions", s)
	}
	var pos [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return KeyLayout{}, fmt.Errorf("key layout %q: invalid position %q", s, p)
		}
		pos[i] = v
	}
	if pos[0] == pos[1] || pos[0] == pos[2] || pos[1] == pos[2] {
		return KeyLayout{}, fmt.Errorf("key layout %q: positions must differ", s)
	}
	return KeyLayout{Label: pos[0], Sample: pos[1], Axis: pos[2]}, nil
}

// String returns the layout in the form read by ParseKeyLayout.
func (l KeyLayout) String() string {
	return fmt.Sprintf("%d,%d,%d", l.Label, l.Sample, l.Axis)
}

// Decoder parses keyed template CSV. Every row is one recording of one axis:
// a key followed by the acceleration values in order.
type Decoder struct {
	Layout     KeyLayout
	XAxisDigit int // Axis digit that marks x rows; the other binary digit marks y
}

// NewDecoder returns a Decoder with the default layout, where axis digit 1 is x
// and 0 is y.
func NewDecoder() *Decoder {
	return &Decoder{Layout: DefaultKeyLayout(), XAxisDigit: 1}
}

type recording struct {
	x, y map[int]gesture.Sequence
}

// Decode reads every row from r and groups the recordings by label.
// Templates are returned in ascending label order. Sample slots that never
// appear are left empty so library validation can report them.
func (d *Decoder) Decode(r io.Reader) ([]gesture.Template, error) {
	if d.XAxisDigit != 0 && d.XAxisDigit != 1 {
		return nil, fmt.Errorf("x axis digit must be 0 or 1, got %d", d.XAxisDigit)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	raw = bytes.TrimPrefix(raw, utf8BOM)
	cr := csv.NewReader(bytes.NewReader(normalizeLineBreaks(raw)))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	byLabel := make(map[gesture.Label]*recording)
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", gesture.ErrMalformedTemplateData, err)
		}
		line, _ := cr.FieldPos(0)

		key := strings.TrimSpace(fields[0])
		if key == "" && allEmpty(fields) {
			continue
		}
		label, sample, axis, err := d.parseKey(key)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", gesture.ErrMalformedTemplateData, line, err)
		}

		rec, ok := byLabel[label]
		if !ok {
			rec = &recording{x: make(map[int]gesture.Sequence), y: make(map[int]gesture.Sequence)}
			byLabel[label] = rec
		}
		target := rec.y
		if axis == d.XAxisDigit {
			target = rec.x
		}

		seq := target[sample]
		for i, f := range fields[1:] {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d field %d: %v", gesture.ErrMalformedTemplateData, line, i+2, err)
			}
			seq.Append(v)
		}
		target[sample] = seq
	}

	if len(byLabel) == 0 {
		return nil, fmt.Errorf("%w: no template rows", gesture.ErrMalformedTemplateData)
	}

	out := make([]gesture.Template, 0, len(byLabel))
	for label, rec := range byLabel {
		n := slots(rec.x, rec.y)
		t := gesture.Template{
			Label: label,
			X:     make([]gesture.Sequence, n),
			Y:     make([]gesture.Sequence, n),
		}
		for i, s := range rec.x {
			t.X[i] = s
		}
		for i, s := range rec.y {
			t.Y[i] = s
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// DecodeFile decodes the template CSV at path.
func (d *Decoder) DecodeFile(path string) ([]gesture.Template, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open templates: %w", err)
	}
	defer f.Close()

	return d.Decode(f)
}

func (d *Decoder) parseKey(key string) (gesture.Label, int, int, error) {
	label, err := digitAt(key, d.Layout.Label)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("key %q label: %v", key, err)
	}
	sample, err := digitAt(key, d.Layout.Sample)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("key %q sample: %v", key, err)
	}
	axis, err := digitAt(key, d.Layout.Axis)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("key %q axis: %v", key, err)
	}
	if axis > 1 {
		return 0, 0, 0, fmt.Errorf("key %q axis digit %d out of range", key, axis)
	}
	return gesture.Label(label), sample, axis, nil
}

func digitAt(key string, pos int) (int, error) {
	if pos < 0 || pos >= len(key) {
		return 0, fmt.Errorf("no character at position %d", pos)
	}
	c := key[pos]
	if c < '0' || c > '9' {
		return 0, fmt.Errorf("%q is not a digit", c)
	}
	return int(c - '0'), nil
}

// Encode writes templates in the keyed CSV form read by Decode. Labels and
// sample indexes must be single digits.
func (d *Decoder) Encode(w io.Writer, templates []gesture.Template) error {
	width := max(d.Layout.Label, d.Layout.Sample, d.Layout.Axis) + 1
	yDigit := 1 - d.XAxisDigit

	cw := csv.NewWriter(w)
	for _, t := range templates {
		if t.Label < 0 || t.Label > 9 || len(t.X) > 10 || len(t.Y) > 10 {
			return fmt.Errorf("label %d does not fit a single-digit key", t.Label)
		}
		for i, seq := range t.X {
			if err := cw.Write(d.row(width, t.Label, i, d.XAxisDigit, seq)); err != nil {
				return err
			}
		}
		for i, seq := range t.Y {
			if err := cw.Write(d.row(width, t.Label, i, yDigit, seq)); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func (d *Decoder) row(width int, label gesture.Label, sample, axis int, seq gesture.Sequence) []string {
	key := []byte(strings.Repeat("1", width))
	key[d.Layout.Label] = byte('0' + int(label))
	key[d.Layout.Sample] = byte('0' + sample)
	key[d.Layout.Axis] = byte('0' + axis)

	rec := make([]string, 0, len(seq)+1)
	rec = append(rec, string(key))
	for _, v := range seq {
		rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
	}
	return rec
}

var utf8BOM = []byte("\xef\xbb\xbf")

func normalizeLineBreaks(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	return bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
}

func allEmpty(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// slots returns one past the highest sample index on either axis.
func slots(x, y map[int]gesture.Sequence) int {
	n := 0
	for i := range x {
		n = max(n, i+1)
	}
	for i := range y {
		n = max(n, i+1)
	}
	return n
}
