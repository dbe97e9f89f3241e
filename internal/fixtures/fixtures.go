// Package fixtures embeds a small recorded gesture set for tests.
//
// templates.csv holds five recordings of three signs (0 line, 1 circle,
// 2 zigzag); bounds.yaml their calibrated bounds. stream.txt is a recorded
// t,x,y,z sample stream in which a line and then a circle are drawn.
package fixtures

import (
	"bytes"
	"embed"
	"fmt"

	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/templates"
)

//go:embed templates.csv bounds.yaml stream.txt
var files embed.FS

// SamplesPerTemplate is the number of recordings per sign.
const SamplesPerTemplate = 5

// Epsilon is the slack under which both signs in the stream are recognized.
const Epsilon = 1.5

// StreamSigns are the labels drawn in stream.txt, in order.
var StreamSigns = []gesture.Label{0, 1}

// ReadFile returns an embedded fixture by name.
func ReadFile(name string) []byte {
	data, err := files.ReadFile(name)
	if err != nil {
		panic(fmt.Sprintf("fixtures: %v", err))
	}
	return data
}

// TemplatesCSV returns the template recordings.
func TemplatesCSV() []byte { return ReadFile("templates.csv") }

// BoundsYAML returns the calibrated bounds file.
func BoundsYAML() []byte { return ReadFile("bounds.yaml") }

// Stream returns the recorded sample stream.
func Stream() []byte { return ReadFile("stream.txt") }

// Library builds the fixture library.
func Library() (*gesture.Library, error) {
	ts, err := templates.NewDecoder().Decode(bytes.NewReader(TemplatesCSV()))
	if err != nil {
		return nil, err
	}
	bf, err := templates.LoadBounds(bytes.NewReader(BoundsYAML()))
	if err != nil {
		return nil, err
	}
	return templates.Build(gesture.LibraryConfig{SamplesPerTemplate: SamplesPerTemplate}, ts, bf)
}
