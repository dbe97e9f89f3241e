package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/wandsign/internal/config"
	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/store"
	"github.com/ayusman/wandsign/internal/templates"
)

// csvOptions describe how template CSV row keys are read.
type csvOptions struct {
	layout     string
	xAxisDigit int
}

func (o *csvOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.layout, "key-layout", templates.DefaultKeyLayout().String(),
		"positions of the label, sample and axis digits in a row key")
	cmd.Flags().IntVar(&o.xAxisDigit, "x-axis-digit", templates.NewDecoder().XAxisDigit,
		"axis digit that marks x rows (0 or 1)")
}

func (o *csvOptions) decoder() (*templates.Decoder, error) {
	layout, err := templates.ParseKeyLayout(o.layout)
	if err != nil {
		return nil, err
	}
	if o.xAxisDigit != 0 && o.xAxisDigit != 1 {
		return nil, fmt.Errorf("--x-axis-digit must be 0 or 1, got %d", o.xAxisDigit)
	}
	return &templates.Decoder{Layout: layout, XAxisDigit: o.xAxisDigit}, nil
}

// libraryOptions select a template library either from the store or from a
// template CSV and bounds file on disk.
type libraryOptions struct {
	set       string
	templates string
	bounds    string
	csv       csvOptions
}

func (o *libraryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.set, "set", "", "stored gesture set (default from config)")
	cmd.Flags().StringVar(&o.templates, "templates", "", "template CSV, used instead of a stored set")
	cmd.Flags().StringVar(&o.bounds, "bounds", "", "bounds file for --templates")
	o.csv.addFlags(cmd)
}

func (o *libraryOptions) fromFiles() bool {
	return o.templates != ""
}

func (o *libraryOptions) validate() error {
	if o.fromFiles() && o.bounds == "" {
		return errors.New("--templates needs --bounds")
	}
	if !o.fromFiles() && o.bounds != "" {
		return errors.New("--bounds needs --templates")
	}
	if o.fromFiles() && o.set != "" {
		return errors.New("--set and --templates are mutually exclusive")
	}
	return nil
}

// loadedLibrary is a library and, when it came from the store, its set.
type loadedLibrary struct {
	lib  *gesture.Library
	name string
	set  *store.GestureSet
}

// load builds the library. st may be nil when loading from files.
func (o *libraryOptions) load(cfg config.Config, st *store.Store) (*loadedLibrary, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}

	if o.fromFiles() {
		dec, err := o.csv.decoder()
		if err != nil {
			return nil, err
		}
		lib, err := templates.Load(cfg.LibraryConfig(), dec, o.templates, o.bounds)
		if err != nil {
			return nil, fmt.Errorf("failed to load templates: %w", err)
		}
		name := o.set
		if name == "" {
			name = cfg.Set
		}
		return &loadedLibrary{lib: lib, name: name}, nil
	}

	name := o.set
	if name == "" {
		name = cfg.Set
	}
	if st == nil {
		return nil, errors.New("no store to load the gesture set from")
	}
	lib, set, err := st.Sets().LoadLibrary(name, cfg.Classifier.AllowEmpty)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("gesture set %q not found; import one with 'wandsign import'", name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load gesture set %q: %w", name, err)
	}
	return &loadedLibrary{lib: lib, name: name, set: set}, nil
}

// parseNames parses label=name pairs such as "0=line,1=circle".
func parseNames(pairs []string) (map[gesture.Label]string, error) {
	names := make(map[gesture.Label]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid name %q, want label=name", p)
		}
		label, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil || label < 0 {
			return nil, fmt.Errorf("invalid label in %q", p)
		}
		names[gesture.Label(label)] = strings.TrimSpace(v)
	}
	return names, nil
}

// parseLabels parses label numbers.
func parseLabels(values []int) []gesture.Label {
	labels := make([]gesture.Label, len(values))
	for i, v := range values {
		labels[i] = gesture.Label(v)
	}
	return labels
}
