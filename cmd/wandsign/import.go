package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ayusman/wandsign/internal/config"
	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/templates"
)

type importOptions struct {
	name        string
	description string
	bounds      string
	calibrate   bool
	names       []string
	samples     int
	csv         csvOptions
}

func newImportCmd(g *globalOptions) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import <templates.csv>",
		Short: "Store a template CSV as a gesture set",
		Long: `Import a template CSV into the database as a gesture set. Acceptance
bounds come from a bounds file (--bounds) or are calibrated from the
recordings themselves (--calibrate). Importing over an existing set replaces
its templates and keeps its hook bindings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("samples") {
				opts.samples = cfg.Classifier.SamplesPerTemplate
			}
			return runImport(cmd.OutOrStdout(), cfg, args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.name, "name", "", "gesture set name (default from config)")
	f.StringVar(&opts.description, "description", "", "gesture set description")
	f.StringVar(&opts.bounds, "bounds", "", "bounds file")
	f.BoolVar(&opts.calibrate, "calibrate", false, "calibrate bounds from the recordings")
	f.StringSliceVar(&opts.names, "names", nil, "label names, e.g. 0=line,1=circle")
	f.IntVar(&opts.samples, "samples", 0, "recordings per label (default from config)")
	opts.csv.addFlags(cmd)
	return cmd
}

func runImport(out io.Writer, cfg config.Config, csvPath string, opts *importOptions) error {
	if (opts.bounds == "") == !opts.calibrate {
		return errors.New("exactly one of --bounds and --calibrate is required")
	}
	names, err := parseNames(opts.names)
	if err != nil {
		return err
	}
	name := opts.name
	if name == "" {
		name = cfg.Set
	}

	dec, err := opts.csv.decoder()
	if err != nil {
		return err
	}
	ts, err := dec.DecodeFile(csvPath)
	if err != nil {
		return err
	}

	var bf *templates.BoundsFile
	if opts.calibrate {
		bf, _, err = calibrate(ts, name, opts.samples, names)
	} else {
		bf, err = templates.LoadBoundsFile(opts.bounds)
	}
	if err != nil {
		return err
	}
	for i, e := range bf.Entries {
		if n, ok := names[e.Label]; ok {
			bf.Entries[i].Name = n
		}
	}

	libCfg := cfg.LibraryConfig()
	libCfg.SamplesPerTemplate = opts.samples
	lib, err := templates.Build(libCfg, ts, bf)
	if err != nil {
		return err
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	set, err := st.Sets().Save(name, opts.description, lib)
	if err != nil {
		return fmt.Errorf("failed to save gesture set: %w", err)
	}
	fmt.Fprintf(out, "Imported %q version %d: %d signs, %d samples per template\n",
		set.Name, set.Version, set.Labels, set.SamplesPerTemplate)
	return nil
}

// calibrate validates the recordings and derives their bounds.
func calibrate(ts []gesture.Template, set string, samples int, names map[gesture.Label]string) (*templates.BoundsFile, []gesture.Calibration, error) {
	for _, t := range ts {
		if len(t.X) != samples || len(t.Y) != samples {
			return nil, nil, fmt.Errorf("%w: label %d has %d/%d recordings, want %d",
				gesture.ErrMalformedTemplateData, t.Label, len(t.X), len(t.Y), samples)
		}
	}
	cals, err := gesture.NewCalibrator().CalibrateAll(ts)
	if err != nil {
		return nil, nil, err
	}
	return templates.FromCalibrations(set, samples, cals, names), cals, nil
}

// writeOutput writes to path, or to w when path is empty or "-".
func writeOutput(w io.Writer, path string, write func(io.Writer) error) error {
	if path == "" || path == "-" {
		return write(w)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
