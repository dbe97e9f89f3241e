package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/wandsign/internal/templates"
)

type calibrateOptions struct {
	output  string
	set     string
	names   []string
	samples int
	csv     csvOptions
}

func newCalibrateCmd(g *globalOptions) *cobra.Command {
	opts := &calibrateOptions{}

	cmd := &cobra.Command{
		Use:   "calibrate <templates.csv>",
		Short: "Compute acceptance bounds for a template CSV",
		Long: `Compute each label's acceptance bounds as the mean DTW distance between
every pair of its recordings, per axis, and write them as a bounds file.
A per-label summary is printed to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("samples") {
				opts.samples = cfg.Classifier.SamplesPerTemplate
			}
			if opts.set == "" {
				opts.set = cfg.Set
			}
			return runCalibrate(cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "bounds file to write (default stdout)")
	f.StringVar(&opts.set, "set", "", "set name recorded in the bounds file (default from config)")
	f.StringSliceVar(&opts.names, "names", nil, "label names, e.g. 0=line,1=circle")
	f.IntVar(&opts.samples, "samples", 0, "recordings per label (default from config)")
	opts.csv.addFlags(cmd)
	return cmd
}

func runCalibrate(out, summary io.Writer, csvPath string, opts *calibrateOptions) error {
	names, err := parseNames(opts.names)
	if err != nil {
		return err
	}
	dec, err := opts.csv.decoder()
	if err != nil {
		return err
	}
	ts, err := dec.DecodeFile(csvPath)
	if err != nil {
		return err
	}
	bf, cals, err := calibrate(ts, opts.set, opts.samples, names)
	if err != nil {
		return err
	}

	if err := writeOutput(out, opts.output, func(w io.Writer) error {
		return templates.WriteBounds(w, bf)
	}); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(summary, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tNAME\tPAIRS\tX\tY")
	for _, c := range cals {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%.3f ±%.3f\t%.3f ±%.3f\n",
			c.Label, names[c.Label], c.Pairs, c.MeanX, c.StdX, c.MeanY, c.StdY)
	}
	return tw.Flush()
}
