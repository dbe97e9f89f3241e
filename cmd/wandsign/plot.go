package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayusman/wandsign/internal/config"
	"github.com/ayusman/wandsign/internal/gesture"
	"github.com/ayusman/wandsign/internal/report"
	"github.com/ayusman/wandsign/internal/source"
	"github.com/ayusman/wandsign/internal/store"
)

type plotOptions struct {
	library     libraryOptions
	output      string
	labels      []int
	window      string
	windowIndex int
	format      string
}

func newPlotCmd(g *globalOptions) *cobra.Command {
	opts := &plotOptions{}

	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot template recordings as PNG files",
		Long: `Plot every recording of each label, one PNG per axis. With --window,
a gesture cut from a recorded sample stream is drawn over the recordings
for comparison.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			return runPlot(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	opts.library.addFlags(cmd)
	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "plots", "output directory")
	f.IntSliceVar(&opts.labels, "label", nil, "labels to plot (default all)")
	f.StringVar(&opts.window, "window", "", "sample stream to cut a gesture from")
	f.IntVar(&opts.windowIndex, "window-index", 0, "which gesture of the stream to draw")
	f.StringVar(&opts.format, "format", source.FormatXYZ, "payload format of the sample stream")
	return cmd
}

func runPlot(ctx context.Context, out io.Writer, cfg config.Config, opts *plotOptions) error {
	var st *store.Store
	if !opts.library.fromFiles() {
		var err error
		if st, err = openStore(cfg); err != nil {
			return err
		}
		defer st.Close()
	}

	loaded, err := opts.library.load(cfg, st)
	if err != nil {
		return err
	}

	var window *gesture.Window
	if opts.window != "" {
		windows, err := readWindows(ctx, cfg.SegmenterConfig(), opts.window, opts.format)
		if err != nil {
			return err
		}
		if opts.windowIndex < 0 || opts.windowIndex >= len(windows) {
			return fmt.Errorf("%s holds %d gestures, no gesture %d", opts.window, len(windows), opts.windowIndex)
		}
		window = &windows[opts.windowIndex]
	}

	files, err := report.WriteLibrary(opts.output, loaded.lib, window, parseLabels(opts.labels)...)
	for _, f := range files {
		fmt.Fprintln(out, f)
	}
	return err
}

// readWindows segments a recorded sample file into gestures.
func readWindows(ctx context.Context, cfg gesture.SegmenterConfig, path, format string) ([]gesture.Window, error) {
	parse, err := source.ParserFor(format)
	if err != nil {
		return nil, err
	}
	src, err := source.OpenFile(path, parse)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	seg := gesture.NewSegmenter(cfg)
	var windows []gesture.Window
	for {
		s, err := src.ReadSample(ctx)
		if errors.Is(err, io.EOF) {
			return windows, nil
		}
		if errors.Is(err, source.ErrMalformedSample) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if w, ok := seg.Push(s); ok {
			windows = append(windows, w)
		}
	}
}
