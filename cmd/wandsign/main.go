// Command wandsign recognizes signs drawn in the air with a handheld
// accelerometer and runs actions bound to them.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/wandsign/internal/config"
	"github.com/ayusman/wandsign/internal/store"
)

var version = "dev"

// globalOptions are shared by every subcommand.
type globalOptions struct {
	configPath string
	dbPath     string
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "wandsign",
		Short: "Accelerometer gesture recognition",
		Long: `wandsign segments a live accelerometer stream into gestures using
start/stop spikes on the z axis and names each gesture by dynamic time
warping against a library of recorded templates.

Import a template set, then run the recognizer:

  wandsign import templates.csv --bounds bounds.yaml --name default
  wandsign run --set default`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.wandsign/config.yaml)")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "database path (overrides the config file)")

	root.AddCommand(
		newRunCmd(opts),
		newImportCmd(opts),
		newCalibrateCmd(opts),
		newPlotCmd(opts),
		newSetsCmd(opts),
		newHooksCmd(opts),
	)
	return root
}

// loadConfig reads the config file. The default path may be absent.
func (o *globalOptions) loadConfig() (config.Config, error) {
	path, optional := o.configPath, false
	if path == "" {
		path, optional = config.DefaultPath(), true
	}

	cfg, err := config.Load(path, optional)
	if err != nil {
		return cfg, err
	}
	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	return cfg, nil
}

// openStore opens the database, creating its directory.
func openStore(cfg config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	return st, nil
}
