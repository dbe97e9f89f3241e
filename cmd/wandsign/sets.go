package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/wandsign/internal/config"
	"github.com/ayusman/wandsign/internal/server/api"
	"github.com/ayusman/wandsign/internal/store"
	"github.com/ayusman/wandsign/internal/templates"
)

func newSetsCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sets",
		Short: "Manage stored gesture sets",
	}
	cmd.AddCommand(
		newSetsListCmd(g),
		newSetsShowCmd(g),
		newSetsDeleteCmd(g),
		newSetsExportCmd(g),
		newSetsBindCmd(g),
	)
	return cmd
}

// withStore loads the config, opens the store and calls fn.
func withStore(g *globalOptions, fn func(cfg config.Config, st *store.Store) error) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

// lookupSet returns the named set with a readable not-found error.
func lookupSet(st *store.Store, name string) (*store.GestureSet, error) {
	set, err := st.Sets().GetByName(name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("gesture set %q not found", name)
	}
	return set, err
}

func newSetsListCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List gesture sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(_ config.Config, st *store.Store) error {
				sets, err := st.Sets().List()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tVERSION\tSIGNS\tSAMPLES\tUPDATED\tDESCRIPTION")
				for _, s := range sets {
					fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n", s.Name, s.Version, s.Labels,
						s.SamplesPerTemplate, s.UpdatedAt.Format("2006-01-02 15:04"), s.Description)
				}
				return tw.Flush()
			})
		},
	}
}

func newSetsShowCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show a gesture set's signs, bounds and bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(_ config.Config, st *store.Store) error {
				return showSet(cmd.OutOrStdout(), st, args[0])
			})
		},
	}
}

func showSet(out io.Writer, st *store.Store, name string) error {
	set, err := lookupSet(st, name)
	if err != nil {
		return err
	}
	ts, bounds, err := st.Sets().Templates(set.ID)
	if err != nil {
		return err
	}
	actions, err := st.Actions().ListBySet(set.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s (version %d, %d samples per template)\n", set.Name, set.Version, set.SamplesPerTemplate)
	if set.Description != "" {
		fmt.Fprintln(out, set.Description)
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tNAME\tBOUND X\tBOUND Y\tLENGTHS")
	for _, info := range api.DescribeTemplates(ts, bounds) {
		fmt.Fprintf(tw, "%d\t%s\t%.3f\t%.3f\t%v\n", info.Label, info.Name, info.Bounds.X, info.Bounds.Y, info.Lengths)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(actions) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BINDING\tLABEL\tHOOK\tACTION\tENABLED")
	for _, a := range actions {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%v\n", a.ID, a.Label, a.HookName, a.ActionName, a.Enabled)
	}
	return tw.Flush()
}

func newSetsDeleteCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a gesture set and its bindings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(g, func(_ config.Config, st *store.Store) error {
				set, err := lookupSet(st, args[0])
				if err != nil {
					return err
				}
				if err := st.Sets().Delete(set.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", set.Name)
				return nil
			})
		},
	}
}

func newSetsExportCmd(g *globalOptions) *cobra.Command {
	var (
		csvPath, boundsPath string
		csvOpts             csvOptions
	)

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Write a gesture set back out as a template CSV and bounds file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if csvPath == "" || boundsPath == "" {
				return errors.New("--templates and --bounds are required")
			}
			return withStore(g, func(_ config.Config, st *store.Store) error {
				return exportSet(st, args[0], csvPath, boundsPath)
			})
		},
	}
	cmd.Flags().StringVar(&csvPath, "templates", "", "template CSV to write")
	cmd.Flags().StringVar(&boundsPath, "bounds", "", "bounds file to write")
	csvOpts.addFlags(cmd)
	return cmd
}

func exportSet(st *store.Store, dec *templates.Decoder, name, csvPath, boundsPath string) error {
	lib, set, err := st.Sets().LoadLibrary(name, true)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("gesture set %q not found", name)
	}
	if err != nil {
		return err
	}
	ts, _, err := st.Sets().Templates(set.ID)
	if err != nil {
		return err
	}

	if err := writeOutput(nil, csvPath, func(w io.Writer) error {
		return dec.Encode(w, ts)
	}); err != nil {
		return fmt.Errorf("write templates: %w", err)
	}
	return writeOutput(nil, boundsPath, func(w io.Writer) error {
		return templates.WriteBounds(w, templates.FromLibrary(set.Name, lib))
	})
}

func newSetsBindCmd(g *globalOptions) *cobra.Command {
	var (
		configJSON string
		disabled   bool
	)

	cmd := &cobra.Command{
		Use:     "bind <set> <label> <hook> <action>",
		Short:   "Bind a sign to a hook action",
		Example: `  wandsign sets bind default 1 keyboard keystroke --config '{"key":"space"}'`,
		Args:    cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			label, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid label %q", args[1])
			}
			if configJSON != "" && !json.Valid([]byte(configJSON)) {
				return errors.New("--config is not valid JSON")
			}
			return withStore(g, func(_ config.Config, st *store.Store) error {
				set, err := lookupSet(st, args[0])
				if err != nil {
					return err
				}
				ts, _, err := st.Sets().Templates(set.ID)
				if err != nil {
					return err
				}
				if !hasLabel(api.DescribeTemplates(ts, nil), label) {
					return fmt.Errorf("gesture set %q has no label %d", set.Name, label)
				}
				existing, err := st.Actions().GetByLabel(set.ID, label)
				if err != nil {
					return err
				}
				if existing != nil {
					return fmt.Errorf("label %d is already bound (%s)", label, existing.ID)
				}

				a := &store.Action{
					SetID:      set.ID,
					Label:      label,
					HookName:   args[2],
					ActionName: args[3],
					Enabled:    !disabled,
				}
				if configJSON != "" {
					a.Config = json.RawMessage(configJSON)
				}
				if err := st.Actions().Create(a); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Bound label %d of %q to %s/%s (%s)\n",
					label, set.Name, a.HookName, a.ActionName, a.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&configJSON, "config", "", "action config as JSON")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "create the binding disabled")
	return cmd
}

func hasLabel(infos []api.LabelInfo, label int) bool {
	for _, info := range infos {
		if int(info.Label) == label {
			return true
		}
	}
	return false
}
