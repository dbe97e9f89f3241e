package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/wandsign/internal/hook"
)

func newHooksCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "List the hooks found in the hooks directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			manager := hook.NewManager(cfg.Hooks.Dir)
			if err := manager.Discover(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			hooks := manager.List()
			if len(hooks) == 0 {
				fmt.Fprintf(out, "No hooks in %s\n", manager.Dir())
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tVERSION\tACTIONS\tDESCRIPTION")
			for _, h := range hooks {
				actions := strings.Join(h.Manifest.Actions, ",")
				if actions == "" {
					actions = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", h.Manifest.Name, h.Manifest.Version, actions, h.Manifest.Description)
			}
			return tw.Flush()
		},
	}
}
