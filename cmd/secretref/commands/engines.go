package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func NewEnginesCommand(rt *Runtime) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List configured secret engines",
		Long: `Display the secret engines available to references.

Without a configuration file every built-in engine is listed under its
conventional id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rt.Config.Load(); err != nil {
				return err
			}
			factories := rt.factories()
			out := cmd.OutOrStdout()

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintf(w, "ID\tTYPE\tSTATUS\n")
			for _, id := range rt.Config.Definition.EngineIDs() {
				engineType := rt.Config.Definition.Engines[id].Type
				status := "configured"
				if !factories.IsSupported(engineType) {
					status = "unsupported"
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", id, engineType, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if verbose {
				_, _ = fmt.Fprintln(out, "\nSupported types:")
				for _, engineType := range factories.SupportedTypes() {
					_, _ = fmt.Fprintf(out, "  %s\n", engineType)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also list every supported engine type")

	return cmd
}
