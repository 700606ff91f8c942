package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDecryptCommand(rt *Runtime) *cobra.Command {
	var newline bool

	cmd := &cobra.Command{
		Use:   "decrypt <reference>",
		Short: "Decrypt a secret reference",
		Long: `Resolve a secret reference and print its value to stdout.

Only the raw value is printed, making it suitable for scripting.

Examples:
  secretref decrypt 'encrypted:secrets-manager!r:us-east-1,s:prod/db,k:password'
  export DB_PASSWORD=$(secretref decrypt 'encrypted:vault!p:secret/db,k:password')`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := rt.resolver()
			if err != nil {
				return err
			}

			ctx, cancel := rt.context(cmd)
			defer cancel()

			value, err := resolver.Decrypt(ctx, args[0])
			if err != nil {
				return err
			}

			if newline {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
			} else {
				_, err = fmt.Fprint(cmd.OutOrStdout(), value)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&newline, "newline", "n", false, "Print a trailing newline after the value")

	return cmd
}
