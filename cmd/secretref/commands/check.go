package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/secretref/internal/errors"
)

func NewCheckCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <reference>...",
		Short: "Validate secret references without decrypting them",
		Long: `Parse each reference, look up its engine and validate its parameters.

No backend is contacted, so check is safe to run in CI against
configuration files that contain references.

Examples:
  secretref check 'encrypted:ssm!r:us-east-1,p:/app/token'
  secretref check 'encrypted:s3!r:us-east-1,b:config,f:app.yaml' 'encrypted:keychain!s:app,a:me'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := rt.resolver()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for i, raw := range args {
				ref, err := resolver.Check(raw)
				if err != nil {
					failed++
					_, _ = fmt.Fprintf(out, "FAIL  #%d: %v\n", i+1, err)
					continue
				}
				_, _ = fmt.Fprintf(out, "OK    %s\n", ref)
			}

			if failed > 0 {
				return dserrors.UserError{
					Message:    fmt.Sprintf("%d of %d references are invalid", failed, len(args)),
					Suggestion: "Run 'secretref engines' to list the configured engines",
				}
			}
			return nil
		},
	}

	return cmd
}
