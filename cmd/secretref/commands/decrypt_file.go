package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewDecryptFileCommand(rt *Runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decrypt-file <reference>",
		Short: "Write a decrypted secret to a new file",
		Long: `Resolve a secret reference, write its value to a new file readable only
by the current user and print the file path.

The file is created in the configured secretDir (the system temporary
directory by default). Delete it once it is no longer needed.

Examples:
  secretref decrypt-file 'encryptedFile:s3!r:eu-west-1,b:certs,f:tls/server.key'
  KEY_FILE=$(secretref decrypt-file 'encryptedFile:file!f:/etc/app/key.pem')`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := rt.resolver()
			if err != nil {
				return err
			}

			ctx, cancel := rt.context(cmd)
			defer cancel()

			path, err := resolver.DecryptToFile(ctx, args[0])
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}

	return cmd
}
