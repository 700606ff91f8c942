package commands

import (
	"io"
	"os"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/render"
	"github.com/systmms/secretref/internal/secure"
)

func NewRenderCommand(rt *Runtime) *cobra.Command {
	var (
		inputPath  string
		outputPath string
	)

	cmd := &cobra.Command{
		Use:   "render -f <file> [-o <file>]",
		Short: "Resolve secret references in a YAML document",
		Long: `Replace every string value holding a secret reference with its resolved
value. encrypted: values become the secret itself, encryptedFile: values
become the path of a new secret file. Keys, comments and ordering are kept.

Use '-' to read from stdin. Without --out the result is written to stdout;
output files are created readable only by the current user.

Examples:
  secretref render -f config.tmpl.yaml -o config.yaml
  cat values.yaml | secretref render -f - | kubectl apply -f -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, inputPath)
			if err != nil {
				return err
			}

			resolver, err := rt.resolver()
			if err != nil {
				return err
			}

			ctx, cancel := rt.context(cmd)
			defer cancel()

			out, err := render.Document(ctx, resolver, in)
			if err != nil {
				return err
			}
			defer secure.Wipe(out)

			if outputPath == "" {
				_, err = cmd.OutOrStdout().Write(out)
				return err
			}
			if err := writeOutput(outputPath, out); err != nil {
				return err
			}
			rt.Config.Logger.Warn("File contains secrets - ensure it's added to .gitignore")
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "YAML document to render ('-' for stdin)")
	cmd.Flags().StringVarP(&outputPath, "out", "o", "", "Output file path (default stdout)")

	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    "Failed to read input document",
			Details:    err.Error(),
			Suggestion: "Check the --file path",
			Err:        err,
		}
	}
	return data, nil
}

// writeOutput replaces path with data, leaving it mode 0600 even when the
// file already existed with wider permissions.
func writeOutput(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return dserrors.UserError{
			Message:    "Failed to create output file",
			Details:    err.Error(),
			Suggestion: "Check that the output directory exists and is writable",
			Err:        err,
		}
	}
	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
