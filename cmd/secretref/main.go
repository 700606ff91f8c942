package main

import (
	"fmt"
	"os"
	"time"

	"github.com/awnumar/memguard"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/systmms/secretref/cmd/secretref/commands"
	"github.com/systmms/secretref/internal/config"
	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/internal/resolve"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	memguard.CatchInterrupt()

	err := run()
	memguard.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	// Global flags
	var (
		configFile  string
		noColor     bool
		debug       bool
		timeout     time.Duration
		metricsFile string
	)

	cfg := &config.Config{}
	rt := &commands.Runtime{Config: cfg}
	registry := prometheus.NewRegistry()

	rootCmd := &cobra.Command{
		Use:   "secretref",
		Short: "Resolve secret references against pluggable secret engines",
		Long: `secretref resolves references of the form

  encrypted:<engine>!key:value,...
  encryptedFile:<engine>!key:value,...

against AWS, GCP, Azure, Vault, local files and the OS keychain, printing
the secret, writing it to a private file or rendering it into YAML.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			rt.Timeout = timeout
			if metricsFile != "" {
				rt.Metrics = resolve.NewMetrics(registry)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Maximum time to wait for secret engines (0 disables)")
	rootCmd.PersistentFlags().StringVar(&metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	rootCmd.AddCommand(
		commands.NewDecryptCommand(rt),
		commands.NewDecryptFileCommand(rt),
		commands.NewCheckCommand(rt),
		commands.NewEnginesCommand(rt),
		commands.NewRenderCommand(rt),
		commands.NewCompletionCommand(),
	)

	err := rootCmd.Execute()
	if rt.Metrics != nil {
		if werr := prometheus.WriteToTextfile(metricsFile, registry); werr != nil && err == nil {
			err = fmt.Errorf("failed to write metrics: %w", werr)
		}
	}
	return err
}
