package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/secretref/internal/config"
	"github.com/systmms/secretref/internal/engines"
	"github.com/systmms/secretref/internal/resolve"
)

// Runtime carries the state shared by every command. It is filled in by the
// root command's flags before any command runs.
type Runtime struct {
	Config  *config.Config
	Timeout time.Duration
	Metrics *resolve.Metrics

	// Factories overrides the built-in engine factories.
	Factories *engines.Factories
}

func (rt *Runtime) factories() *engines.Factories {
	if rt.Factories != nil {
		return rt.Factories
	}
	return engines.NewFactories(rt.Config.Logger)
}

// resolver loads the configuration, builds every configured engine and
// returns a resolver over them.
func (rt *Runtime) resolver() (*resolve.Resolver, error) {
	if err := rt.Config.Load(); err != nil {
		return nil, err
	}

	registry, err := rt.factories().Build(rt.Config.Definition.Engines)
	if err != nil {
		return nil, err
	}

	return resolve.New(registry,
		resolve.WithLogger(rt.Config.Logger),
		resolve.WithSecretDir(rt.Config.Definition.SecretDirectory()),
		resolve.WithMetrics(rt.Metrics),
	), nil
}

// context returns the command context bounded by --timeout.
func (rt *Runtime) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if rt.Timeout > 0 {
		return context.WithTimeout(ctx, rt.Timeout)
	}
	return context.WithCancel(ctx)
}
