package engines

import (
	"fmt"
	"sort"
	"strings"

	"github.com/systmms/secretref/internal/config"
	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/pkg/secrets"
)

// Factory creates an engine instance from configuration
type Factory func(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error)

// Factories maps configuration types to engine constructors.
type Factories struct {
	factories map[string]Factory
	logger    *logging.Logger
}

// NewFactories creates a factory set with the built-in engines registered.
func NewFactories(logger *logging.Logger) *Factories {
	if logger == nil {
		logger = logging.Discard()
	}
	f := &Factories{
		factories: make(map[string]Factory),
		logger:    logger,
	}

	f.Register(TypeS3, NewS3EngineFactory)
	f.Register(TypeSecretsManager, NewSecretsManagerEngineFactory)
	f.Register(TypeSSM, NewSSMEngineFactory)
	f.Register(TypeGCPSecretManager, NewGCPSecretManagerEngineFactory)
	f.Register(TypeAzureKeyVault, NewAzureKeyVaultEngineFactory)
	f.Register(TypeVault, NewVaultEngineFactory)
	f.Register(TypeFile, NewFileEngineFactory)
	f.Register(TypeKeychain, NewKeychainEngineFactory)

	return f
}

// Register registers a factory for a given type, replacing any previous one.
func (f *Factories) Register(engineType string, factory Factory) {
	f.factories[engineType] = factory
}

// IsSupported checks if an engine type is supported
func (f *Factories) IsSupported(engineType string) bool {
	_, exists := f.factories[engineType]
	return exists
}

// SupportedTypes returns the supported engine types, sorted.
func (f *Factories) SupportedTypes() []string {
	types := make([]string, 0, len(f.factories))
	for engineType := range f.factories {
		types = append(types, engineType)
	}
	sort.Strings(types)
	return types
}

// Create builds a single engine.
func (f *Factories) Create(id string, cfg config.EngineConfig) (secrets.Engine, error) {
	factory, exists := f.factories[cfg.Type]
	if !exists {
		return nil, dserrors.ConfigError{
			Field:      fmt.Sprintf("engines.%s.type", id),
			Value:      cfg.Type,
			Message:    "unknown engine type",
			Suggestion: "Supported types: " + strings.Join(f.SupportedTypes(), ", "),
		}
	}

	engine, err := factory(id, cfg.Config, f.logger)
	if err != nil {
		return nil, dserrors.UserError{
			Message:    fmt.Sprintf("Failed to create engine '%s'", id),
			Details:    err.Error(),
			Suggestion: fmt.Sprintf("Check the settings of engines.%s in your configuration", id),
			Err:        err,
		}
	}
	return engine, nil
}

// Build creates every configured engine and returns the registry. Engines
// are created in id order so errors are deterministic.
func (f *Factories) Build(defs map[string]config.EngineConfig) (*Registry, error) {
	ids := make([]string, 0, len(defs))
	for id := range defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	registry := &Registry{entries: make(map[string]entry, len(defs))}
	for _, id := range ids {
		def := defs[id]
		engine, err := f.Create(id, def)
		if err != nil {
			return nil, err
		}
		if err := registry.add(engine, def.Type); err != nil {
			return nil, err
		}
		f.logger.Debug("Registered engine %s (%s)", id, def.Type)
	}
	return registry, nil
}
