package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "secretref.yaml"

//go:embed schema.json
var schemaJSON string

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition
}

// Definition represents the secretref.yaml structure
type Definition struct {
	Version   int                     `yaml:"version"`
	SecretDir string                  `yaml:"secretDir,omitempty"`
	Engines   map[string]EngineConfig `yaml:"engines"`
}

// EngineConfig holds engine-specific configuration. The map key in
// Definition.Engines is the engine id used in references.
type EngineConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:",inline"`
}

// DefaultDefinition enables every built-in engine under its conventional id
// with ambient credentials.
func DefaultDefinition() *Definition {
	return &Definition{
		Engines: map[string]EngineConfig{
			"s3":                  {Type: "aws.s3"},
			"secrets-manager":     {Type: "aws.secretsmanager"},
			"ssm":                 {Type: "aws.ssm"},
			"gcp-secrets-manager": {Type: "gcp.secretmanager"},
			"azure-keyvault":      {Type: "azure.keyvault"},
			"vault":               {Type: "vault"},
			"file":                {Type: "file"},
			"keychain":            {Type: "keychain"},
		},
	}
}

// Load reads and parses the configuration file. A missing file at
// DefaultPath falls back to DefaultDefinition; a missing file anywhere else
// is an error.
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			if c.Path == DefaultPath || c.Path == "" {
				c.Definition = DefaultDefinition()
				return nil
			}
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Check the --config flag or omit it to use the built-in engines",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}
	c.Definition = def
	return nil
}

// Parse validates data against the configuration schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}
	if raw == nil {
		return &Definition{Engines: map[string]EngineConfig{}}, nil
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    "configuration does not match the expected structure",
			Suggestion: "Each engine needs a 'type' and optional engine settings",
		}
	}
	if def.Engines == nil {
		def.Engines = map[string]EngineConfig{}
	}
	return &def, nil
}

func validateSchema(doc interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schemaJSON),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return dserrors.ConfigError{
			Message:    fmt.Sprintf("configuration could not be validated: %v", err),
			Suggestion: "Use string keys only in the configuration file",
		}
	}
	if result.Valid() {
		return nil
	}

	var messages []string
	for _, desc := range result.Errors() {
		messages = append(messages, desc.String())
	}
	sort.Strings(messages)
	return dserrors.ConfigError{
		Message:    "schema validation failed:\n  - " + strings.Join(messages, "\n  - "),
		Suggestion: "Supported top-level keys are version, secretDir and engines",
	}
}

// EngineIDs returns the configured engine ids, sorted.
func (d *Definition) EngineIDs() []string {
	ids := make([]string, 0, len(d.Engines))
	for id := range d.Engines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetEngine returns the configuration for an engine id.
func (c *Config) GetEngine(id string) (EngineConfig, error) {
	if c.Definition == nil {
		return EngineConfig{}, dserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}

	if engine, ok := c.Definition.Engines[id]; ok {
		return engine, nil
	}

	suggestion := "Add the engine to the 'engines:' section of your secretref.yaml"
	if ids := c.Definition.EngineIDs(); len(ids) > 0 {
		suggestion = fmt.Sprintf("Configured engines: %s. %s", strings.Join(ids, ", "), suggestion)
	}
	return EngineConfig{}, dserrors.ConfigError{
		Field:      "engine",
		Value:      id,
		Message:    "engine not found in configuration",
		Suggestion: suggestion,
	}
}

// SecretDirectory returns the directory secret files are written to.
func (d *Definition) SecretDirectory() string {
	if d.SecretDir != "" {
		return d.SecretDir
	}
	return os.TempDir()
}
