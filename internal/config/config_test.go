package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretref/internal/config"
	dserrors "github.com/systmms/secretref/internal/errors"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secretref.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
version: 0
secretDir: /run/secretref
engines:
  s3:
    type: aws.s3
    endpoint: http://localhost:4566
    use_path_style: true
  file:
    type: file
`)

	cfg := &config.Config{Path: path}
	require.NoError(t, cfg.Load())

	def := cfg.Definition
	require.NotNil(t, def)
	assert.Equal(t, "/run/secretref", def.SecretDirectory())
	assert.Equal(t, []string{"file", "s3"}, def.EngineIDs())

	s3, err := cfg.GetEngine("s3")
	require.NoError(t, err)
	assert.Equal(t, "aws.s3", s3.Type)
	assert.Equal(t, "http://localhost:4566", s3.Config["endpoint"])
	assert.Equal(t, true, s3.Config["use_path_style"])
	assert.NotContains(t, s3.Config, "type")
}

func TestLoadMissingDefaultPathUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg := &config.Config{Path: config.DefaultPath}
	require.NoError(t, cfg.Load())

	assert.Equal(t, config.DefaultDefinition().EngineIDs(), cfg.Definition.EngineIDs())
	assert.Equal(t, os.TempDir(), cfg.Definition.SecretDirectory())
}

func TestLoadMissingExplicitPath(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Path: filepath.Join(t.TempDir(), "nope.yaml")}
	err := cfg.Load()
	require.Error(t, err)

	var cfgErr dserrors.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "path", cfgErr.Field)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{
			name:    "bad yaml",
			content: "engines: [unclosed",
			wantMsg: "invalid YAML syntax",
		},
		{
			name:    "unknown top-level key",
			content: "version: 0\nproviders: {}\n",
			wantMsg: "schema validation failed",
		},
		{
			name:    "engine without type",
			content: "engines:\n  s3:\n    region: us-east-1\n",
			wantMsg: "type",
		},
		{
			name:    "unsupported version",
			content: "version: 2\n",
			wantMsg: "version",
		},
		{
			name:    "engine id with reserved characters",
			content: "engines:\n  \"bad!id\":\n    type: file\n",
			wantMsg: "schema validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.Parse([]byte(tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var cfgErr dserrors.ConfigError
			assert.True(t, errors.As(err, &cfgErr))
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	t.Parallel()

	def, err := config.Parse([]byte(""))
	require.NoError(t, err)
	assert.Empty(t, def.Engines)
}

func TestGetEngineUnknown(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{Definition: config.DefaultDefinition()}
	_, err := cfg.GetEngine("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Configured engines:")

	_, err = (&config.Config{}).GetEngine("s3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not loaded")
}
