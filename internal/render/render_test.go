package render_test

import (
	"context"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/systmms/secretref/internal/engines"
	"github.com/systmms/secretref/internal/fakes"
	"github.com/systmms/secretref/internal/render"
	"github.com/systmms/secretref/internal/resolve"
	"github.com/systmms/secretref/pkg/secrets"
)

func newResolver(t *testing.T) *resolve.Resolver {
	t.Helper()
	registry, err := engines.NewRegistry(
		fakes.NewFakeEngine("s3").WithValue("test"),
		fakes.NewFakeEngine("num").WithValue("1234"),
	)
	require.NoError(t, err)
	return resolve.New(registry, resolve.WithSecretFS(memfs.New(), "/secrets"))
}

func TestDocument(t *testing.T) {
	t.Parallel()

	in := `# database settings
database:
  host: db.internal # primary
  password: encrypted:s3!paramName:paramValue
  port: 5432
  pin: "encrypted:num!k:v"
  tls:
    key: encryptedFile:s3!f:tls.key
hosts:
  - a.internal
  - encrypted:s3!k:v
encrypted:s3!k:v: key-is-not-resolved
`
	out, err := render.Document(context.Background(), newResolver(t), []byte(in))
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "# database settings")
	assert.Contains(t, text, "# primary")

	var doc struct {
		Database struct {
			Host     string `yaml:"host"`
			Password string `yaml:"password"`
			Port     int    `yaml:"port"`
			Pin      string `yaml:"pin"`
			TLS      struct {
				Key string `yaml:"key"`
			} `yaml:"tls"`
		} `yaml:"database"`
		Hosts   []string          `yaml:"hosts"`
		Literal map[string]string `yaml:",inline"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Equal(t, "db.internal", doc.Database.Host)
	assert.Equal(t, "test", doc.Database.Password)
	assert.Equal(t, 5432, doc.Database.Port)
	assert.Equal(t, "1234", doc.Database.Pin, "resolved values stay strings")
	assert.True(t, strings.HasPrefix(doc.Database.TLS.Key, "/secrets/secret-s3-"))
	assert.Equal(t, []string{"a.internal", "test"}, doc.Hosts)
	assert.Equal(t, "key-is-not-resolved", doc.Literal["encrypted:s3!k:v"])
}

func TestDocumentPlainPassThrough(t *testing.T) {
	t.Parallel()

	in := "name: app\nreplicas: 3\nenabled: true\n"
	out, err := render.Document(context.Background(), newResolver(t), []byte(in))
	require.NoError(t, err)
	assert.Equal(t, in, string(out))
}

func TestDocumentMultipleDocuments(t *testing.T) {
	t.Parallel()

	in := "a: encrypted:s3!k:v\n---\nb: plain\n"
	out, err := render.Document(context.Background(), newResolver(t), []byte(in))
	require.NoError(t, err)
	assert.Equal(t, "a: test\n---\nb: plain\n", string(out))
}

func TestDocumentErrors(t *testing.T) {
	t.Parallel()

	in := "first: ok\nsecond: encrypted:missing!token:leaked-value\n"
	_, err := render.Document(context.Background(), newResolver(t), []byte(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "Secret Engine does not exist: missing")
	assert.NotContains(t, err.Error(), "leaked-value")
	assert.ErrorIs(t, err, secrets.ErrInvalidFormat)

	_, err = render.Document(context.Background(), newResolver(t), []byte("a: [unclosed"))
	assert.Error(t, err)
}
