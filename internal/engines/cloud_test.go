package engines_test

import (
	"context"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/engines"
	"github.com/systmms/secretref/internal/fakes"
	"github.com/systmms/secretref/pkg/secrets"
)

func TestGCPSecretManagerEngineDecrypt(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient().
		AddVersion("projects/acme/secrets/db/versions/latest", []byte(`{"password":"hunter2"}`)).
		AddVersion("projects/acme/secrets/db/versions/3", []byte("v3")).
		AddVersion("projects/other/secrets/api/versions/latest", []byte("other-project"))
	engine := engines.NewGCPSecretManagerEngine("gcp-secrets-manager",
		map[string]interface{}{"project_id": "acme"}, nil,
		engines.WithGCPSecretManagerClient(client))
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"configured project", "encrypted:gcp-secrets-manager!s:db", `{"password":"hunter2"}`},
		{"key", "encrypted:gcp-secrets-manager!s:db,k:password", "hunter2"},
		{"version", "encrypted:gcp-secrets-manager!s:db,v:3", "v3"},
		{"project parameter", "encrypted:gcp-secrets-manager!s:api,p:other", "other-project"},
		{"resource name", "encrypted:gcp-secrets-manager!s:projects/acme/secrets/db/versions/3", "v3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(t, tt.ref)
			require.NoError(t, engine.Validate(p))
			got, err := engine.Decrypt(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGCPSecretManagerEngineErrors(t *testing.T) {
	t.Parallel()

	bad := int64(1)
	client := fakes.NewFakeGCPSecretManagerClient().
		AddPayload("projects/acme/secrets/corrupt/versions/latest", &secretmanagerpb.SecretPayload{
			Data:       []byte("tampered"),
			DataCrc32C: &bad,
		}).
		AddError("projects/acme/secrets/denied/versions/latest", fakes.GCPPermissionDeniedError())
	engine := engines.NewGCPSecretManagerEngine("gcp", map[string]interface{}{"project_id": "acme"}, nil,
		engines.WithGCPSecretManagerClient(client))
	ctx := context.Background()

	var de secrets.DecryptionError

	_, err := engine.Decrypt(ctx, params(t, "encrypted:gcp!s:missing"))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "fetch", de.Op)
	assert.Equal(t, "verify the project, secret name and version", de.Suggestion)

	_, err = engine.Decrypt(ctx, params(t, "encrypted:gcp!s:denied"))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "grant roles/secretmanager.secretAccessor to the current identity", de.Suggestion)

	_, err = engine.Decrypt(ctx, params(t, "encrypted:gcp!s:corrupt"))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "verify checksum", de.Op)
	assert.NotContains(t, err.Error(), "tampered")
}

func TestGCPSecretManagerEngineRequiresProject(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")

	engine := engines.NewGCPSecretManagerEngine("gcp", nil, nil,
		engines.WithGCPSecretManagerClient(fakes.NewFakeGCPSecretManagerClient()))

	err := engine.Validate(params(t, "encrypted:gcp!s:db"))
	assert.ErrorIs(t, err, secrets.ErrInvalidFormat)
	assert.NoError(t, engine.Validate(params(t, "encrypted:gcp!s:db,p:acme")))
	assert.NoError(t, engine.Validate(params(t, "encrypted:gcp!s:projects/acme/secrets/db")))

	t.Setenv("GOOGLE_CLOUD_PROJECT", "from-env")
	engine = engines.NewGCPSecretManagerEngine("gcp", nil, nil)
	assert.NoError(t, engine.Validate(params(t, "encrypted:gcp!s:db")))
}

func TestAzureKeyVaultEngineDecrypt(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAzureKeyVaultClient().
		AddSecret("db-password", "hunter2").
		AddSecret("db-config", "user: app\npassword: nested\n").
		AddSecretVersion("db-password", "abc123", "previous")
	engine, err := engines.NewAzureKeyVaultEngine("azure-keyvault",
		map[string]interface{}{"vault_url": "https://acme.vault.azure.net/"}, nil,
		engines.WithAzureKeyVaultClient(client))
	require.NoError(t, err)
	ctx := context.Background()

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"configured vault", "encrypted:azure-keyvault!s:db-password", "hunter2"},
		{"vault parameter", "encrypted:azure-keyvault!s:db-password,v:other", "hunter2"},
		{"version", "encrypted:azure-keyvault!s:db-password,ver:abc123", "previous"},
		{"key", "encrypted:azure-keyvault!s:db-config,k:password", "nested"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := params(t, tt.ref)
			require.NoError(t, engine.Validate(p))
			got, err := engine.Decrypt(ctx, p)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAzureKeyVaultEngineErrors(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeAzureKeyVaultClient().
		AddError("locked", fakes.AzureForbiddenError())
	engine, err := engines.NewAzureKeyVaultEngine("azure", nil, nil, engines.WithAzureKeyVaultClient(client))
	require.NoError(t, err)
	ctx := context.Background()

	err = engine.Validate(params(t, "encrypted:azure!s:db-password"))
	assert.ErrorIs(t, err, secrets.ErrInvalidFormat, "a vault is required")

	var de secrets.DecryptionError
	_, err = engine.Decrypt(ctx, params(t, "encrypted:azure!s:missing,v:acme"))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "verify the vault and secret name", de.Suggestion)

	_, err = engine.Decrypt(ctx, params(t, "encrypted:azure!s:locked,v:acme"))
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "grant the current identity 'get' permission on the Key Vault secrets", de.Suggestion)
}

func TestAzureKeyVaultEngineConfigValidation(t *testing.T) {
	t.Parallel()

	_, err := engines.NewAzureKeyVaultEngine("azure", map[string]interface{}{"vault_url": "http://insecure"}, nil)
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "engines.azure.vault_url", cfgErr.Field)

	_, err = engines.NewAzureKeyVaultEngine("azure", map[string]interface{}{"client_secret": "x"}, nil)
	require.ErrorAs(t, err, &cfgErr)
}
