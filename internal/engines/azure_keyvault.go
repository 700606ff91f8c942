package engines

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/pkg/secrets"
)

// AzureKeyVaultClientAPI defines the interface for Azure Key Vault operations
// This allows for mocking in tests
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKeyVaultConfig holds Azure Key Vault-specific configuration
type AzureKeyVaultConfig struct {
	VaultURL           string
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string // For user-assigned managed identity
}

// AzureKeyVaultEngine reads secrets from Azure Key Vault.
//
// Parameters: s secret name is required; v vault name overrides the
// configured vault_url, ver pins a version and k extracts a key.
type AzureKeyVaultEngine struct {
	id      string
	config  AzureKeyVaultConfig
	clients *clientCache[AzureKeyVaultClientAPI]
	logger  *logging.Logger
}

// AzureKeyVaultEngineOption is a functional option for configuring AzureKeyVaultEngine
type AzureKeyVaultEngineOption func(*AzureKeyVaultEngine)

// WithAzureKeyVaultClient sets a custom Azure Key Vault client for every
// vault (for testing)
func WithAzureKeyVaultClient(client AzureKeyVaultClientAPI) AzureKeyVaultEngineOption {
	return func(e *AzureKeyVaultEngine) {
		e.clients = newClientCache(func(context.Context, string) (AzureKeyVaultClientAPI, error) {
			return client, nil
		})
	}
}

// NewAzureKeyVaultEngine creates a new Azure Key Vault engine
func NewAzureKeyVaultEngine(id string, cfg map[string]interface{}, logger *logging.Logger, opts ...AzureKeyVaultEngineOption) (*AzureKeyVaultEngine, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	config := AzureKeyVaultConfig{
		VaultURL:           stringOption(cfg, "vault_url"),
		TenantID:           stringOption(cfg, "tenant_id"),
		ClientID:           stringOption(cfg, "client_id"),
		ClientSecret:       stringOption(cfg, "client_secret"),
		UseManagedIdentity: boolOption(cfg, "use_managed_identity", false),
		UserAssignedID:     stringOption(cfg, "user_assigned_identity_id"),
	}

	if config.VaultURL != "" {
		if u, err := url.Parse(config.VaultURL); err != nil || u.Scheme != "https" || u.Host == "" {
			return nil, dserrors.ConfigError{
				Field:      fmt.Sprintf("engines.%s.vault_url", id),
				Value:      config.VaultURL,
				Message:    "Invalid vault_url format",
				Suggestion: "Use format: https://vault-name.vault.azure.net/",
			}
		}
	}
	if config.ClientSecret != "" && (config.TenantID == "" || config.ClientID == "") {
		return nil, dserrors.ConfigError{
			Field:      fmt.Sprintf("engines.%s", id),
			Message:    "client_secret requires tenant_id and client_id",
			Suggestion: "Set tenant_id and client_id of the service principal",
		}
	}

	e := &AzureKeyVaultEngine{
		id:     id,
		config: config,
		logger: logger,
	}
	e.clients = newClientCache(e.newClient)

	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewAzureKeyVaultEngineFactory creates an Azure Key Vault engine factory
func NewAzureKeyVaultEngineFactory(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error) {
	return NewAzureKeyVaultEngine(id, cfg, logger)
}

// credential picks the authentication method from the configuration
func (e *AzureKeyVaultEngine) credential() (azcore.TokenCredential, error) {
	switch {
	case e.config.UseManagedIdentity && e.config.UserAssignedID != "":
		return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(e.config.UserAssignedID),
		})
	case e.config.UseManagedIdentity:
		return azidentity.NewManagedIdentityCredential(nil)
	case e.config.ClientSecret != "":
		return azidentity.NewClientSecretCredential(e.config.TenantID, e.config.ClientID, e.config.ClientSecret, nil)
	default:
		// Azure CLI, environment or workload identity
		return azidentity.NewDefaultAzureCredential(nil)
	}
}

func (e *AzureKeyVaultEngine) newClient(_ context.Context, vaultURL string) (AzureKeyVaultClientAPI, error) {
	cred, err := e.credential()
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return client, nil
}

// Identifier returns the engine id
func (e *AzureKeyVaultEngine) Identifier() string {
	return e.id
}

// Validate checks the reference parameters
func (e *AzureKeyVaultEngine) Validate(params secrets.Params) error {
	if err := params.Require(e.id, "s"); err != nil {
		return err
	}
	if err := params.AtMostOnce(e.id, "v", "ver", "k"); err != nil {
		return err
	}
	if _, hasVault := params.Get("v"); !hasVault && e.config.VaultURL == "" {
		return secrets.Invalidf("Secret engine %s requires parameter v or a configured vault_url", e.id)
	}
	return nil
}

// vaultURL returns the vault a reference points at
func (e *AzureKeyVaultEngine) vaultURL(params secrets.Params) string {
	name, ok := params.Get("v")
	if !ok {
		return e.config.VaultURL
	}
	if strings.Contains(name, ".") {
		return "https://" + strings.TrimSuffix(name, "/") + "/"
	}
	return fmt.Sprintf("https://%s.vault.azure.net/", name)
}

// Decrypt retrieves the secret and optionally extracts a key from it
func (e *AzureKeyVaultEngine) Decrypt(ctx context.Context, params secrets.Params) (string, error) {
	name, _ := params.Get("s")
	version, _ := params.Get("ver")
	key, hasKey := params.Get("k")

	client, err := e.clients.get(ctx, e.vaultURL(params))
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeAzureKeyVault, "create client", err)
	}

	e.logger.Debug("Fetching Key Vault secret for engine %s", e.id)
	resp, err := client.GetSecret(ctx, name, version, nil)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeAzureKeyVault, "fetch", describeAzureError(err))
	}
	if resp.Value == nil {
		return "", dserrors.EngineError(e.id, TypeAzureKeyVault, "fetch", fmt.Errorf("secret has no value"))
	}

	value, err := selectKey([]byte(*resp.Value), key, hasKey)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeAzureKeyVault, "extract key", err)
	}
	return value, nil
}

// describeAzureError tags HTTP failures with a stable marker so suggestions
// can be picked without depending on SDK message formats.
func describeAzureError(err error) error {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}
	switch respErr.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("SecretNotFound (404): %w", err)
	case http.StatusForbidden, http.StatusUnauthorized:
		return fmt.Errorf("Forbidden (%d): %w", respErr.StatusCode, err)
	}
	return err
}
