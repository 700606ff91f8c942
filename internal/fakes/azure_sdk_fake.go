package fakes

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient serves Key Vault secrets from memory. Versioned
// secrets are keyed by "name/version".
type FakeAzureKeyVaultClient struct {
	mu      sync.Mutex
	Secrets map[string]string
	Errors  map[string]error
}

// NewFakeAzureKeyVaultClient creates a new mock Azure Key Vault client
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// AddSecret stores the current version of a secret
func (f *FakeAzureKeyVaultClient) AddSecret(name, value string) *FakeAzureKeyVaultClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = value
	return f
}

// AddSecretVersion stores a specific version of a secret
func (f *FakeAzureKeyVaultClient) AddSecretVersion(name, version, value string) *FakeAzureKeyVaultClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name+"/"+version] = value
	return f
}

// AddError configures the mock to return an error for a specific secret
func (f *FakeAzureKeyVaultClient) AddError(name string, err error) *FakeAzureKeyVaultClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
	return f
}

// GetSecret mocks the GetSecret operation
func (f *FakeAzureKeyVaultClient) GetSecret(_ context.Context, name string, version string, _ *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err, ok := f.Errors[name]; ok {
		return azsecrets.GetSecretResponse{}, err
	}
	key := name
	if version != "" {
		key = name + "/" + version
	}
	value, ok := f.Secrets[key]
	if !ok {
		return azsecrets.GetSecretResponse{}, AzureNotFoundError()
	}
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			Value: to.Ptr(value),
		},
	}, nil
}

// AzureNotFoundError creates a mock Azure not found error
func AzureNotFoundError() error {
	return azureResponseError(http.StatusNotFound, "SecretNotFound")
}

// AzureForbiddenError creates a mock Azure forbidden error
func AzureForbiddenError() error {
	return azureResponseError(http.StatusForbidden, "Forbidden")
}

func azureResponseError(statusCode int, code string) error {
	req := &http.Request{
		Method: http.MethodGet,
		URL:    &url.URL{Scheme: "https", Host: "test-vault.vault.azure.net", Path: "/secrets/x"},
	}
	return &azcore.ResponseError{
		StatusCode: statusCode,
		ErrorCode:  code,
		RawResponse: &http.Response{
			StatusCode: statusCode,
			Status:     http.StatusText(statusCode),
			Request:    req,
			Body:       http.NoBody,
		},
	}
}
