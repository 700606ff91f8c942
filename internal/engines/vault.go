package engines

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/internal/secure"
	"github.com/systmms/secretref/pkg/secrets"
)

// DefaultVaultTimeout bounds a single HTTP call when the caller's context
// has no deadline.
const DefaultVaultTimeout = 30 * time.Second

// VaultConfig holds Vault-specific configuration
type VaultConfig struct {
	Address    string
	Token      string
	Namespace  string
	KVVersion  int
	AuthMethod string // token or kubernetes
	K8SRole    string
	K8SMount   string
	TLSSkip    bool
	CACert     string
}

// VaultEngine reads fields from the HashiCorp Vault KV secrets engine over
// the HTTP API.
//
// Parameters: p path including the mount ("secret/app/db") is required; k
// selects a field. Without k the whole data object is returned as JSON.
type VaultEngine struct {
	id     string
	config VaultConfig
	client *http.Client
	logger *logging.Logger

	mu    sync.Mutex
	token string
}

// VaultEngineOption is a functional option for configuring VaultEngine
type VaultEngineOption func(*VaultEngine)

// WithVaultHTTPClient sets the HTTP client (for testing)
func WithVaultHTTPClient(client *http.Client) VaultEngineOption {
	return func(e *VaultEngine) {
		e.client = client
	}
}

// NewVaultEngine creates a new Vault engine
func NewVaultEngine(id string, cfg map[string]interface{}, logger *logging.Logger, opts ...VaultEngineOption) (*VaultEngine, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	config := VaultConfig{
		Address:    stringOption(cfg, "address"),
		Token:      stringOption(cfg, "token"),
		Namespace:  stringOption(cfg, "namespace"),
		KVVersion:  intOption(cfg, "kv_version", 2),
		AuthMethod: stringOption(cfg, "auth_method"),
		K8SRole:    stringOption(cfg, "kubernetes_role"),
		K8SMount:   stringOption(cfg, "kubernetes_mount"),
		TLSSkip:    boolOption(cfg, "tls_skip_verify", false),
		CACert:     stringOption(cfg, "ca_cert"),
	}
	if config.Address == "" {
		config.Address = os.Getenv("VAULT_ADDR")
	}
	if config.Address == "" {
		config.Address = "http://127.0.0.1:8200"
	}
	if config.Namespace == "" {
		config.Namespace = os.Getenv("VAULT_NAMESPACE")
	}
	if config.AuthMethod == "" {
		config.AuthMethod = "token"
	}
	if config.K8SMount == "" {
		config.K8SMount = "kubernetes"
	}

	if config.KVVersion != 1 && config.KVVersion != 2 {
		return nil, dserrors.ConfigError{
			Field:      fmt.Sprintf("engines.%s.kv_version", id),
			Value:      config.KVVersion,
			Message:    "kv_version must be 1 or 2",
			Suggestion: "Use 2 for the default KV secrets engine",
		}
	}
	if config.AuthMethod != "token" && config.AuthMethod != "kubernetes" {
		return nil, dserrors.ConfigError{
			Field:      fmt.Sprintf("engines.%s.auth_method", id),
			Value:      config.AuthMethod,
			Message:    "unsupported auth method",
			Suggestion: "Supported methods: token, kubernetes",
		}
	}
	if config.AuthMethod == "kubernetes" && config.K8SRole == "" {
		return nil, dserrors.ConfigError{
			Field:      fmt.Sprintf("engines.%s.kubernetes_role", id),
			Message:    "kubernetes auth requires a role",
			Suggestion: "Set kubernetes_role to the Vault role bound to the service account",
		}
	}

	e := &VaultEngine{
		id:     id,
		config: config,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		client, err := newVaultHTTPClient(config)
		if err != nil {
			return nil, err
		}
		e.client = client
	}
	return e, nil
}

// NewVaultEngineFactory creates a Vault engine factory
func NewVaultEngineFactory(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error) {
	return NewVaultEngine(id, cfg, logger)
}

// newVaultHTTPClient creates an HTTP client with appropriate TLS settings
func newVaultHTTPClient(config VaultConfig) (*http.Client, error) {
	client := &http.Client{Timeout: DefaultVaultTimeout}
	if !config.TLSSkip && config.CACert == "" {
		return client, nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: config.TLSSkip,
	}
	if config.CACert != "" {
		pem, err := os.ReadFile(config.CACert)
		if err != nil {
			return nil, fmt.Errorf("failed to read vault CA certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", config.CACert)
		}
		tlsConfig.RootCAs = pool
	}
	client.Transport = &http.Transport{TLSClientConfig: tlsConfig}
	return client, nil
}

// Identifier returns the engine id
func (e *VaultEngine) Identifier() string {
	return e.id
}

// Validate checks the reference parameters
func (e *VaultEngine) Validate(params secrets.Params) error {
	if err := params.Require(e.id, "p"); err != nil {
		return err
	}
	if err := params.AtMostOnce(e.id, "k"); err != nil {
		return err
	}
	path, _ := params.Get("p")
	if mount, rest, ok := strings.Cut(strings.Trim(path, "/"), "/"); !ok || mount == "" || rest == "" {
		return secrets.Invalidf("Secret engine %s expects p as <mount>/<path>", e.id)
	}
	return nil
}

// apiPath maps a logical KV path to the HTTP API path
func (e *VaultEngine) apiPath(path string) string {
	path = strings.Trim(path, "/")
	if e.config.KVVersion == 1 {
		return path
	}
	mount, rest, _ := strings.Cut(path, "/")
	return mount + "/data/" + rest
}

// Decrypt reads the secret and returns the requested field
func (e *VaultEngine) Decrypt(ctx context.Context, params secrets.Params) (string, error) {
	path, _ := params.Get("p")
	field, hasField := params.Get("k")

	token, err := e.authenticate(ctx)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeVault, "authenticate", err)
	}

	e.logger.Debug("Reading Vault secret for engine %s", e.id)
	data, err := e.read(ctx, token, e.apiPath(path))
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeVault, "fetch", err)
	}

	if !hasField {
		encoded, err := json.Marshal(data)
		if err != nil {
			return "", dserrors.EngineError(e.id, TypeVault, "encode", err)
		}
		defer secure.Wipe(encoded)
		return string(encoded), nil
	}

	value, ok := data[field]
	if !ok {
		return "", dserrors.EngineError(e.id, TypeVault, "extract key", fmt.Errorf("field not found"))
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", dserrors.EngineError(e.id, TypeVault, "extract key", fmt.Errorf("field is not a scalar value"))
	}
}

// read fetches the data object at apiPath
func (e *VaultEngine) read(ctx context.Context, token, apiPath string) (map[string]interface{}, error) {
	req, err := e.newRequest(ctx, http.MethodGet, apiPath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", token)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("vault returned status 404: secret not found")
	case http.StatusForbidden:
		return nil, fmt.Errorf("vault returned status 403: permission denied")
	default:
		// Bodies of error responses are drained, not echoed.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSecretBytes))
		return nil, fmt.Errorf("vault returned status %d", resp.StatusCode)
	}

	var response struct {
		Data map[string]interface{} `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSecretBytes)).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response")
	}
	if response.Data == nil {
		return nil, fmt.Errorf("response has no data")
	}

	if e.config.KVVersion == 2 {
		inner, ok := response.Data["data"].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("secret version has no data, it may be deleted")
		}
		return inner, nil
	}
	return response.Data, nil
}

func (e *VaultEngine) newRequest(ctx context.Context, method, apiPath string, body io.Reader) (*http.Request, error) {
	url := strings.TrimSuffix(e.config.Address, "/") + "/v1/" + strings.TrimPrefix(apiPath, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if e.config.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", e.config.Namespace)
	}
	return req, nil
}

// authenticate returns a client token, logging in once for kubernetes auth
func (e *VaultEngine) authenticate(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.token != "" {
		return e.token, nil
	}

	switch e.config.AuthMethod {
	case "kubernetes":
		token, err := e.loginKubernetes(ctx)
		if err != nil {
			return "", err
		}
		e.token = token
	default:
		e.token = e.config.Token
		if e.token == "" {
			e.token = os.Getenv("VAULT_TOKEN")
		}
		if e.token == "" {
			return "", fmt.Errorf("no vault token found in config or VAULT_TOKEN environment variable")
		}
	}
	return e.token, nil
}

// loginKubernetes exchanges the service account token for a Vault token
func (e *VaultEngine) loginKubernetes(ctx context.Context) (string, error) {
	tokenPath := "/var/run/secrets/kubernetes.io/serviceaccount/token"
	if customPath := os.Getenv("VAULT_K8S_TOKEN_PATH"); customPath != "" {
		tokenPath = customPath
	}
	jwt, err := os.ReadFile(tokenPath)
	if err != nil {
		return "", fmt.Errorf("failed to read kubernetes token: %w", err)
	}
	defer secure.Wipe(jwt)

	body, err := json.Marshal(map[string]string{
		"role": e.config.K8SRole,
		"jwt":  strings.TrimSpace(string(jwt)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal auth data: %w", err)
	}
	defer secure.Wipe(body)

	req, err := e.newRequest(ctx, http.MethodPost, "auth/"+e.config.K8SMount+"/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make auth request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("authentication failed with status %d", resp.StatusCode)
	}

	var authResp struct {
		Auth struct {
			ClientToken string `json:"client_token"`
		} `json:"auth"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", fmt.Errorf("failed to decode auth response: %w", err)
	}
	if authResp.Auth.ClientToken == "" {
		return "", fmt.Errorf("no token received from vault")
	}
	return authResp.Auth.ClientToken, nil
}
