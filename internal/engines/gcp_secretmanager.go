package engines

import (
	"context"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/pkg/secrets"
)

// GCPSecretManagerClientAPI is the subset of the Secret Manager client used
// by GCPSecretManagerEngine.
type GCPSecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// gcpClient adapts *secretmanager.Client, whose methods take variadic gax
// call options, to GCPSecretManagerClientAPI.
type gcpClient struct {
	client *secretmanager.Client
}

func (c gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return c.client.AccessSecretVersion(ctx, req)
}

// GCPSecretManagerConfig holds GCP Secret Manager-specific configuration
type GCPSecretManagerConfig struct {
	ProjectID             string
	ServiceAccountKeyPath string
	ImpersonateAccount    string
	Endpoint              string
}

// GCPSecretManagerEngine reads secrets from Google Cloud Secret Manager.
//
// Parameters: s secret name (or full resource name) is required; p project
// overrides the configured project, v selects a version (default "latest")
// and k extracts a key.
type GCPSecretManagerEngine struct {
	id      string
	config  GCPSecretManagerConfig
	clients *clientCache[GCPSecretManagerClientAPI]
	logger  *logging.Logger
}

// GCPSecretManagerEngineOption is a functional option for configuring GCPSecretManagerEngine
type GCPSecretManagerEngineOption func(*GCPSecretManagerEngine)

// WithGCPSecretManagerClient sets a custom client (for testing)
func WithGCPSecretManagerClient(client GCPSecretManagerClientAPI) GCPSecretManagerEngineOption {
	return func(e *GCPSecretManagerEngine) {
		e.clients = newClientCache(func(context.Context, string) (GCPSecretManagerClientAPI, error) {
			return client, nil
		})
	}
}

// NewGCPSecretManagerEngine creates a new GCP Secret Manager engine
func NewGCPSecretManagerEngine(id string, cfg map[string]interface{}, logger *logging.Logger, opts ...GCPSecretManagerEngineOption) *GCPSecretManagerEngine {
	if logger == nil {
		logger = logging.Discard()
	}
	config := GCPSecretManagerConfig{
		ProjectID:             stringOption(cfg, "project_id"),
		ServiceAccountKeyPath: stringOption(cfg, "service_account_key_path"),
		ImpersonateAccount:    stringOption(cfg, "impersonate_service_account"),
		Endpoint:              stringOption(cfg, "endpoint"),
	}
	if config.ProjectID == "" {
		config.ProjectID = getGCPProjectID()
	}

	e := &GCPSecretManagerEngine{
		id:     id,
		config: config,
		logger: logger,
	}
	e.clients = newClientCache(e.newClient)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewGCPSecretManagerEngineFactory creates a GCP Secret Manager engine factory
func NewGCPSecretManagerEngineFactory(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error) {
	return NewGCPSecretManagerEngine(id, cfg, logger), nil
}

// getGCPProjectID attempts to get the GCP project ID from the environment
func getGCPProjectID() string {
	for _, name := range []string{"GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"} {
		if projectID := os.Getenv(name); projectID != "" {
			return projectID
		}
	}
	return ""
}

func (e *GCPSecretManagerEngine) newClient(ctx context.Context, _ string) (GCPSecretManagerClientAPI, error) {
	var clientOptions []option.ClientOption

	if path := e.config.ServiceAccountKeyPath; path != "" {
		// Expand home directory if needed
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(path))
	}

	if e.config.ImpersonateAccount != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: e.config.ImpersonateAccount,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
		}
		clientOptions = append(clientOptions, option.WithTokenSource(ts))
	}

	if e.config.Endpoint != "" {
		clientOptions = append(clientOptions, option.WithEndpoint(e.config.Endpoint))
	}

	client, err := secretmanager.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}
	return gcpClient{client: client}, nil
}

// Identifier returns the engine id
func (e *GCPSecretManagerEngine) Identifier() string {
	return e.id
}

// Validate checks the reference parameters
func (e *GCPSecretManagerEngine) Validate(params secrets.Params) error {
	if err := params.Require(e.id, "s"); err != nil {
		return err
	}
	if err := params.AtMostOnce(e.id, "p", "v", "k"); err != nil {
		return err
	}
	secret, _ := params.Get("s")
	if _, hasProject := params.Get("p"); !hasProject && e.config.ProjectID == "" && !strings.HasPrefix(secret, "projects/") {
		return secrets.Invalidf("Secret engine %s requires parameter p or a configured project_id", e.id)
	}
	return nil
}

// versionName builds the full secret version resource name
func (e *GCPSecretManagerEngine) versionName(params secrets.Params) string {
	secret, _ := params.Get("s")
	version, ok := params.Get("v")
	if !ok || version == "" {
		version = "latest"
	}

	if strings.HasPrefix(secret, "projects/") {
		if strings.Contains(secret, "/versions/") {
			return secret
		}
		return fmt.Sprintf("%s/versions/%s", secret, version)
	}

	project, ok := params.Get("p")
	if !ok {
		project = e.config.ProjectID
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, secret, version)
}

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// Decrypt accesses the secret version and optionally extracts a key from it
func (e *GCPSecretManagerEngine) Decrypt(ctx context.Context, params secrets.Params) (string, error) {
	key, hasKey := params.Get("k")

	client, err := e.clients.get(ctx, "")
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeGCPSecretManager, "create client", err)
	}

	e.logger.Debug("Accessing secret version for engine %s", e.id)
	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: e.versionName(params),
	})
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeGCPSecretManager, "fetch", withStatusCode(err))
	}

	payload := resp.GetPayload()
	if payload == nil {
		return "", dserrors.EngineError(e.id, TypeGCPSecretManager, "fetch", fmt.Errorf("secret version has no payload"))
	}
	data := payload.GetData()
	if payload.DataCrc32C != nil && int64(crc32.Checksum(data, crc32c)) != payload.GetDataCrc32C() {
		return "", dserrors.EngineError(e.id, TypeGCPSecretManager, "verify checksum", fmt.Errorf("payload checksum mismatch"))
	}

	value, err := selectKey(data, key, hasKey)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeGCPSecretManager, "extract key", err)
	}
	return value, nil
}

// withStatusCode prefixes err with its gRPC code name so suggestions can be
// matched on "NotFound" or "PermissionDenied".
func withStatusCode(err error) error {
	code := status.Code(err)
	if code == codes.Unknown {
		return err
	}
	return fmt.Errorf("%s: %w", code, err)
}
