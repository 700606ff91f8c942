package engines

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/pkg/secrets"
)

// SecretsManagerClientAPI defines the interface for AWS Secrets Manager operations
// This allows for mocking in tests
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerEngine reads secrets from AWS Secrets Manager.
//
// Parameters: r region and s secret id are required; k selects a key from a
// JSON secret and v pins a version id or stage.
type SecretsManagerEngine struct {
	id       string
	settings awsSettings
	clients  *clientCache[SecretsManagerClientAPI]
	logger   *logging.Logger
}

// SecretsManagerEngineOption is a functional option for configuring SecretsManagerEngine
type SecretsManagerEngineOption func(*SecretsManagerEngine)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) SecretsManagerEngineOption {
	return func(e *SecretsManagerEngine) {
		e.clients = newClientCache(func(context.Context, string) (SecretsManagerClientAPI, error) {
			return client, nil
		})
	}
}

// NewSecretsManagerEngine creates a new AWS Secrets Manager engine
func NewSecretsManagerEngine(id string, cfg map[string]interface{}, logger *logging.Logger, opts ...SecretsManagerEngineOption) *SecretsManagerEngine {
	if logger == nil {
		logger = logging.Discard()
	}
	e := &SecretsManagerEngine{
		id:       id,
		settings: parseAWSSettings(cfg),
		logger:   logger,
	}
	e.clients = newClientCache(e.newClient)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewSecretsManagerEngineFactory creates a Secrets Manager engine factory
func NewSecretsManagerEngineFactory(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error) {
	return NewSecretsManagerEngine(id, cfg, logger), nil
}

func (e *SecretsManagerEngine) newClient(ctx context.Context, region string) (SecretsManagerClientAPI, error) {
	awsCfg, err := e.settings.loadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		o.BaseEndpoint = e.settings.baseEndpoint()
	}), nil
}

// Identifier returns the engine id
func (e *SecretsManagerEngine) Identifier() string {
	return e.id
}

// Validate checks the reference parameters
func (e *SecretsManagerEngine) Validate(params secrets.Params) error {
	if err := params.Require(e.id, "r", "s"); err != nil {
		return err
	}
	return params.AtMostOnce(e.id, "k", "v")
}

// Decrypt retrieves the secret and optionally extracts a key from it
func (e *SecretsManagerEngine) Decrypt(ctx context.Context, params secrets.Params) (string, error) {
	region, _ := params.Get("r")
	secretID, _ := params.Get("s")
	key, hasKey := params.Get("k")

	client, err := e.clients.get(ctx, region)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeSecretsManager, "create client", err)
	}

	input := &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	}
	if version, ok := params.Get("v"); ok && version != "latest" {
		if isVersionID(version) {
			input.VersionId = aws.String(version)
		} else {
			input.VersionStage = aws.String(version)
		}
	}

	e.logger.Debug("Fetching secret for engine %s in %s", e.id, region)
	result, err := client.GetSecretValue(ctx, input)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeSecretsManager, "fetch", err)
	}

	var payload []byte
	switch {
	case result.SecretString != nil:
		payload = []byte(*result.SecretString)
	case result.SecretBinary != nil:
		payload = result.SecretBinary
	default:
		return "", dserrors.EngineError(e.id, TypeSecretsManager, "fetch", fmt.Errorf("secret has no value"))
	}

	value, err := selectKey(payload, key, hasKey)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeSecretsManager, "extract key", err)
	}
	return value, nil
}

func isVersionID(version string) bool {
	// AWS version IDs are UUIDs
	return len(version) == 36 && strings.Count(version, "-") == 4
}
