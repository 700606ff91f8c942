package engines

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/pkg/secrets"
)

// SSMClientAPI is the subset of the SSM client used by SSMEngine.
type SSMClientAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// SSMEngine reads SecureString (or plain) parameters from AWS Systems
// Manager Parameter Store. Parameters: r region and p parameter name.
type SSMEngine struct {
	id       string
	settings awsSettings
	clients  *clientCache[SSMClientAPI]
	logger   *logging.Logger
}

// SSMEngineOption is a functional option for configuring SSMEngine
type SSMEngineOption func(*SSMEngine)

// WithSSMClient sets a custom SSM client (for testing)
func WithSSMClient(client SSMClientAPI) SSMEngineOption {
	return func(e *SSMEngine) {
		e.clients = newClientCache(func(context.Context, string) (SSMClientAPI, error) {
			return client, nil
		})
	}
}

// NewSSMEngine creates a new SSM engine
func NewSSMEngine(id string, cfg map[string]interface{}, logger *logging.Logger, opts ...SSMEngineOption) *SSMEngine {
	if logger == nil {
		logger = logging.Discard()
	}
	e := &SSMEngine{
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

// NewSSMEngineFactory creates an SSM engine factory
func NewSSMEngineFactory(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error) {
	return NewSSMEngine(id, cfg, logger), nil
}

func (e *SSMEngine) newClient(ctx context.Context, region string) (SSMClientAPI, error) {
	awsCfg, err := e.settings.loadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return ssm.NewFromConfig(awsCfg, func(o *ssm.Options) {
		o.BaseEndpoint = e.settings.baseEndpoint()
	}), nil
}

// Identifier returns the engine id
func (e *SSMEngine) Identifier() string {
	return e.id
}

// Validate checks the reference parameters
func (e *SSMEngine) Validate(params secrets.Params) error {
	return params.Require(e.id, "r", "p")
}

// Decrypt retrieves the parameter with decryption enabled
func (e *SSMEngine) Decrypt(ctx context.Context, params secrets.Params) (string, error) {
	region, _ := params.Get("r")
	name, _ := params.Get("p")

	client, err := e.clients.get(ctx, region)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeSSM, "create client", err)
	}

	e.logger.Debug("Fetching parameter for engine %s in %s", e.id, region)
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeSSM, "fetch", err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", dserrors.EngineError(e.id, TypeSSM, "fetch", fmt.Errorf("parameter has no value"))
	}
	return *result.Parameter.Value, nil
}
