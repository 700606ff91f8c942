package engines

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	dserrors "github.com/systmms/secretref/internal/errors"
	"github.com/systmms/secretref/internal/logging"
	"github.com/systmms/secretref/internal/secure"
	"github.com/systmms/secretref/pkg/secrets"
)

// S3ClientAPI is the subset of the S3 client used by S3Engine.
type S3ClientAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Engine reads secrets from objects in S3.
//
// Parameters:
//
//	r  region (required)
//	b  bucket (required)
//	f  object key (required)
//	k  dot-separated key inside a YAML or JSON object (optional)
type S3Engine struct {
	id           string
	settings     awsSettings
	usePathStyle bool
	clients      *clientCache[S3ClientAPI]
	logger       *logging.Logger
}

// S3EngineOption is a functional option for configuring S3Engine
type S3EngineOption func(*S3Engine)

// WithS3Client makes the engine use client for every region (for testing)
func WithS3Client(client S3ClientAPI) S3EngineOption {
	return func(e *S3Engine) {
		e.clients = newClientCache(func(context.Context, string) (S3ClientAPI, error) {
			return client, nil
		})
	}
}

// NewS3Engine creates an S3 engine.
func NewS3Engine(id string, cfg map[string]interface{}, logger *logging.Logger, opts ...S3EngineOption) *S3Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	e := &S3Engine{
		id:           id,
		settings:     parseAWSSettings(cfg),
		usePathStyle: boolOption(cfg, "use_path_style", false),
		logger:       logger,
	}
	e.clients = newClientCache(e.newClient)

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewS3EngineFactory creates an S3 engine factory
func NewS3EngineFactory(id string, cfg map[string]interface{}, logger *logging.Logger) (secrets.Engine, error) {
	return NewS3Engine(id, cfg, logger), nil
}

func (e *S3Engine) newClient(ctx context.Context, region string) (S3ClientAPI, error) {
	awsCfg, err := e.settings.loadAWSConfig(ctx, region)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = e.settings.baseEndpoint()
		o.UsePathStyle = e.usePathStyle
	}), nil
}

// Identifier returns the engine id
func (e *S3Engine) Identifier() string {
	return e.id
}

// Validate checks the reference parameters
func (e *S3Engine) Validate(params secrets.Params) error {
	if err := params.Require(e.id, "r", "b", "f"); err != nil {
		return err
	}
	return params.AtMostOnce(e.id, "k")
}

// Decrypt downloads the object and optionally extracts a key from it
func (e *S3Engine) Decrypt(ctx context.Context, params secrets.Params) (string, error) {
	region, _ := params.Get("r")
	bucket, _ := params.Get("b")
	objectKey, _ := params.Get("f")
	key, hasKey := params.Get("k")

	client, err := e.clients.get(ctx, region)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeS3, "create client", err)
	}

	e.logger.Debug("Fetching S3 object for engine %s in %s", e.id, region)
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeS3, "fetch", err)
	}
	if out.Body == nil {
		return "", dserrors.EngineError(e.id, TypeS3, "fetch", fmt.Errorf("object has no body"))
	}
	defer out.Body.Close()

	payload, err := readSecret(out.Body)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeS3, "read object", err)
	}
	defer secure.Wipe(payload)

	value, err := selectKey(payload, key, hasKey)
	if err != nil {
		return "", dserrors.EngineError(e.id, TypeS3, "extract key", err)
	}
	return value, nil
}
