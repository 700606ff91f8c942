package engines

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
)

// awsSettings holds the engine-level AWS settings shared by the S3, Secrets
// Manager and SSM engines. The region always comes from the reference.
type awsSettings struct {
	Profile         string
	Endpoint        string // Optional custom endpoint for LocalStack or testing
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

func parseAWSSettings(cfg map[string]interface{}) awsSettings {
	return awsSettings{
		Profile:         stringOption(cfg, "profile"),
		Endpoint:        stringOption(cfg, "endpoint"),
		AccessKeyID:     stringOption(cfg, "access_key_id"),
		SecretAccessKey: stringOption(cfg, "secret_access_key"),
		SessionToken:    stringOption(cfg, "session_token"),
	}
}

// loadAWSConfig builds an SDK config for region.
func (s awsSettings) loadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if s.Profile != "" {
		configOpts = append(configOpts, awsconfig.WithSharedConfigProfile(s.Profile))
	}

	// Use static credentials if provided (for LocalStack/testing)
	if s.AccessKeyID != "" && s.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, s.SessionToken),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

func (s awsSettings) baseEndpoint() *string {
	if s.Endpoint == "" {
		return nil
	}
	return aws.String(s.Endpoint)
}
