package fakes

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeS3Client serves objects from memory, keyed by "bucket/key".
type FakeS3Client struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Errors  map[string]error
	// Calls records the requested "bucket/key" of every GetObject call
	Calls []string
}

// NewFakeS3Client creates an empty fake S3 client
func NewFakeS3Client() *FakeS3Client {
	return &FakeS3Client{
		Objects: make(map[string][]byte),
		Errors:  make(map[string]error),
	}
}

// AddObject stores an object
func (f *FakeS3Client) AddObject(bucket, key, content string) *FakeS3Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[bucket+"/"+key] = []byte(content)
	return f
}

// AddError makes GetObject fail for an object
func (f *FakeS3Client) AddError(bucket, key string, err error) *FakeS3Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[bucket+"/"+key] = err
	return f
}

// GetObject mocks the GetObject operation
func (f *FakeS3Client) GetObject(_ context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := aws.ToString(params.Bucket) + "/" + aws.ToString(params.Key)
	f.Calls = append(f.Calls, name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	content, ok := f.Objects[name]
	if !ok {
		return nil, &s3types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(content)),
		ContentLength: aws.Int64(int64(len(content))),
	}, nil
}

// FakeSecretsManagerClient is a mock implementation of the Secrets Manager
// client. Secrets are keyed by secret id; versioned values by "id@version".
type FakeSecretsManagerClient struct {
	mu      sync.Mutex
	Secrets map[string]*secretsmanager.GetSecretValueOutput
	Errors  map[string]error
	// Inputs records every request
	Inputs []*secretsmanager.GetSecretValueInput
}

// NewFakeSecretsManagerClient creates a new mock Secrets Manager client
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]*secretsmanager.GetSecretValueOutput),
		Errors:  make(map[string]error),
	}
}

// AddSecretString adds a string secret to the mock client
func (f *FakeSecretsManagerClient) AddSecretString(name, value string) *FakeSecretsManagerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = &secretsmanager.GetSecretValueOutput{
		Name:          aws.String(name),
		SecretString:  aws.String(value),
		VersionId:     aws.String("v1-abc123"),
		VersionStages: []string{"AWSCURRENT"},
	}
	return f
}

// AddSecretVersion adds a string secret reachable by version id or stage
func (f *FakeSecretsManagerClient) AddSecretVersion(name, version, value string) *FakeSecretsManagerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name+"@"+version] = &secretsmanager.GetSecretValueOutput{
		Name:         aws.String(name),
		SecretString: aws.String(value),
	}
	return f
}

// AddSecretBinary adds a binary secret to the mock client
func (f *FakeSecretsManagerClient) AddSecretBinary(name string, value []byte) *FakeSecretsManagerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[name] = &secretsmanager.GetSecretValueOutput{
		Name:         aws.String(name),
		SecretBinary: value,
	}
	return f
}

// AddError configures the mock to return an error for a specific secret
func (f *FakeSecretsManagerClient) AddError(name string, err error) *FakeSecretsManagerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
	return f
}

// GetSecretValue mocks the GetSecretValue operation
func (f *FakeSecretsManagerClient) GetSecretValue(_ context.Context, params *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Inputs = append(f.Inputs, params)
	name := aws.ToString(params.SecretId)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}

	key := name
	if v := aws.ToString(params.VersionId); v != "" {
		key = name + "@" + v
	} else if v := aws.ToString(params.VersionStage); v != "" && v != "AWSCURRENT" {
		key = name + "@" + v
	}
	out, ok := f.Secrets[key]
	if !ok {
		return nil, &smtypes.ResourceNotFoundException{
			Message: aws.String(fmt.Sprintf("Secrets Manager can't find the specified secret: %s", name)),
		}
	}
	return out, nil
}

// FakeSSMClient is a mock implementation of the SSM client
type FakeSSMClient struct {
	mu         sync.Mutex
	Parameters map[string]string
	Errors     map[string]error
	// Decrypted records the WithDecryption flag of every request
	Decrypted []bool
}

// NewFakeSSMClient creates a new mock SSM client
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{
		Parameters: make(map[string]string),
		Errors:     make(map[string]error),
	}
}

// AddParameter stores a parameter
func (f *FakeSSMClient) AddParameter(name, value string) *FakeSSMClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Parameters[name] = value
	return f
}

// AddError configures the mock to return an error for a specific parameter
func (f *FakeSSMClient) AddError(name string, err error) *FakeSSMClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
	return f
}

// GetParameter mocks the GetParameter operation
func (f *FakeSSMClient) GetParameter(_ context.Context, params *ssm.GetParameterInput, _ ...func(*ssm.Options)) (*ssm.GetParameterOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Decrypted = append(f.Decrypted, aws.ToBool(params.WithDecryption))
	name := aws.ToString(params.Name)
	if err, ok := f.Errors[name]; ok {
		return nil, err
	}
	value, ok := f.Parameters[name]
	if !ok {
		return nil, &ssmtypes.ParameterNotFound{}
	}
	return &ssm.GetParameterOutput{
		Parameter: &ssmtypes.Parameter{
			Name:  aws.String(name),
			Type:  ssmtypes.ParameterTypeSecureString,
			Value: aws.String(value),
		},
	}, nil
}
