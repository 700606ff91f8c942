package fakes

import (
	"context"
	"hash/crc32"
	"strings"
	"sync"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
)

// FakeGCPSecretManagerClient serves secret versions from memory, keyed by
// full version resource name (projects/X/secrets/Y/versions/Z).
type FakeGCPSecretManagerClient struct {
	mu       sync.Mutex
	Versions map[string]*secretmanagerpb.SecretPayload
	Errors   map[string]error
	// Requests records the requested resource names
	Requests []string
}

// NewFakeGCPSecretManagerClient creates a new mock client
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Versions: make(map[string]*secretmanagerpb.SecretPayload),
		Errors:   make(map[string]error),
	}
}

// AddVersion stores a payload with a valid CRC32C checksum
func (f *FakeGCPSecretManagerClient) AddVersion(name string, data []byte) *FakeGCPSecretManagerClient {
	checksum := int64(crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli)))
	return f.AddPayload(name, &secretmanagerpb.SecretPayload{
		Data:       data,
		DataCrc32C: &checksum,
	})
}

// AddPayload stores a raw payload
func (f *FakeGCPSecretManagerClient) AddPayload(name string, payload *secretmanagerpb.SecretPayload) *FakeGCPSecretManagerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Versions[name] = payload
	return f
}

// AddError configures the mock to return an error for a resource name
func (f *FakeGCPSecretManagerClient) AddError(name string, err error) *FakeGCPSecretManagerClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors[name] = err
	return f
}

// AccessSecretVersion mocks the AccessSecretVersion operation
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req.GetName())
	if err, ok := f.Errors[req.GetName()]; ok {
		return nil, err
	}
	payload, ok := f.Versions[req.GetName()]
	if !ok {
		return nil, status.Errorf(codes.NotFound, "Secret version %s not found", lastSegment(req.GetName()))
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.GetName(),
		Payload: proto.Clone(payload).(*secretmanagerpb.SecretPayload),
	}, nil
}

// GCPPermissionDeniedError creates a mock permission error
func GCPPermissionDeniedError() error {
	return status.Error(codes.PermissionDenied, "Permission 'secretmanager.versions.access' denied")
}

func lastSegment(name string) string {
	return name[strings.LastIndex(name, "/")+1:]
}
