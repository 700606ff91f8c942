package engines

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/systmms/secretref/internal/secure"
)

// Built-in engine types, as used in the "type" field of the configuration.
const (
	TypeS3               = "aws.s3"
	TypeSecretsManager   = "aws.secretsmanager"
	TypeSSM              = "aws.ssm"
	TypeGCPSecretManager = "gcp.secretmanager"
	TypeAzureKeyVault    = "azure.keyvault"
	TypeVault            = "vault"
	TypeFile             = "file"
	TypeKeychain         = "keychain"
)

// maxSecretBytes caps how much of a backend payload is read.
const maxSecretBytes = 4 << 20

var errSecretTooLarge = fmt.Errorf("secret payload exceeds %d bytes", maxSecretBytes)

func stringOption(cfg map[string]interface{}, key string) string {
	if v, ok := cfg[key].(string); ok {
		return v
	}
	return ""
}

func boolOption(cfg map[string]interface{}, key string, def bool) bool {
	if v, ok := cfg[key].(bool); ok {
		return v
	}
	return def
}

func intOption(cfg map[string]interface{}, key string, def int) int {
	switch v := cfg[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// clientCache lazily creates one SDK client per key (region, vault URL).
// Engines share it across goroutines.
type clientCache[T any] struct {
	mu      sync.Mutex
	clients map[string]T
	create  func(ctx context.Context, key string) (T, error)
}

func newClientCache[T any](create func(ctx context.Context, key string) (T, error)) *clientCache[T] {
	return &clientCache[T]{
		clients: make(map[string]T),
		create:  create,
	}
}

func (c *clientCache[T]) get(ctx context.Context, key string) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[key]; ok {
		return client, nil
	}
	client, err := c.create(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	c.clients[key] = client
	return client, nil
}

// readSecret reads at most maxSecretBytes from r.
func readSecret(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxSecretBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxSecretBytes {
		secure.Wipe(data)
		return nil, errSecretTooLarge
	}
	return data, nil
}

// extractKey parses content as YAML (which covers JSON) and returns the
// scalar found at the dot-separated path key.
//
// Errors mention the path segment position, not the content.
func extractKey(content []byte, key string) (string, error) {
	var doc interface{}
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return "", errors.New("secret payload is not valid YAML or JSON")
	}

	current := doc
	segments := strings.Split(key, ".")
	for i, segment := range segments {
		m, ok := current.(map[string]interface{})
		if !ok {
			return "", fmt.Errorf("path segment %d does not resolve to a mapping", i+1)
		}
		next, ok := m[segment]
		if !ok {
			return "", fmt.Errorf("path segment %d not found", i+1)
		}
		current = next
	}

	switch v := current.(type) {
	case string:
		return v, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(v), nil
	case nil:
		return "", errors.New("key resolves to a null value")
	default:
		return "", errors.New("key does not resolve to a scalar value")
	}
}

// selectKey applies the optional "k" parameter to a payload.
func selectKey(payload []byte, key string, hasKey bool) (string, error) {
	if !hasKey {
		return string(payload), nil
	}
	return extractKey(payload, key)
}
