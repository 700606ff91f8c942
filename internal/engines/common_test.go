package engines

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractKey(t *testing.T) {
	t.Parallel()

	content := []byte(`
database:
  username: app
  password: s3cr3t
  port: 5432
  tls: true
  replicas: [a, b]
  empty: null
`)

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr string
	}{
		{name: "nested string", key: "database.password", want: "s3cr3t"},
		{name: "integer", key: "database.port", want: "5432"},
		{name: "boolean", key: "database.tls", want: "true"},
		{name: "missing", key: "database.host", wantErr: "path segment 2 not found"},
		{name: "through scalar", key: "database.password.x", wantErr: "path segment 3 does not resolve to a mapping"},
		{name: "sequence", key: "database.replicas", wantErr: "not resolve to a scalar"},
		{name: "null", key: "database.empty", wantErr: "null"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := extractKey(content, tt.key)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.NotContains(t, err.Error(), "s3cr3t")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractKeyJSON(t *testing.T) {
	t.Parallel()

	got, err := extractKey([]byte(`{"api": {"token": "abc"}}`), "api.token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestExtractKeyInvalidDocument(t *testing.T) {
	t.Parallel()

	_, err := extractKey([]byte("key: [unterminated: s3cr3t"), "key")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "s3cr3t")
}

func TestSelectKey(t *testing.T) {
	t.Parallel()

	got, err := selectKey([]byte("raw value"), "", false)
	require.NoError(t, err)
	assert.Equal(t, "raw value", got)

	got, err = selectKey([]byte("a: b"), "a", true)
	require.NoError(t, err)
	assert.Equal(t, "b", got)
}

func TestReadSecret(t *testing.T) {
	t.Parallel()

	data, err := readSecret(strings.NewReader("value"))
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), data)

	_, err = readSecret(bytes.NewReader(make([]byte, maxSecretBytes+1)))
	assert.ErrorIs(t, err, errSecretTooLarge)
}

func TestOptions(t *testing.T) {
	t.Parallel()

	cfg := map[string]interface{}{
		"s":     "value",
		"b":     true,
		"i":     3,
		"f":     float64(4),
		"str":   "5",
		"wrong": []string{"x"},
	}
	assert.Equal(t, "value", stringOption(cfg, "s"))
	assert.Equal(t, "", stringOption(cfg, "b"))
	assert.True(t, boolOption(cfg, "b", false))
	assert.True(t, boolOption(cfg, "missing", true))
	assert.Equal(t, 3, intOption(cfg, "i", 0))
	assert.Equal(t, 4, intOption(cfg, "f", 0))
	assert.Equal(t, 5, intOption(cfg, "str", 0))
	assert.Equal(t, 7, intOption(cfg, "wrong", 7))
	assert.Equal(t, "", stringOption(nil, "s"))
}

func TestClientCache(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	created := map[string]int{}
	cache := newClientCache(func(_ context.Context, key string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		created[key]++
		if key == "bad" {
			return "", errors.New("boom")
		}
		return "client-" + key, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client, err := cache.get(context.Background(), "us-east-1")
			assert.NoError(t, err)
			assert.Equal(t, "client-us-east-1", client)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, created["us-east-1"])

	_, err := cache.get(context.Background(), "bad")
	require.Error(t, err)
	_, err = cache.get(context.Background(), "bad")
	require.Error(t, err)
	assert.Equal(t, 2, created["bad"], "failed clients are not cached")
}
