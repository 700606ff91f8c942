package secrets_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/secretref/pkg/secrets"
)

func TestParseValidReferences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		raw        string
		wantEngine string
		wantParams secrets.Params
		wantFile   bool
	}{
		{
			name:       "single parameter",
			raw:        "encrypted:s3!paramName:paramValue",
			wantEngine: "s3",
			wantParams: secrets.Params{{Key: "paramName", Value: "paramValue"}},
		},
		{
			name:       "multiple parameters keep order",
			raw:        "encrypted:s3!r:us-west-2,b:my-bucket,f:prod/app.yml,k:db.password",
			wantEngine: "s3",
			wantParams: secrets.Params{
				{Key: "r", Value: "us-west-2"},
				{Key: "b", Value: "my-bucket"},
				{Key: "f", Value: "prod/app.yml"},
				{Key: "k", Value: "db.password"},
			},
		},
		{
			name:       "repeated keys are preserved",
			raw:        "encrypted:custom!k:one,k:two",
			wantEngine: "custom",
			wantParams: secrets.Params{{Key: "k", Value: "one"}, {Key: "k", Value: "two"}},
		},
		{
			name:       "file prefix",
			raw:        "encryptedFile:secrets-manager!r:eu-west-1,s:tls/key",
			wantEngine: "secrets-manager",
			wantParams: secrets.Params{{Key: "r", Value: "eu-west-1"}, {Key: "s", Value: "tls/key"}},
			wantFile:   true,
		},
		{
			name:       "values may contain spaces and slashes",
			raw:        "encrypted:file!f:/etc/my secrets/app.yml",
			wantEngine: "file",
			wantParams: secrets.Params{{Key: "f", Value: "/etc/my secrets/app.yml"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ref, err := secrets.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantEngine, ref.EngineID)
			assert.Equal(t, tt.wantParams, ref.Params)
			assert.Equal(t, tt.wantFile, ref.AsFile)
			assert.Equal(t, tt.raw, ref.Encode(), "encoding must round-trip")
		})
	}
}

func TestParseInvalidReferences(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty string", ""},
		{"plain value", "not-a-secret"},
		{"prefix only", "encrypted:"},
		{"missing engine separator", "encrypted:s3"},
		{"empty engine", "encrypted:!k:v"},
		{"no parameters", "encrypted:s3!"},
		{"parameter without colon", "encrypted:s3!paramName"},
		{"empty key", "encrypted:s3!:value"},
		{"empty value", "encrypted:s3!key:"},
		{"value with colon", "encrypted:s3!key:a:b"},
		{"trailing comma", "encrypted:s3!k:v,"},
		{"empty middle parameter", "encrypted:s3!k:v,,x:y"},
		{"second engine separator", "encrypted:s3!k:v!x:y"},
		{"wrong prefix case", "Encrypted:s3!k:v"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := secrets.Parse(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, secrets.ErrInvalidFormat), "got %T: %v", err, err)

			var invalid secrets.InvalidFormatError
			assert.True(t, errors.As(err, &invalid))
		})
	}
}

func TestParseErrorsDoNotEchoValues(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"encrypted:s3!hunter2-key:hunter2:value",
		"encrypted:s3!k:hunter2,,",
		"encrypted:s3!k:hunter2!x:y",
	}

	for _, raw := range inputs {
		_, err := secrets.Parse(raw)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "hunter2:value")
		assert.NotContains(t, err.Error(), ":hunter2")
	}
}

func TestParseRoundTripProperty(t *testing.T) {
	t.Parallel()

	engines := []string{"s3", "vault", "gcp-secrets-manager", "a.b_c-d"}
	keys := []string{"k", "region", "f", "KEY_1"}
	values := []string{"v", "us-east-1", "dir/file.yml", "with space", "x=y"}

	for _, id := range engines {
		for _, k := range keys {
			for _, v := range values {
				raw := fmt.Sprintf("encrypted:%s!%s:%s", id, k, v)
				ref, err := secrets.Parse(raw)
				require.NoError(t, err, raw)
				assert.Equal(t, id, ref.EngineID)
				assert.Equal(t, secrets.Params{{Key: k, Value: v}}, ref.Params)
				assert.Equal(t, raw, ref.Encode())
			}
		}
	}
}

func TestReferenceStringRedactsValues(t *testing.T) {
	t.Parallel()

	ref, err := secrets.Parse("encrypted:vault!p:secret/app,k:password")
	require.NoError(t, err)

	assert.Equal(t, "encrypted:vault!p:[REDACTED],k:[REDACTED]", ref.String())
	assert.Equal(t, ref.String(), fmt.Sprintf("%v", ref))
	assert.Equal(t, ref.String(), fmt.Sprintf("%#v", ref))
	assert.NotContains(t, fmt.Sprintf("%s", ref), "secret/app")
}

func TestPrefixHelpers(t *testing.T) {
	t.Parallel()

	assert.True(t, secrets.IsEncryptedSecret("encrypted:s3!k:v"))
	assert.False(t, secrets.IsEncryptedSecret("encryptedFile:s3!k:v"))
	assert.True(t, secrets.IsEncryptedFile("encryptedFile:s3!k:v"))
	assert.False(t, secrets.IsEncryptedFile("encrypted:s3!k:v"))
	assert.True(t, secrets.IsReference("encryptedFile:s3!k:v"))
	assert.False(t, secrets.IsReference("plain"))
}

func TestParamsHelpers(t *testing.T) {
	t.Parallel()

	params := secrets.Params{
		{Key: "r", Value: "us-west-2"},
		{Key: "k", Value: "first"},
		{Key: "k", Value: "second"},
	}

	v, ok := params.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "first", v)

	_, ok = params.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, 2, params.Count("k"))
	assert.Equal(t, []string{"r", "k", "k"}, params.Keys())

	assert.NoError(t, params.Require("s3", "r"))

	err := params.Require("s3", "r", "b", "f")
	require.Error(t, err)
	assert.Equal(t, "Secret engine s3 is missing required parameters: b, f", err.Error())
	assert.NotContains(t, err.Error(), "us-west-2")

	err = params.Require("s3", "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repeated parameters: k")
	assert.NotContains(t, err.Error(), "first")

	assert.Error(t, params.AtMostOnce("s3", "k", "r"))
	assert.NoError(t, params.AtMostOnce("s3", "r", "v"))
}
