package resolve

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/secretref/internal/engines"
	"github.com/systmms/secretref/internal/fakes"
	"github.com/systmms/secretref/pkg/secrets"
)

func TestMetricsRecordOutcomes(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	good := fakes.NewFakeEngine("s3").WithValue("test")
	bad := fakes.NewFakeEngine("vault").WithDecryptError(errors.New("sealed"))
	registry, err := engines.NewRegistry(good, bad)
	require.NoError(t, err)
	r := New(registry, WithMetrics(metrics), WithSecretFS(memfs.New(), "/secrets"))
	ctx := context.Background()

	_, _ = r.Decrypt(ctx, "encrypted:s3!k:v")
	_, _ = r.Decrypt(ctx, "encrypted:s3!k:v")
	_, _ = r.Decrypt(ctx, "encrypted:vault!p:x")
	_, _ = r.Decrypt(ctx, "encrypted:random-id-1!k:v")
	_, _ = r.Decrypt(ctx, "encrypted:random-id-2!k:v")
	_, _ = r.DecryptToFile(ctx, "encrypted:s3!k:v")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.decryptTotal.WithLabelValues("s3", OperationDecrypt, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.decryptTotal.WithLabelValues("vault", OperationDecrypt, OutcomeDecryptionFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.decryptTotal.WithLabelValues(UnregisteredEngine, OperationDecrypt, OutcomeInvalidFormat)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.decryptTotal.WithLabelValues("s3", OperationDecryptToFile, OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.secretFiles.WithLabelValues("s3")))

	// Unregistered ids never become label values.
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.decryptTotal))
	assert.Equal(t, 4, testutil.CollectAndCount(metrics.decryptDuration))
}

func TestMetricsExposition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	metrics.secretFileWritten("file")

	expected := `
# HELP secretref_secret_files_total Total number of secret files written
# TYPE secretref_secret_files_total counter
secretref_secret_files_total{engine="file"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "secretref_secret_files_total"))
}

func TestNilMetrics(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.observe("s3", OperationDecrypt, nil, time.Now())
		m.secretFileWritten("s3")
	})
}

func TestOutcome(t *testing.T) {
	t.Parallel()

	assert.Equal(t, OutcomeSuccess, outcome(nil))
	assert.Equal(t, OutcomeInvalidFormat, outcome(secrets.EngineNotFoundError("x")))
	assert.Equal(t, OutcomeDecryptionFailed, outcome(secrets.DecryptionError{Engine: "x"}))
	assert.Equal(t, OutcomeCanceled, outcome(secrets.DecryptionError{Err: context.Canceled}))
	assert.Equal(t, OutcomeError, outcome(errors.New("other")))
}
