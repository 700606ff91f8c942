package resolve

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/systmms/secretref/pkg/secrets"
)

// UnregisteredEngine is the engine label used for references whose engine
// could not be determined or is not registered.
const UnregisteredEngine = "unregistered"

// Operation label values.
const (
	OperationDecrypt       = "decrypt"
	OperationDecryptToFile = "decrypt_to_file"
)

// Outcome label values.
const (
	OutcomeSuccess          = "success"
	OutcomeInvalidFormat    = "invalid_format"
	OutcomeDecryptionFailed = "decryption_failed"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

// Metrics records resolver activity. A nil *Metrics records nothing.
type Metrics struct {
	decryptTotal    *prometheus.CounterVec
	decryptDuration *prometheus.HistogramVec
	secretFiles     *prometheus.CounterVec
}

// NewMetrics creates the resolver collectors and registers them with reg.
// It panics if the collectors are already registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		decryptTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretref_decrypt_total",
				Help: "Total number of secret resolutions by engine, operation and outcome",
			},
			[]string{"engine", "operation", "outcome"},
		),
		decryptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "secretref_decrypt_duration_seconds",
				Help:    "Duration of secret resolutions in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"engine", "operation"},
		),
		secretFiles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "secretref_secret_files_total",
				Help: "Total number of secret files written",
			},
			[]string{"engine"},
		),
	}
}

func (m *Metrics) observe(engine, operation string, err error, start time.Time) {
	if m == nil {
		return
	}
	m.decryptTotal.WithLabelValues(engine, operation, outcome(err)).Inc()
	m.decryptDuration.WithLabelValues(engine, operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) secretFileWritten(engine string) {
	if m == nil {
		return
	}
	m.secretFiles.WithLabelValues(engine).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, secrets.ErrInvalidFormat):
		return OutcomeInvalidFormat
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.Is(err, secrets.ErrDecryptionFailed):
		return OutcomeDecryptionFailed
	default:
		return OutcomeError
	}
}
