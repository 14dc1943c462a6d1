package metrics

import (
	"CryptoVol/internal/domain/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	rowsTotal      *prometheus.CounterVec
	candidateScore *prometheus.GaugeVec
	selected       *prometheus.GaugeVec
	predictions    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	latency        *prometheus.HistogramVec
}

// New registers the collectors on reg; pass prometheus.DefaultRegisterer in
// the binaries and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		rowsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptovol_rows_processed_total",
				Help: "Rows processed per pipeline stage",
			},
			[]string{"stage"},
		),
		candidateScore: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptovol_candidate_score",
				Help: "Held-out score of each candidate model in the last training run",
			},
			[]string{"model", "metric"},
		),
		selected: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cryptovol_selected_model",
				Help: "1 for the model selected by the last training run",
			},
			[]string{"model"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptovol_predictions_total",
				Help: "Rows scored by the prediction service",
			},
			[]string{"model"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cryptovol_errors_total",
				Help: "Errors by kind",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cryptovol_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRows(stage string, n int) {
	r.rowsTotal.WithLabelValues(stage).Add(float64(n))
}

func (r *Recorder) RecordCandidate(modelID string, m models.RunMetrics) {
	r.candidateScore.WithLabelValues(modelID, "rmse").Set(m.RMSE)
	r.candidateScore.WithLabelValues(modelID, "mae").Set(m.MAE)
	r.candidateScore.WithLabelValues(modelID, "r2").Set(m.R2)
}

func (r *Recorder) RecordSelected(modelID string) {
	r.selected.Reset()
	r.selected.WithLabelValues(modelID).Set(1)
}

func (r *Recorder) RecordPredictions(modelID string, rows int) {
	r.predictions.WithLabelValues(modelID).Add(float64(rows))
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordRows(string, int)                    {}
func (Nop) RecordCandidate(string, models.RunMetrics) {}
func (Nop) RecordSelected(string)                     {}
func (Nop) RecordPredictions(string, int)             {}
func (Nop) RecordError(string)                        {}
func (Nop) RecordLatency(string, float64)             {}
