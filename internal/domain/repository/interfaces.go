package repository

import (
	"context"

	"CryptoVol/internal/domain/models"
	"CryptoVol/pkg/frame"
)

// SeriesSource yields the raw historical series.
type SeriesSource interface {
	LoadSeries(ctx context.Context) (*frame.Frame, error)
	Name() string
}

// FeatureSink persists the engineered feature tables.
type FeatureSink interface {
	SaveFeatures(ctx context.Context, full, modelReady *frame.Frame) error
}

// RawArchiver keeps a copy of the ingested series.
type RawArchiver interface {
	SaveRaw(ctx context.Context, raw *frame.Frame) error
}

// RunPublisher announces completed training runs.
type RunPublisher interface {
	PublishRun(ctx context.Context, report models.TrainingReport) error
	Close() error
}

type Metrics interface {
	RecordRows(stage string, n int)
	RecordCandidate(modelID string, m models.RunMetrics)
	RecordSelected(modelID string)
	RecordPredictions(modelID string, rows int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
