package usecase

import (
	"context"
	"fmt"
	"time"

	domrepo "CryptoVol/internal/domain/repository"
	"CryptoVol/internal/services/features"
	"CryptoVol/pkg/frame"
	applogger "CryptoVol/pkg/logger"
)

// FeatureBuilder ingests the raw series and produces the feature tables.
type FeatureBuilder struct {
	source   domrepo.SeriesSource
	engine   *features.Engine
	archiver domrepo.RawArchiver
	sinks    []domrepo.FeatureSink
	metrics  domrepo.Metrics
	l        *applogger.Logger
}

// NewFeatureBuilder wires a builder. archiver may be nil.
func NewFeatureBuilder(
	source domrepo.SeriesSource,
	engine *features.Engine,
	archiver domrepo.RawArchiver,
	sinks []domrepo.FeatureSink,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *FeatureBuilder {
	if l == nil {
		l = applogger.Nop()
	}
	return &FeatureBuilder{source: source, engine: engine, archiver: archiver, sinks: sinks, metrics: metrics, l: l}
}

// FeatureTables are the two views written by a build.
type FeatureTables struct {
	Full       *frame.Frame
	ModelReady *frame.Frame
}

func (b *FeatureBuilder) Build(ctx context.Context) (*FeatureTables, error) {
	start := time.Now()
	raw, err := b.source.LoadSeries(ctx)
	if err != nil {
		b.metrics.RecordError("ingest")
		return nil, fmt.Errorf("ingest %s: %w", b.source.Name(), err)
	}
	b.metrics.RecordRows("ingest", raw.Len())

	if b.archiver != nil {
		if err := b.archiver.SaveRaw(ctx, raw); err != nil {
			b.metrics.RecordError("raw_copy")
			return nil, fmt.Errorf("save raw copy: %w", err)
		}
	}

	full, err := b.engine.Transform(raw)
	if err != nil {
		b.metrics.RecordError("features")
		return nil, fmt.Errorf("compute features: %w", err)
	}
	ready := features.ModelReady(full)
	b.metrics.RecordRows("features", full.Len())
	b.metrics.RecordRows("model_ready", ready.Len())

	for _, sink := range b.sinks {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := sink.SaveFeatures(ctx, full, ready); err != nil {
			b.metrics.RecordError("feature_sink")
			return nil, fmt.Errorf("save features: %w", err)
		}
	}

	b.metrics.RecordLatency("features", time.Since(start).Seconds())
	b.l.Info("feature tables built",
		applogger.String("source", b.source.Name()),
		applogger.Int("raw_rows", raw.Len()),
		applogger.Int("feature_rows", full.Len()),
		applogger.Int("model_ready_rows", ready.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return &FeatureTables{Full: full, ModelReady: ready}, nil
}
