package usecase

import (
	"context"
	"fmt"

	"CryptoVol/internal/domain/models"
	domrepo "CryptoVol/internal/domain/repository"
	applogger "CryptoVol/pkg/logger"

	"github.com/google/uuid"
)

// TrainingPipeline runs ingestion, feature building and training end to end.
type TrainingPipeline struct {
	builder   *FeatureBuilder
	trainer   *Trainer
	publisher domrepo.RunPublisher
	l         *applogger.Logger
}

func NewTrainingPipeline(builder *FeatureBuilder, trainer *Trainer, publisher domrepo.RunPublisher, l *applogger.Logger) *TrainingPipeline {
	if l == nil {
		l = applogger.Nop()
	}
	return &TrainingPipeline{builder: builder, trainer: trainer, publisher: publisher, l: l}
}

// Run returns the report of the finished run. A failed announcement is logged
// and does not fail the run since the artifacts are already in place.
func (p *TrainingPipeline) Run(ctx context.Context) (*models.TrainingReport, error) {
	runID := uuid.NewString()
	l := p.l.With(applogger.String("run_id", runID))
	l.Info("training run started")

	tables, err := p.builder.Build(ctx)
	if err != nil {
		l.Error("feature build failed", applogger.Error(err))
		return nil, err
	}
	report, _, err := p.trainer.Train(ctx, tables.ModelReady)
	if err != nil {
		l.Error("training failed",
			applogger.Int("model_ready_rows", tables.ModelReady.Len()),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("train: %w", err)
	}
	report.RunID = runID

	if p.publisher != nil {
		if err := p.publisher.PublishRun(ctx, *report); err != nil {
			l.Warn("run announcement failed", applogger.Error(err))
		}
	}
	l.Info("training run finished",
		applogger.String("selected_model", report.SelectedModel),
		applogger.String("pipeline_path", report.PipelinePath),
	)
	return report, nil
}
