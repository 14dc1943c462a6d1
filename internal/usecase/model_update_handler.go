package usecase

import (
	"context"
	"encoding/json"

	"CryptoVol/internal/domain/models"
	domrepo "CryptoVol/internal/domain/repository"
	pkgkafka "CryptoVol/pkg/kafka"
	applogger "CryptoVol/pkg/logger"
)

// ModelUpdateHandler reloads the served pipeline when a training run is announced.
type ModelUpdateHandler struct {
	topic   string
	svc     *PredictionService
	metrics domrepo.Metrics
	l       *applogger.Logger
}

func NewModelUpdateHandler(topic string, svc *PredictionService, metrics domrepo.Metrics, l *applogger.Logger) *ModelUpdateHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &ModelUpdateHandler{topic: topic, svc: svc, metrics: metrics, l: l}
}

func (h *ModelUpdateHandler) Topic() string { return h.topic }

// message schema: models.TrainingReport
func (h *ModelUpdateHandler) Handle(ctx context.Context, b []byte) error {
	var report models.TrainingReport
	if err := json.Unmarshal(b, &report); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	p, err := h.svc.Reload()
	if err != nil {
		h.l.Error("pipeline reload failed",
			applogger.String("run_id", report.RunID),
			applogger.Error(err),
		)
		return err
	}
	if p.ModelID != report.SelectedModel {
		h.l.Warn("reloaded pipeline differs from announced run",
			applogger.String("run_id", report.RunID),
			applogger.String("announced", report.SelectedModel),
			applogger.String("loaded", p.ModelID),
		)
	}
	h.l.Info("pipeline reloaded from run event",
		applogger.String("run_id", report.RunID),
		applogger.String("model_id", p.ModelID),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*ModelUpdateHandler)(nil)
