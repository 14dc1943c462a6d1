package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"CryptoVol/internal/domain/models"
	domrepo "CryptoVol/internal/domain/repository"
	"CryptoVol/internal/services/pipeline"
	"CryptoVol/pkg/frame"
	applogger "CryptoVol/pkg/logger"
)

// PipelineLoader reads a persisted pipeline.
type PipelineLoader interface {
	LoadPipeline(path string) (*pipeline.Pipeline, error)
}

// PredictionService serves the persisted pipeline. The loaded pipeline is
// swapped atomically on Reload, so in-flight predictions keep the one they
// started with.
type PredictionService struct {
	loader  PipelineLoader
	path    string
	drop    []string
	current atomic.Pointer[pipeline.Pipeline]
	mu      sync.Mutex
	metrics domrepo.Metrics
	l       *applogger.Logger
}

// NewPredictionService does not load anything; the first Predict does. drop
// lists columns removed from every input before scoring (target and date).
func NewPredictionService(loader PipelineLoader, path string, drop []string, metrics domrepo.Metrics, l *applogger.Logger) *PredictionService {
	if l == nil {
		l = applogger.Nop()
	}
	return &PredictionService{loader: loader, path: path, drop: drop, metrics: metrics, l: l}
}

// LoadPredictionService builds the service and loads the pipeline at once, so
// a missing artifact surfaces as *models.ModelNotFoundError here rather than
// on the first Predict.
func LoadPredictionService(loader PipelineLoader, path string, drop []string, metrics domrepo.Metrics, l *applogger.Logger) (*PredictionService, error) {
	s := NewPredictionService(loader, path, drop, metrics, l)
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reads the artifact again and replaces the served pipeline.
func (s *PredictionService) Reload() (*pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reloadLocked()
}

// Pipeline returns the served pipeline, loading it on first use.
func (s *PredictionService) Pipeline() (*pipeline.Pipeline, error) {
	if p := s.current.Load(); p != nil {
		return p, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.current.Load(); p != nil {
		return p, nil
	}
	return s.reloadLocked()
}

func (s *PredictionService) reloadLocked() (*pipeline.Pipeline, error) {
	p, err := s.loader.LoadPipeline(s.path)
	if err != nil {
		// no artifact yet is the normal state before the first training run
		var nf *models.ModelNotFoundError
		if !errors.As(err, &nf) {
			s.metrics.RecordError("load_pipeline")
		}
		return nil, err
	}
	s.current.Store(p)
	s.l.Info("pipeline loaded",
		applogger.String("model_id", p.ModelID),
		applogger.String("trained_at", p.TrainedAt.Format(time.RFC3339)),
	)
	return p, nil
}

// Prediction is the scored output of one call.
type Prediction struct {
	ModelID string
	Input   *frame.Frame
	Values  []float64
}

// Predict scores every row of f in order. Target and date columns are removed
// first; any column the fitted preprocessor expects must still be present.
func (s *PredictionService) Predict(ctx context.Context, f *frame.Frame) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f == nil || f.Len() == 0 {
		s.metrics.RecordError("empty_input")
		return nil, &models.EmptyInputError{}
	}
	p, err := s.Pipeline()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	input := f.Drop(s.drop...)
	values, err := p.Predict(input)
	if err != nil {
		var sme *models.SchemaMismatchError
		if errors.As(err, &sme) {
			s.metrics.RecordError("schema_mismatch")
		} else {
			s.metrics.RecordError("predict")
		}
		return nil, fmt.Errorf("predict with %s: %w", p.ModelID, err)
	}
	s.metrics.RecordPredictions(p.ModelID, len(values))
	s.metrics.RecordLatency("predict", time.Since(start).Seconds())
	return &Prediction{ModelID: p.ModelID, Input: input, Values: values}, nil
}
