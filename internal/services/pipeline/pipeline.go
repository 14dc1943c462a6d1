// Package pipeline couples a fitted preprocessor with a fitted regressor so
// they are trained, persisted and served as one unit.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"CryptoVol/internal/domain/models"
	"CryptoVol/internal/services/preprocess"
	"CryptoVol/internal/services/regression"
	"CryptoVol/pkg/frame"
)

// Pipeline is immutable once fitted and safe for concurrent Predict calls.
type Pipeline struct {
	ModelID      string
	Preprocessor *preprocess.Fitted
	Model        regression.Regressor
	Metrics      models.RunMetrics
	TrainedAt    time.Time
}

// Fit trains the regressor on an already fitted preprocessor.
func Fit(ctx context.Context, id string, pre *preprocess.Fitted, model regression.Regressor, x *frame.Frame, y []float64) (*Pipeline, error) {
	matrix, err := pre.Apply(x)
	if err != nil {
		return nil, err
	}
	if err := model.Fit(ctx, matrix, y); err != nil {
		return nil, fmt.Errorf("fit %s: %w", id, err)
	}
	return &Pipeline{
		ModelID:      id,
		Preprocessor: pre,
		Model:        model,
		TrainedAt:    time.Now().UTC(),
	}, nil
}

// Predict returns one prediction per row of f, in row order.
func (p *Pipeline) Predict(f *frame.Frame) ([]float64, error) {
	if f.Len() == 0 {
		return nil, &models.EmptyInputError{}
	}
	matrix, err := p.Preprocessor.Apply(f)
	if err != nil {
		return nil, err
	}
	return p.Model.Predict(matrix), nil
}

type envelope struct {
	ModelID      string             `json:"model_id"`
	Kind         string             `json:"kind"`
	TrainedAt    time.Time          `json:"trained_at"`
	Metrics      models.RunMetrics  `json:"metrics"`
	Preprocessor *preprocess.Fitted `json:"preprocessor"`
	Model        json.RawMessage    `json:"model"`
}

func (p *Pipeline) MarshalJSON() ([]byte, error) {
	if p.Model == nil || p.Preprocessor == nil {
		return nil, errors.New("pipeline is not fitted")
	}
	raw, err := json.Marshal(p.Model)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	return json.Marshal(envelope{
		ModelID:      p.ModelID,
		Kind:         p.Model.Kind(),
		TrainedAt:    p.TrainedAt,
		Metrics:      p.Metrics,
		Preprocessor: p.Preprocessor,
		Model:        raw,
	})
}

func (p *Pipeline) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	if env.Preprocessor == nil {
		return errors.New("pipeline artifact has no preprocessor")
	}
	model, err := regression.Decode(env.Kind, env.Model)
	if err != nil {
		return err
	}
	*p = Pipeline{
		ModelID:      env.ModelID,
		Preprocessor: env.Preprocessor,
		Model:        model,
		Metrics:      env.Metrics,
		TrainedAt:    env.TrainedAt,
	}
	return nil
}
