// Package regression holds the tree-ensemble regressors trained as model
// candidates, their configuration and their evaluation metrics.
package regression

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	KindRandomForest     = "random_forest"
	KindGradientBoosting = "gradient_boosting"
)

// Regressor is a trainable model over a dense feature matrix.
type Regressor interface {
	Kind() string
	Fit(ctx context.Context, x [][]float64, y []float64) error
	Predict(x [][]float64) []float64
}

// Spec configures one candidate. Zero values fall back to the defaults of
// the selected kind.
type Spec struct {
	ID             string  `json:"id" yaml:"id"`
	Kind           string  `json:"kind" yaml:"kind"`
	NEstimators    int     `json:"n_estimators" yaml:"n_estimators"`
	LearningRate   float64 `json:"learning_rate,omitempty" yaml:"learning_rate"`
	MaxDepth       int     `json:"max_depth,omitempty" yaml:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf,omitempty" yaml:"min_samples_leaf"`
	MaxFeatures    int     `json:"max_features,omitempty" yaml:"max_features"`
	Lambda         float64 `json:"lambda,omitempty" yaml:"lambda"`
	Seed           int64   `json:"seed" yaml:"seed"`
}

// DefaultCandidates are trained when no candidates are configured, in
// selection priority order.
func DefaultCandidates() []Spec {
	return []Spec{
		{ID: KindRandomForest, Kind: KindRandomForest, NEstimators: 50, Seed: 42},
		{ID: KindGradientBoosting, Kind: KindGradientBoosting, NEstimators: 200, LearningRate: 0.05, MaxDepth: 6, Lambda: 1, Seed: 42},
	}
}

// New builds an unfitted regressor from its spec.
func New(spec Spec) (Regressor, error) {
	switch spec.Kind {
	case KindRandomForest:
		return NewRandomForest(spec), nil
	case KindGradientBoosting:
		return NewGradientBoosting(spec), nil
	default:
		return nil, fmt.Errorf("unknown regressor kind %q", spec.Kind)
	}
}

// Decode restores a fitted regressor of the given kind from its JSON state.
func Decode(kind string, raw json.RawMessage) (Regressor, error) {
	var r Regressor
	switch kind {
	case KindRandomForest:
		r = &RandomForest{}
	case KindGradientBoosting:
		r = &GradientBoosting{}
	default:
		return nil, fmt.Errorf("unknown regressor kind %q", kind)
	}
	if err := json.Unmarshal(raw, r); err != nil {
		return nil, fmt.Errorf("decode %s: %w", kind, err)
	}
	return r, nil
}

func checkShape(x [][]float64, y []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("no training rows")
	}
	if len(x) != len(y) {
		return fmt.Errorf("feature rows %d != target rows %d", len(x), len(y))
	}
	return nil
}
