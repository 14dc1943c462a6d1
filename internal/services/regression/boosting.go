package regression

import (
	"context"
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// GradientBoosting fits depth-limited trees to squared-error residuals with
// L2-regularised leaf weights, shrunk by the learning rate.
type GradientBoosting struct {
	NEstimators    int     `json:"n_estimators"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	Lambda         float64 `json:"lambda"`
	Seed           int64   `json:"seed"`
	BaseScore      float64 `json:"base_score"`
	Trees          []*Tree `json:"trees"`
}

func NewGradientBoosting(spec Spec) *GradientBoosting {
	g := &GradientBoosting{
		NEstimators:    spec.NEstimators,
		LearningRate:   spec.LearningRate,
		MaxDepth:       spec.MaxDepth,
		MinSamplesLeaf: spec.MinSamplesLeaf,
		Lambda:         spec.Lambda,
		Seed:           spec.Seed,
	}
	if g.NEstimators <= 0 {
		g.NEstimators = 100
	}
	if g.LearningRate <= 0 {
		g.LearningRate = 0.3
	}
	if g.MaxDepth <= 0 {
		g.MaxDepth = 6
	}
	return g
}

func (g *GradientBoosting) Kind() string { return KindGradientBoosting }

func (g *GradientBoosting) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := checkShape(x, y); err != nil {
		return err
	}
	g.BaseScore = stat.Mean(y, nil)

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = g.BaseScore
	}
	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}
	residual := make([]float64, len(y))
	params := treeParams{maxDepth: g.MaxDepth, minSamplesLeaf: g.MinSamplesLeaf, lambda: g.Lambda}
	rng := rand.New(rand.NewSource(g.Seed))

	trees := make([]*Tree, 0, g.NEstimators)
	for m := 0; m < g.NEstimators; m++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		t := growTree(x, residual, all, params, rng)
		for i, row := range x {
			pred[i] += g.LearningRate * t.predict(row)
		}
		trees = append(trees, t)
	}
	g.Trees = trees
	return nil
}

func (g *GradientBoosting) Predict(x [][]float64) []float64 {
	out := make([]float64, len(x))
	for i, row := range x {
		v := g.BaseScore
		for _, t := range g.Trees {
			v += g.LearningRate * t.predict(row)
		}
		out[i] = v
	}
	return out
}
