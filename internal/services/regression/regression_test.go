package regression

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearData(n int, seed int64) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(seed))
	x := make([][]float64, n)
	y := make([]float64, n)
	for i := range x {
		a, b := rng.Float64()*10, rng.Float64()*10
		x[i] = []float64{a, b}
		y[i] = 3*a - b + rng.NormFloat64()*0.1
	}
	return x, y
}

func TestTreeFitsStepFunction(t *testing.T) {
	x := [][]float64{{1}, {2}, {3}, {10}, {11}, {12}}
	y := []float64{0, 0, 0, 5, 5, 5}
	idx := []int{0, 1, 2, 3, 4, 5}
	tree := growTree(x, y, idx, treeParams{}, rand.New(rand.NewSource(1)))

	assert.Equal(t, 1, tree.Depth())
	assert.Equal(t, 0.0, tree.predict([]float64{2.5}))
	assert.Equal(t, 5.0, tree.predict([]float64{11.5}))
	assert.Equal(t, 6.5, tree.Nodes[0].Threshold)
}

func TestTreeRespectsMaxDepthAndLambda(t *testing.T) {
	x, y := linearData(200, 3)
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	tree := growTree(x, y, idx, treeParams{maxDepth: 3}, rand.New(rand.NewSource(1)))
	assert.LessOrEqual(t, tree.Depth(), 3)

	// A single leaf with lambda shrinks the mean towards zero.
	stump := growTree([][]float64{{1}, {1}}, []float64{4, 4}, []int{0, 1}, treeParams{lambda: 2}, nil)
	require.Len(t, stump.Nodes, 1)
	assert.Equal(t, 2.0, stump.Nodes[0].Value)
}

func TestRandomForestDeterministicAndAccurate(t *testing.T) {
	x, y := linearData(300, 5)
	xt, yt := linearData(100, 6)
	spec := Spec{Kind: KindRandomForest, NEstimators: 20, Seed: 42}

	a := NewRandomForest(spec)
	require.NoError(t, a.Fit(context.Background(), x, y))
	b := NewRandomForest(spec)
	require.NoError(t, b.Fit(context.Background(), x, y))

	pa, pb := a.Predict(xt), b.Predict(xt)
	assert.Equal(t, pa, pb)
	assert.Greater(t, Evaluate(yt, pa).R2, 0.9)
}

func TestGradientBoostingLearnsSignal(t *testing.T) {
	x, y := linearData(300, 7)
	xt, yt := linearData(100, 8)
	gb := NewGradientBoosting(Spec{Kind: KindGradientBoosting, NEstimators: 200, LearningRate: 0.05, MaxDepth: 6, Lambda: 1})
	require.NoError(t, gb.Fit(context.Background(), x, y))

	m := Evaluate(yt, gb.Predict(xt))
	assert.Greater(t, m.R2, 0.9)
	assert.Len(t, gb.Trees, 200)
}

func TestFitHonoursCancellation(t *testing.T) {
	x, y := linearData(50, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gb := NewGradientBoosting(Spec{NEstimators: 5})
	assert.ErrorIs(t, gb.Fit(ctx, x, y), context.Canceled)
}

func TestFitRejectsBadShapes(t *testing.T) {
	rf := NewRandomForest(Spec{NEstimators: 2})
	assert.Error(t, rf.Fit(context.Background(), nil, nil))
	assert.Error(t, rf.Fit(context.Background(), [][]float64{{1}}, []float64{1, 2}))
}

func TestDecodeRestoresPredictions(t *testing.T) {
	x, y := linearData(80, 9)
	for _, spec := range DefaultCandidates() {
		spec.NEstimators = 5
		r, err := New(spec)
		require.NoError(t, err)
		require.NoError(t, r.Fit(context.Background(), x, y))

		raw, err := json.Marshal(r)
		require.NoError(t, err)
		back, err := Decode(r.Kind(), raw)
		require.NoError(t, err)
		assert.Equal(t, r.Predict(x), back.Predict(x), spec.Kind)
	}

	_, err := New(Spec{Kind: "linear"})
	assert.Error(t, err)
	_, err = Decode("linear", []byte("{}"))
	assert.Error(t, err)
}

func TestDefaultCandidatesOrder(t *testing.T) {
	specs := DefaultCandidates()
	require.Len(t, specs, 2)
	assert.Equal(t, KindRandomForest, specs[0].Kind)
	assert.Equal(t, 50, specs[0].NEstimators)
	assert.Equal(t, KindGradientBoosting, specs[1].Kind)
	assert.Equal(t, 200, specs[1].NEstimators)
	assert.Equal(t, 0.05, specs[1].LearningRate)
}

func TestEvaluate(t *testing.T) {
	perfect := Evaluate([]float64{1, 2, 3}, []float64{1, 2, 3})
	assert.Equal(t, 0.0, perfect.RMSE)
	assert.Equal(t, 0.0, perfect.MAE)
	assert.Equal(t, 1.0, perfect.R2)

	m := Evaluate([]float64{1, 2, 3}, []float64{2, 2, 2})
	assert.InDelta(t, math.Sqrt(2.0/3), m.RMSE, 1e-12)
	assert.InDelta(t, 2.0/3, m.MAE, 1e-12)
	assert.InDelta(t, 0, m.R2, 1e-12)

	constant := Evaluate([]float64{4, 4}, []float64{4, 5})
	assert.Equal(t, 0.0, constant.R2)
	assert.Equal(t, 1.0, Evaluate([]float64{4, 4}, []float64{4, 4}).R2)

	assert.True(t, math.IsNaN(Evaluate(nil, nil).R2))
}
