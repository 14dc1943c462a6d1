package regression

import (
	"context"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForest averages bootstrap-trained regression trees grown to purity.
type RandomForest struct {
	NEstimators    int     `json:"n_estimators"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
	MaxDepth       int     `json:"max_depth"`
	MaxFeatures    int     `json:"max_features"`
	Seed           int64   `json:"seed"`
	Trees          []*Tree `json:"trees"`
}

func NewRandomForest(spec Spec) *RandomForest {
	n := spec.NEstimators
	if n <= 0 {
		n = 100
	}
	return &RandomForest{
		NEstimators:    n,
		MinSamplesLeaf: spec.MinSamplesLeaf,
		MaxDepth:       spec.MaxDepth,
		MaxFeatures:    spec.MaxFeatures,
		Seed:           spec.Seed,
	}
}

func (f *RandomForest) Kind() string { return KindRandomForest }

// Fit grows the trees in parallel. Each tree draws from its own generator,
// seeded up front, so the result does not depend on scheduling.
func (f *RandomForest) Fit(ctx context.Context, x [][]float64, y []float64) error {
	if err := checkShape(x, y); err != nil {
		return err
	}
	master := rand.New(rand.NewSource(f.Seed))
	seeds := make([]int64, f.NEstimators)
	for i := range seeds {
		seeds[i] = master.Int63()
	}

	params := treeParams{
		maxDepth:       f.MaxDepth,
		minSamplesLeaf: f.MinSamplesLeaf,
		maxFeatures:    f.MaxFeatures,
	}
	trees := make([]*Tree, f.NEstimators)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range trees {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(seeds[i]))
			sample := make([]int, len(x))
			for j := range sample {
				sample[j] = rng.Intn(len(x))
			}
			trees[i] = growTree(x, y, sample, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	f.Trees = trees
	return nil
}

func (f *RandomForest) Predict(x [][]float64) []float64 {
	out := make([]float64, len(x))
	if len(f.Trees) == 0 {
		return out
	}
	for i, row := range x {
		sum := 0.0
		for _, t := range f.Trees {
			sum += t.predict(row)
		}
		out[i] = sum / float64(len(f.Trees))
	}
	return out
}
