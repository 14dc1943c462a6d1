package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"CryptoVol/internal/domain/models"
	domrepo "CryptoVol/internal/domain/repository"
	"CryptoVol/internal/repository"
	"CryptoVol/internal/services/features"
	"CryptoVol/internal/services/regression"
	"CryptoVol/pkg/frame"
	"CryptoVol/pkg/metrics"
	"CryptoVol/pkg/samplegen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct{ f *frame.Frame }

func (s memSource) LoadSeries(context.Context) (*frame.Frame, error) { return s.f, nil }

func (s memSource) Name() string { return "memory" }

type capturePublisher struct {
	mu      sync.Mutex
	reports []models.TrainingReport
}

func (p *capturePublisher) PublishRun(_ context.Context, r models.TrainingReport) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reports = append(p.reports, r)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func smallCandidates() []regression.Spec {
	return []regression.Spec{
		{ID: "random_forest", Kind: regression.KindRandomForest, NEstimators: 5, Seed: 42},
		{ID: "gradient_boosting", Kind: regression.KindGradientBoosting, NEstimators: 20, LearningRate: 0.1, MaxDepth: 3, Lambda: 1, Seed: 42},
	}
}

type harness struct {
	artifacts *repository.ArtifactStore
	features  *repository.CSVFeatureStore
	pipeline  *TrainingPipeline
	publisher *capturePublisher
}

func newHarness(t *testing.T, raw *frame.Frame) *harness {
	t.Helper()
	dir := t.TempDir()
	artifacts := repository.NewArtifactStore(dir, nil)
	featureStore := repository.NewCSVFeatureStore(dir, nil)
	builder := NewFeatureBuilder(memSource{raw}, features.NewEngine(nil), featureStore,
		[]domrepo.FeatureSink{featureStore}, metrics.Nop{}, nil)
	trainer := NewTrainer(TrainerConfig{Candidates: smallCandidates()}, artifacts, metrics.Nop{}, nil)
	pub := &capturePublisher{}
	return &harness{
		artifacts: artifacts,
		features:  featureStore,
		pipeline:  NewTrainingPipeline(builder, trainer, pub, nil),
		publisher: pub,
	}
}

func TestSplitChronological(t *testing.T) {
	f, err := frame.New(
		frame.NewCategorical(models.ColDate, []string{"2023-01-03", "", "2023-01-01", "2023-01-02", "2023-01-01"}),
		frame.NewNumeric("row", []float64{0, 1, 2, 3, 4}),
	)
	require.NoError(t, err)

	train, test, err := SplitChronological(f, models.ColDate, 0.2)
	require.NoError(t, err)
	row := func(f *frame.Frame) []float64 {
		c, _ := f.Column("row")
		return c.Nums
	}
	assert.Equal(t, []float64{2, 4, 3, 0}, row(train), "stable within equal dates")
	assert.Equal(t, []float64{1}, row(test), "unparsable dates sort last")

	_, _, err = SplitChronological(f.Head(1), models.ColDate, 0.2)
	assert.ErrorIs(t, err, models.ErrEmptyTrainSplit)
}

func TestSelectBest(t *testing.T) {
	run := func(id string, r2 float64) ModelRun {
		return ModelRun{ModelID: id, Metrics: models.RunMetrics{R2: r2}}
	}
	tests := []struct {
		name string
		runs []ModelRun
		want string
	}{
		{"higher first", []ModelRun{run("a", 0.8), run("b", 0.6)}, "a"},
		{"higher second", []ModelRun{run("a", 0.6), run("b", 0.8)}, "b"},
		{"tie keeps first", []ModelRun{run("a", 0.7), run("b", 0.7)}, "a"},
		{"nan loses", []ModelRun{run("a", math.NaN()), run("b", -0.5)}, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			best, err := SelectBest(tt.runs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, best.ModelID)
		})
	}

	_, err := SelectBest(nil)
	assert.ErrorIs(t, err, models.ErrNoCandidates)
}

func TestTrainerRequiresTargetColumn(t *testing.T) {
	f, err := frame.New(
		frame.NewCategorical(models.ColDate, []string{"2023-01-01"}),
		frame.NewNumeric(models.ColClose, []float64{1}),
	)
	require.NoError(t, err)
	tr := NewTrainer(TrainerConfig{}, repository.NewArtifactStore(t.TempDir(), nil), metrics.Nop{}, nil)

	_, _, err = tr.Train(context.Background(), f)
	var mce *models.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, models.ColTarget, mce.Column)
}

func TestTrainingPipelineEndToEnd(t *testing.T) {
	h := newHarness(t, samplegen.Generate(samplegen.DefaultOptions()))

	report, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 111, report.TrainRows+report.TestRows)
	assert.Equal(t, 23, report.TestRows)
	require.Len(t, report.Candidates, 2)
	sel, ok := report.Selected()
	require.True(t, ok)
	for _, c := range report.Candidates {
		assert.LessOrEqual(t, c.Metrics.R2, sel.Metrics.R2)
	}
	assert.Contains(t, report.CategoricalColumns, models.ColAsset)
	assert.NotContains(t, report.NumericalColumns, models.ColTarget)

	assert.FileExists(t, h.features.RawPath())
	assert.FileExists(t, h.features.FullPath())
	assert.FileExists(t, report.PipelinePath)
	assert.FileExists(t, report.PreprocessorPath)

	require.Len(t, h.publisher.reports, 1)
	assert.Equal(t, report.RunID, h.publisher.reports[0].RunID)

	full, err := repository.ReadTable(h.features.FullPath())
	require.NoError(t, err)
	assert.Equal(t, 120, full.Len())
	target, _ := full.Column(models.ColTarget)
	nulls := 0
	for i := 0; i < full.Len(); i++ {
		if target.IsNull(i) {
			nulls++
		}
	}
	assert.Equal(t, 3, nulls)

	ready, err := h.features.LoadModelFeatures()
	require.NoError(t, err)
	svc := NewPredictionService(h.artifacts, "", []string{models.ColTarget, models.ColDate}, metrics.Nop{}, nil)
	pred, err := svc.Predict(context.Background(), ready)
	require.NoError(t, err)
	assert.Equal(t, report.SelectedModel, pred.ModelID)
	require.Len(t, pred.Values, ready.Len())
	for _, v := range pred.Values {
		assert.False(t, math.IsNaN(v))
	}
}

func TestPredictionServiceErrors(t *testing.T) {
	store := repository.NewArtifactStore(t.TempDir(), nil)
	svc := NewPredictionService(store, "", nil, metrics.Nop{}, nil)

	one, err := frame.New(frame.NewNumeric("x", []float64{1}))
	require.NoError(t, err)

	_, err = svc.Predict(context.Background(), one)
	var nf *models.ModelNotFoundError
	assert.True(t, errors.As(err, &nf))

	_, err = svc.Predict(context.Background(), one.Head(0))
	var empty *models.EmptyInputError
	assert.True(t, errors.As(err, &empty))
}

type errorCounter struct {
	metrics.Nop
	kinds []string
}

func (c *errorCounter) RecordError(kind string) { c.kinds = append(c.kinds, kind) }

func TestLoadPredictionServiceFailsWithoutArtifact(t *testing.T) {
	store := repository.NewArtifactStore(t.TempDir(), nil)
	counter := &errorCounter{}

	svc, err := LoadPredictionService(store, "", nil, counter, nil)
	assert.Nil(t, svc)
	var nf *models.ModelNotFoundError
	require.True(t, errors.As(err, &nf))

	lazy := NewPredictionService(store, "", nil, counter, nil)
	for i := 0; i < 3; i++ {
		_, err := lazy.Pipeline()
		require.True(t, errors.As(err, &nf))
	}
	assert.Empty(t, counter.kinds, "a missing artifact is not counted as a load error")
}

func TestLoadPredictionServiceLoadsEagerly(t *testing.T) {
	h := newHarness(t, samplegen.Generate(samplegen.DefaultOptions()))
	report, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)

	svc, err := LoadPredictionService(h.artifacts, "", nil, metrics.Nop{}, nil)
	require.NoError(t, err)
	p, err := svc.Pipeline()
	require.NoError(t, err)
	assert.Equal(t, report.SelectedModel, p.ModelID)
}

func TestPredictionServiceSchemaMismatch(t *testing.T) {
	h := newHarness(t, samplegen.Generate(samplegen.DefaultOptions()))
	_, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)

	ready, err := h.features.LoadModelFeatures()
	require.NoError(t, err)
	svc := NewPredictionService(h.artifacts, "", []string{models.ColTarget, models.ColDate}, metrics.Nop{}, nil)

	_, err = svc.Predict(context.Background(), ready.Drop(models.ColVol30d))
	var sme *models.SchemaMismatchError
	require.True(t, errors.As(err, &sme))
	assert.Equal(t, models.ColVol30d, sme.Column)
}

func TestModelUpdateHandlerReloads(t *testing.T) {
	h := newHarness(t, samplegen.Generate(samplegen.DefaultOptions()))
	_, err := h.pipeline.Run(context.Background())
	require.NoError(t, err)

	svc := NewPredictionService(h.artifacts, "", nil, metrics.Nop{}, nil)
	first, err := svc.Pipeline()
	require.NoError(t, err)

	handler := NewModelUpdateHandler("cryptovol.model-runs", svc, metrics.Nop{}, nil)
	assert.Equal(t, "cryptovol.model-runs", handler.Topic())
	require.NoError(t, handler.Handle(context.Background(), []byte(`{"run_id":"r1","selected_model":"random_forest"}`)))

	second, err := svc.Pipeline()
	require.NoError(t, err)
	assert.NotSame(t, first, second)

	assert.Error(t, handler.Handle(context.Background(), []byte("{")))
}
