package di

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"CryptoVol/internal/repository"
	"CryptoVol/internal/services/regression"
	"CryptoVol/pkg/config"
	"CryptoVol/pkg/frame"
	"CryptoVol/pkg/samplegen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	data := filepath.Join(dir, "prices.csv")
	fh, err := os.Create(data)
	require.NoError(t, err)
	require.NoError(t, frame.WriteCSV(fh, samplegen.Generate(samplegen.DefaultOptions())))
	require.NoError(t, fh.Close())

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Log.Level = "error"
	cfg.Source.Path = data
	cfg.Artifacts.Dir = filepath.Join(dir, "artifacts")
	cfg.Artifacts.UploadDir = filepath.Join(dir, "uploads")
	cfg.Artifacts.PredictionsDir = filepath.Join(dir, "predictions")
	cfg.Training.Candidates = []config.CandidateConfig{
		{ID: "rf", Kind: regression.KindRandomForest, NEstimators: 3, Seed: 1},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestProvideTrainerConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Training.Candidates = append(cfg.Training.Candidates, config.CandidateConfig{
		ID: "gb", Kind: regression.KindGradientBoosting, NEstimators: 7, LearningRate: 0.1, MaxDepth: 2, Lambda: 1,
	})
	tc := ProvideTrainerConfig(cfg)
	assert.Equal(t, "vol_7d_target_next", tc.TargetColumn)
	require.Len(t, tc.Candidates, 2)
	assert.Equal(t, regression.Spec{
		ID: "gb", Kind: regression.KindGradientBoosting, NEstimators: 7, LearningRate: 0.1, MaxDepth: 2, Lambda: 1,
	}, tc.Candidates[1])
}

func TestOptionalInfrastructureIsSkipped(t *testing.T) {
	cfg := testConfig(t)
	l, cleanup, err := ProvideLogger(cfg)
	require.NoError(t, err)
	defer cleanup()

	ch, chCleanup, err := ProvideClickHouseClient(cfg, l)
	require.NoError(t, err)
	chCleanup()
	assert.Nil(t, ch)
	assert.Nil(t, ProvideCHStore(cfg, ch, l))

	producer, pCleanup, err := ProvideKafkaProducer(cfg, ProvideRegistry())
	require.NoError(t, err)
	pCleanup()
	assert.Nil(t, producer)
	assert.IsType(t, repository.NopRunPublisher{}, ProvideRunPublisher(cfg, producer))

	consumer, err := ProvideKafkaConsumer(cfg, l)
	require.NoError(t, err)
	assert.Nil(t, consumer)

	cfg.Serving.RateLimit.Enabled = false
	assert.Nil(t, ProvideLimiter(cfg))

	sinks := ProvideFeatureSinks(cfg, ProvideFeatureStore(cfg, l), nil)
	assert.Len(t, sinks, 1)

	cfg.Source.Type = "s3"
	_, err = ProvideSeriesSource(cfg, nil, l)
	assert.Error(t, err)
	cfg.Source.Type = "clickhouse"
	_, err = ProvideSeriesSource(cfg, nil, l)
	assert.Error(t, err)
}

func TestInitializeJobsAndServer(t *testing.T) {
	cfg := testConfig(t)

	jobs, cleanup, err := InitializeJobs(cfg)
	require.NoError(t, err)
	defer cleanup()

	report, err := jobs.Pipeline.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "rf", report.SelectedModel)
	assert.FileExists(t, filepath.Join(cfg.Artifacts.Dir, repository.PipelineFile))
	assert.FileExists(t, filepath.Join(cfg.Artifacts.Dir, repository.FullFeaturesFile))

	app, stop, err := InitializeServer(cfg)
	require.NoError(t, err)
	defer stop()
	assert.NotNil(t, app)
}
