//go:build wireinject
// +build wireinject

package di

import (
	"CryptoVol/pkg/config"
	"CryptoVol/pkg/server"

	"github.com/google/wire"
)

var baseSet = wire.NewSet(
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideArtifactStore,
)

var trainingSet = wire.NewSet(
	ProvideClickHouseClient,
	ProvideCHStore,
	ProvideSeriesSource,
	ProvideFeatureStore,
	ProvideFeatureSinks,
	ProvideFeatureEngine,
	ProvideFeatureBuilder,
	ProvideTrainerConfig,
	ProvideTrainer,
	ProvideKafkaProducer,
	ProvideRunPublisher,
	ProvideTrainingPipeline,
	ProvideJobs,
)

var servingSet = wire.NewSet(
	ProvidePredictionService,
	ProvideCache,
	ProvideLimiter,
	ProvideWebHandler,
	ProvideHTTPServer,
	ProvideKafkaConsumer,
	ProvideModelUpdateHandler,
	ProvideApp,
)

// InitializeJobs wires the feature and training jobs.
func InitializeJobs(cfg *config.Config) (*Jobs, func(), error) {
	wire.Build(baseSet, trainingSet)
	return nil, nil, nil
}

// InitializeServer wires the prediction server.
func InitializeServer(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(baseSet, servingSet)
	return nil, nil, nil
}
