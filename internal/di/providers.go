package di

import (
	"context"
	"fmt"
	"io"
	"time"

	"CryptoVol/internal/domain/models"
	domrepo "CryptoVol/internal/domain/repository"
	"CryptoVol/internal/handler/web"
	"CryptoVol/internal/repository"
	"CryptoVol/internal/service/cache"
	"CryptoVol/internal/service/ratelimit"
	"CryptoVol/internal/services/features"
	"CryptoVol/internal/services/regression"
	"CryptoVol/internal/usecase"
	pkgch "CryptoVol/pkg/clickhouse"
	"CryptoVol/pkg/config"
	xhttp "CryptoVol/pkg/http"
	pkgkafka "CryptoVol/pkg/kafka"
	applogger "CryptoVol/pkg/logger"
	"CryptoVol/pkg/metrics"
	"CryptoVol/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Jobs are the batch entry points of the CLI.
type Jobs struct {
	Builder  *usecase.FeatureBuilder
	Pipeline *usecase.TrainingPipeline
}

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	l = l.With(applogger.String("env", cfg.Environment))
	return l, func() { _ = l.Close() }, nil
}

// ProvideRegistry returns a registry carrying the runtime collectors.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(cfg *config.Config, reg *prometheus.Registry) domrepo.Metrics {
	if !cfg.Metrics.Enabled {
		return metrics.Nop{}
	}
	return metrics.New(reg)
}

// ProvideClickHouseClient connects only when a component reads from or
// writes to ClickHouse; otherwise it returns nil.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, func(), error) {
	if cfg.Source.Type != "clickhouse" && !cfg.Source.WriteFeatures {
		return nil, func() {}, nil
	}
	ch := cfg.ClickHouse

	ctx, cancel := context.WithTimeout(context.Background(), ch.DialTimeout+10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithAddress(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + ch.Database},
		repository.SchemaStatements(cfg.Source.SeriesTable, cfg.Source.FeaturesTable)...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse connected", applogger.String("database", ch.Database))

	return client, func() {
		if err := client.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}, nil
}

// ProvideCHStore returns nil without a ClickHouse client.
func ProvideCHStore(cfg *config.Config, client *pkgch.Client, l *applogger.Logger) *repository.CHSeriesStore {
	if client == nil {
		return nil
	}
	return repository.NewCHSeriesStore(client, cfg.Source.SeriesTable, cfg.Source.FeaturesTable, l)
}

// ProvideSeriesSource selects where the raw price history is read from.
func ProvideSeriesSource(cfg *config.Config, chStore *repository.CHSeriesStore, l *applogger.Logger) (domrepo.SeriesSource, error) {
	switch cfg.Source.Type {
	case "clickhouse":
		if chStore == nil {
			return nil, fmt.Errorf("clickhouse source requested without a client")
		}
		return chStore, nil
	case "file", "":
		return repository.NewFileSource(cfg.Source.Path, l), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Source.Type)
	}
}

func ProvideFeatureStore(cfg *config.Config, l *applogger.Logger) *repository.CSVFeatureStore {
	return repository.NewCSVFeatureStore(cfg.Artifacts.Dir, l)
}

// ProvideFeatureSinks always writes the CSV tables and adds ClickHouse when enabled.
func ProvideFeatureSinks(cfg *config.Config, csv *repository.CSVFeatureStore, chStore *repository.CHSeriesStore) []domrepo.FeatureSink {
	sinks := []domrepo.FeatureSink{csv}
	if cfg.Source.WriteFeatures && chStore != nil {
		sinks = append(sinks, chStore)
	}
	return sinks
}

func ProvideArtifactStore(cfg *config.Config, l *applogger.Logger) *repository.ArtifactStore {
	return repository.NewArtifactStore(cfg.Artifacts.Dir, l)
}

func ProvideFeatureEngine(l *applogger.Logger) *features.Engine {
	return features.NewEngine(l)
}

func ProvideFeatureBuilder(
	source domrepo.SeriesSource,
	engine *features.Engine,
	csv *repository.CSVFeatureStore,
	sinks []domrepo.FeatureSink,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.FeatureBuilder {
	return usecase.NewFeatureBuilder(source, engine, csv, sinks, m, l)
}

// ProvideTrainerConfig maps the training section; an empty candidate list
// falls back to the default candidates inside the trainer.
func ProvideTrainerConfig(cfg *config.Config) usecase.TrainerConfig {
	specs := make([]regression.Spec, 0, len(cfg.Training.Candidates))
	for _, c := range cfg.Training.Candidates {
		specs = append(specs, regression.Spec{
			ID:             c.ID,
			Kind:           c.Kind,
			NEstimators:    c.NEstimators,
			LearningRate:   c.LearningRate,
			MaxDepth:       c.MaxDepth,
			MinSamplesLeaf: c.MinSamplesLeaf,
			MaxFeatures:    c.MaxFeatures,
			Lambda:         c.Lambda,
			Seed:           c.Seed,
		})
	}
	return usecase.TrainerConfig{
		TargetColumn: cfg.Training.TargetColumn,
		DateColumn:   cfg.Training.DateColumn,
		TestSize:     cfg.Training.TestSize,
		Candidates:   specs,
	}
}

func ProvideTrainer(tc usecase.TrainerConfig, store *repository.ArtifactStore, m domrepo.Metrics, l *applogger.Logger) *usecase.Trainer {
	return usecase.NewTrainer(tc, store, m, l)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(reg,
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

func ProvideRunPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.RunPublisher {
	if producer == nil {
		return repository.NopRunPublisher{}
	}
	return repository.NewKafkaRunPublisher(producer, cfg.Kafka.Topic)
}

func ProvideTrainingPipeline(builder *usecase.FeatureBuilder, trainer *usecase.Trainer, pub domrepo.RunPublisher, l *applogger.Logger) *usecase.TrainingPipeline {
	return usecase.NewTrainingPipeline(builder, trainer, pub, l)
}

func ProvideJobs(builder *usecase.FeatureBuilder, p *usecase.TrainingPipeline) *Jobs {
	return &Jobs{Builder: builder, Pipeline: p}
}

// ProvidePredictionService serves the pipeline at its default location.
// Target and date columns are dropped from inputs before scoring.
func ProvidePredictionService(store *repository.ArtifactStore, m domrepo.Metrics, l *applogger.Logger) *usecase.PredictionService {
	return usecase.NewPredictionService(store, "", []string{models.ColTarget, models.ColDate}, m, l)
}

// ProvideCache prefers Redis and falls back to the in-process TTL cache when
// Redis is disabled or unreachable at startup.
func ProvideCache(cfg *config.Config, l *applogger.Logger) cache.BytesCache {
	if cfg.Redis.Enabled {
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		err := rc.Ping(ctx)
		if err == nil {
			l.Info("prediction cache: redis", applogger.String("addr", cfg.Redis.Addr))
			return rc
		}
		l.Warn("redis unavailable, using memory cache", applogger.Error(err))
		_ = rc.Close()
	}
	return cache.NewTTLCache(cfg.Serving.CacheEntries)
}

// ProvideLimiter returns nil when rate limiting is disabled.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	rl := cfg.Serving.RateLimit
	if !rl.Enabled {
		return nil
	}
	return ratelimit.New(rl.Burst, rl.PerSecond)
}

func ProvideWebHandler(
	cfg *config.Config,
	l *applogger.Logger,
	svc *usecase.PredictionService,
	c cache.BytesCache,
	limiter *ratelimit.Limiter,
) (*web.Handler, error) {
	return web.NewHandler(web.Config{
		UploadDir:      cfg.Artifacts.UploadDir,
		PredictionsDir: cfg.Artifacts.PredictionsDir,
		DefaultMaxRows: cfg.Serving.DefaultMaxRows,
		PreviewRows:    cfg.Serving.PreviewRows,
		CacheTTL:       cfg.Serving.CacheTTL,
	}, l, svc, c, limiter)
}

func ProvideHTTPServer(cfg *config.Config, h *web.Handler, reg *prometheus.Registry, l *applogger.Logger) *xhttp.Server {
	s := cfg.Server
	return xhttp.NewServer(h, l,
		xhttp.WithHost(s.Host),
		xhttp.WithPort(s.Port),
		xhttp.WithTimeouts(s.ReadTimeout, s.WriteTimeout, s.ShutdownTimeout),
		xhttp.WithBodyLimit(s.BodyLimit),
		xhttp.WithSlowRequest(s.SlowRequest),
		xhttp.WithRegistry(reg),
	)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.GroupID),
		pkgkafka.WithConsumerBroadcast(cfg.Kafka.Broadcast),
		pkgkafka.WithConsumerRetry(cfg.Kafka.RetryMax, cfg.Kafka.BackoffMin, cfg.Kafka.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func ProvideModelUpdateHandler(cfg *config.Config, svc *usecase.PredictionService, m domrepo.Metrics, l *applogger.Logger) *usecase.ModelUpdateHandler {
	return usecase.NewModelUpdateHandler(cfg.Kafka.Topic, svc, m, l)
}

// ProvideApp assembles the serving process. The model is loaded eagerly so a
// missing artifact is reported at startup; serving still starts and the
// health endpoint reports it.
func ProvideApp(
	cfg *config.Config,
	srv *xhttp.Server,
	svc *usecase.PredictionService,
	consumer *pkgkafka.Consumer,
	updates *usecase.ModelUpdateHandler,
	c cache.BytesCache,
	l *applogger.Logger,
) *server.App {
	if p, err := svc.Pipeline(); err != nil {
		l.Warn("no model loaded yet", applogger.Error(err))
	} else {
		l.Info("model loaded", applogger.String("model_id", p.ModelID))
	}

	opts := []server.Option{server.WithShutdownTimeout(cfg.Server.ShutdownTimeout)}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, updates))
	}
	if closer, ok := c.(io.Closer); ok {
		opts = append(opts, server.WithCloser("cache", closer))
	}
	return server.New(srv, l, opts...)
}
