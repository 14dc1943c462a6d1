package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Log         LogConfig        `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
	Artifacts   ArtifactsConfig  `yaml:"artifacts"`
	Source      SourceConfig     `yaml:"source"`
	Training    TrainingConfig   `yaml:"training"`
	Serving     ServingConfig    `yaml:"serving"`
	Redis       RedisConfig      `yaml:"redis"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Metrics     MetricsConfig    `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output string `yaml:"output" default:"stdout"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"5001" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
	BodyLimit       string        `yaml:"body_limit" default:"32M"`
	SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
}

// ArtifactsConfig locates everything a run writes. Relative paths resolve
// against the working directory.
type ArtifactsConfig struct {
	Dir            string `yaml:"dir" default:"artifacts" validate:"required"`
	UploadDir      string `yaml:"upload_dir" default:"uploads"`
	PredictionsDir string `yaml:"predictions_dir"`
}

type SourceConfig struct {
	Type          string `yaml:"type" default:"file" validate:"oneof=file clickhouse"`
	Path          string `yaml:"path" default:"data/crypto_prices.csv"`
	SeriesTable   string `yaml:"series_table" default:"cryptovol.price_history"`
	FeaturesTable string `yaml:"features_table" default:"cryptovol.features"`
	// WriteFeatures also appends the feature table to ClickHouse.
	WriteFeatures bool `yaml:"write_features"`
}

type TrainingConfig struct {
	TargetColumn string            `yaml:"target_column" default:"vol_7d_target_next" validate:"required"`
	DateColumn   string            `yaml:"date_column" default:"date" validate:"required"`
	TestSize     float64           `yaml:"test_size" default:"0.2" validate:"gt=0,lt=1"`
	Candidates   []CandidateConfig `yaml:"candidates" validate:"dive"`
}

// CandidateConfig mirrors one regressor spec; zero fields take the defaults of the kind.
type CandidateConfig struct {
	ID             string  `yaml:"id"`
	Kind           string  `yaml:"kind" validate:"oneof=random_forest gradient_boosting"`
	NEstimators    int     `yaml:"n_estimators" validate:"gte=0"`
	LearningRate   float64 `yaml:"learning_rate" validate:"gte=0"`
	MaxDepth       int     `yaml:"max_depth" validate:"gte=0"`
	MinSamplesLeaf int     `yaml:"min_samples_leaf" validate:"gte=0"`
	MaxFeatures    int     `yaml:"max_features" validate:"gte=0"`
	Lambda         float64 `yaml:"lambda" validate:"gte=0"`
	Seed           int64   `yaml:"seed"`
}

type ServingConfig struct {
	DefaultMaxRows int           `yaml:"default_max_rows" default:"100" validate:"gte=1"`
	PreviewRows    int           `yaml:"preview_rows" default:"20" validate:"gte=1"`
	CacheTTL       time.Duration `yaml:"cache_ttl" default:"10m"`
	CacheEntries   int           `yaml:"cache_entries" default:"1024"`
	RateLimit      struct {
		Enabled   bool    `yaml:"enabled" default:"true"`
		Burst     float64 `yaml:"burst" default:"20" validate:"gte=0"`
		PerSecond float64 `yaml:"per_second" default:"5" validate:"gte=0"`
	} `yaml:"rate_limit"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"cryptovol.model-runs"`
	GroupID      string        `yaml:"group_id" default:"cryptovol-serve"`
	Broadcast    bool          `yaml:"broadcast" default:"true"`
	Compression  string        `yaml:"compression" default:"zstd" validate:"oneof=none gzip snappy lz4 zstd"`
	RequiredAcks int           `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	MaxAttempts  int           `yaml:"max_attempts" default:"3"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
	RetryMax     int           `yaml:"retry_max" default:"3"`
	BackoffMin   time.Duration `yaml:"backoff_min" default:"100ms"`
	BackoffMax   time.Duration `yaml:"backoff_max" default:"5s"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"cryptovol"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled" default:"true"`
}

var validate = validator.New()

// Default returns a configuration made only of defaults.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}
	c.normalize()
	return &c, nil
}

// Load reads and parses a YAML configuration file. Defaults are applied
// first so that explicit zero values in the file win.
func Load(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// An empty path yields the defaults.
func LoadWithEnv(path string) (*Config, error) {
	c, err := load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("CRYPTOVOL_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("ARTIFACTS_DIR"); v != "" {
		c.Artifacts.Dir = v
		c.Artifacts.PredictionsDir = ""
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		c.Source.Path = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	c.normalize()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func load(path string) (*Config, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return c, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.normalize()
	return c, nil
}

func (c *Config) normalize() {
	if c.Artifacts.PredictionsDir == "" {
		c.Artifacts.PredictionsDir = filepath.Join(c.Artifacts.Dir, "predictions")
	}
	brokers := c.Kafka.Brokers[:0]
	for _, b := range c.Kafka.Brokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers
}

// Validate runs the struct tags and the rules spanning sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Source.Type == "file" && c.Source.Path == "" {
		return fmt.Errorf("source.path is required for file sources")
	}
	if (c.Source.Type == "clickhouse" || c.Source.WriteFeatures) && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when ClickHouse is used")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.Kafka.BackoffMax < c.Kafka.BackoffMin {
		return fmt.Errorf("kafka.backoff_max must not be below kafka.backoff_min")
	}
	return nil
}

// IsProduction reports whether the environment is production.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
