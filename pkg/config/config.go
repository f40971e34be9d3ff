package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"SignalForge/pkg/util"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EngineConfig tunes the per-instrument signal engine. ModelType picks the
// predictor family, linreg or ridge.
type EngineConfig struct {
	TrendPeriod     int     `yaml:"trend_period"`
	TrendMultiplier float64 `yaml:"trend_multiplier"`
	ModelType       string  `yaml:"model_type"`
	RidgeAlpha      float64 `yaml:"ridge_alpha"`
	Lookback        int     `yaml:"lookback"`
	TrainWindow     int     `yaml:"train_window"`
	RetrainInterval int     `yaml:"retrain_interval"`
	AsyncRetrain    bool    `yaml:"async_retrain"`
	QueueSize       int     `yaml:"queue_size"`
}

type RegimeConfig struct {
	Window int `yaml:"window"`
}

// EnsembleConfig holds the voting setup. Weights map regime name to
// sub-signal name to weight.
type EnsembleConfig struct {
	Threshold   float64                       `yaml:"threshold"`
	EMAFast     int                           `yaml:"ema_fast"`
	EMASlow     int                           `yaml:"ema_slow"`
	MomentumWin int                           `yaml:"momentum_window"`
	Weights     map[string]map[string]float64 `yaml:"weights"`
}

type KafkaProducerConfig struct {
	MaxAttempts  int           `yaml:"max_attempts"`
	Linger       time.Duration `yaml:"linger"`
	BatchBytes   int           `yaml:"batch_bytes"`
	BatchSize    int           `yaml:"batch_size"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	Async        bool          `yaml:"async"`
}

type KafkaConsumerConfig struct {
	GroupID    string        `yaml:"group_id"`
	Workers    int           `yaml:"workers"`
	BufferSize int           `yaml:"buffer_size"`
	RetryMax   int           `yaml:"retry_max"`
	BackoffMin time.Duration `yaml:"backoff_min"`
	BackoffMax time.Duration `yaml:"backoff_max"`
	DLQTopic   string        `yaml:"dlq_topic"`
	MinBytes   int           `yaml:"min_bytes"`
	MaxBytes   int           `yaml:"max_bytes"`
}

type KafkaConfig struct {
	Brokers       []string            `yaml:"brokers"`
	CandlesTopic  string              `yaml:"candles_topic"`
	SignalTopic   string              `yaml:"signal_topic"`
	DecisionTopic string              `yaml:"decision_topic"`
	LogsTopic     string              `yaml:"logs_topic"`
	RequiredAcks  int                 `yaml:"required_acks"`
	Compression   string              `yaml:"compression"`
	Producer      KafkaProducerConfig `yaml:"producer"`
	Consumer      KafkaConsumerConfig `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Database         string        `yaml:"database"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
}

type FeedConfig struct {
	APIKey         string        `yaml:"api_key"`
	WebSocketURL   string        `yaml:"websocket_url"`
	Instruments    []string      `yaml:"instruments"`
	Timeframe      string        `yaml:"timeframe"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	MaxRPS         float64       `yaml:"max_rps"`
	BufferSize     int           `yaml:"buffer_size"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type CacheConfig struct {
	LatestTTL time.Duration `yaml:"latest_ttl"`
	Redis     RedisConfig   `yaml:"redis"`
}

type Config struct {
	Environment string           `yaml:"environment"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Engine      EngineConfig     `yaml:"engine"`
	Regime      RegimeConfig     `yaml:"regime"`
	Ensemble    EnsembleConfig   `yaml:"ensemble"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Feed        FeedConfig       `yaml:"feed"`
	Cache       CacheConfig      `yaml:"cache"`
}

// Load parses the YAML file at path and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return c, nil
}

// LoadWithEnv loads the file and then lets a small set of environment
// variables win over it, so secrets and endpoints never have to live in
// the YAML.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.applyEnv()
	return c, nil
}

func (c *Config) applyEnv() {
	setString(&c.Feed.APIKey, "FEED_API_KEY")
	setList(&c.Feed.Instruments, "INSTRUMENTS")
	setList(&c.Kafka.Brokers, "KAFKA_BROKERS")
	setString(&c.Kafka.CandlesTopic, "KAFKA_CANDLES_TOPIC")
	setString(&c.ClickHouse.Host, "CLICKHOUSE_HOST")
	c.ClickHouse.Port = util.ParseIntDefault(os.Getenv("CLICKHOUSE_PORT"), c.ClickHouse.Port)
	setString(&c.Cache.Redis.Host, "REDIS_HOST")
	c.Cache.Redis.Port = util.ParseIntDefault(os.Getenv("REDIS_PORT"), c.Cache.Redis.Port)
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = strings.Split(v, ",")
	}
}

// Validate rejects configurations the engine cannot start with.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment must be set")
	}
	if c.Engine.TrendPeriod < 2 {
		return fmt.Errorf("engine.trend_period %d is below the minimum of 2", c.Engine.TrendPeriod)
	}
	if c.Engine.TrendMultiplier <= 0 {
		return fmt.Errorf("engine.trend_multiplier must be positive")
	}
	switch c.Engine.ModelType {
	case "linreg", "ridge":
	default:
		return fmt.Errorf("unknown engine.model_type %q, want linreg or ridge", c.Engine.ModelType)
	}
	if c.Engine.ModelType == "ridge" && c.Engine.RidgeAlpha < 0 {
		return fmt.Errorf("engine.ridge_alpha cannot be negative")
	}
	if c.Engine.Lookback <= 0 || c.Engine.TrainWindow <= 0 || c.Engine.RetrainInterval <= 0 {
		return fmt.Errorf("engine lookback, train_window and retrain_interval must all be positive")
	}
	if len(c.Feed.Instruments) == 0 && c.Kafka.CandlesTopic == "" {
		return fmt.Errorf("no candle source: set feed.instruments or kafka.candles_topic")
	}
	if len(c.Ensemble.Weights) == 0 {
		return fmt.Errorf("ensemble.weights must name at least one regime")
	}
	return nil
}
