package di

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/domain/repository"
	mid "SignalForge/internal/middleware"
	internalrepo "SignalForge/internal/repository"
	"SignalForge/internal/service/feed"
	"SignalForge/internal/services/engine"
	"SignalForge/internal/services/model"
	"SignalForge/internal/usecase"
	pkgcache "SignalForge/pkg/cache"
	pkgch "SignalForge/pkg/clickhouse"
	"SignalForge/pkg/config"
	pkgkafka "SignalForge/pkg/kafka"
	"SignalForge/pkg/logger"
	"SignalForge/pkg/metrics"
	"SignalForge/pkg/server"
)

// ProvideLogger creates the application logger. When a Kafka logs topic is
// configured, error logs are aggregated and shipped there.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	format := "json"
	if cfg.Environment == "dev" {
		format = "console"
	}
	l, err := logger.New(&logger.Config{Level: "info", Format: format, Output: "stdout"})
	if err != nil {
		return nil, err
	}
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      kafkaLogPublisher{producer},
		})
	}
	return l, nil
}

// kafkaLogPublisher adapts the Kafka producer to the log collector's sink.
type kafkaLogPublisher struct {
	producer *pkgkafka.Producer
}

func (p kafkaLogPublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

// ProvideClickHouseClient creates a ClickHouse client. Nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the ClickHouse-backed signal store. Nil when
// ClickHouse is disabled.
func ProvideSignalStore(chClient *pkgch.Client, l *logger.Logger) repository.SignalStore {
	if chClient == nil {
		return nil
	}
	store := internalrepo.NewCHSignalStore(chClient)
	store.SetLogger(l)
	return store
}

// ProvideKafkaProducer creates a Kafka producer. Nil when no output topics
// are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if cfg.Kafka.SignalTopic == "" && cfg.Kafka.DecisionTopic == "" && cfg.Kafka.LogsTopic == "" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher creates the Kafka-backed signal publisher.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.SignalTopic, cfg.Kafka.DecisionTopic)
}

// ProvideSignalCache creates the latest-signal cache: Redis-backed when
// enabled, in-process otherwise.
func ProvideSignalCache(cfg *config.Config) (repository.SignalCache, error) {
	var svc pkgcache.Service
	if cfg.Cache.Redis.Enabled {
		rc, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisHost(cfg.Cache.Redis.Host),
			pkgcache.WithRedisPort(cfg.Cache.Redis.Port),
			pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
			pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
			pkgcache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		svc = pkgcache.NewLayeredCache(rc)
	} else {
		svc = pkgcache.NewMemoryCache()
	}
	return internalrepo.NewCacheSignalCache(svc, cfg.Cache.LatestTTL), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideEngineManager builds the per-key engine workers from config.
func ProvideEngineManager(
	cfg *config.Config,
	pub repository.SignalPublisher,
	store repository.SignalStore,
	cache repository.SignalCache,
	m repository.Metrics,
	l *logger.Logger,
) (*usecase.EngineManager, error) {
	kind, err := model.KindFromString(cfg.Engine.ModelType)
	if err != nil {
		return nil, err
	}
	tables := make(map[models.Regime]models.RegimeWeights, len(cfg.Ensemble.Weights))
	for rg, w := range cfg.Ensemble.Weights {
		tables[models.Regime(rg)] = models.RegimeWeights(w)
	}
	mc := usecase.ManagerConfig{
		Engine: engine.Config{
			TrendPeriod:     cfg.Engine.TrendPeriod,
			TrendMultiplier: cfg.Engine.TrendMultiplier,
			ModelKind:       kind,
			RidgeAlpha:      cfg.Engine.RidgeAlpha,
			Lookback:        cfg.Engine.Lookback,
			TrainWindow:     cfg.Engine.TrainWindow,
			RetrainInterval: cfg.Engine.RetrainInterval,
			AsyncRetrain:    cfg.Engine.AsyncRetrain,
		},
		RegimePeriod: cfg.Regime.Window,
		EMAFast:      cfg.Ensemble.EMAFast,
		EMASlow:      cfg.Ensemble.EMASlow,
		MomentumWin:  cfg.Ensemble.MomentumWin,
		WeightTables: tables,
		Threshold:    cfg.Ensemble.Threshold,
		QueueSize:    cfg.Engine.QueueSize,
	}
	return usecase.NewEngineManager(mc, pub, store, cache, m, l)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML. Nil
// when no candles topic is configured.
func ProvideKafkaConsumer(cfg *config.Config, m repository.Metrics) (*pkgkafka.Consumer, error) {
	if cfg.Kafka.CandlesTopic == "" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LatencyHook{
		Observe: func(topic string, d time.Duration, err error) {
			m.RecordLatency("kafka_handle_seconds", d.Seconds())
			if err != nil {
				m.RecordError("kafka_handler")
			}
		},
	})
	return consumer, nil
}

// ProvideKafkaCandlesHandler registers the handler for the candles topic.
func ProvideKafkaCandlesHandler(mgr *usecase.EngineManager, m repository.Metrics, cfg *config.Config) *usecase.KafkaCandlesHandler {
	if cfg.Kafka.CandlesTopic == "" {
		return nil
	}
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.CandlesTopic, mgr, m)
}

// ProvideMarketStream creates the WebSocket candle feed. Nil when no
// instruments are configured.
func ProvideMarketStream(cfg *config.Config, l *logger.Logger) repository.MarketStream {
	if len(cfg.Feed.Instruments) == 0 {
		return nil
	}
	reconnect := cfg.Feed.ReconnectDelay
	if reconnect <= 0 {
		reconnect = 3 * time.Second
	}
	ping := cfg.Feed.PingInterval
	if ping <= 0 {
		ping = 15 * time.Second
	}
	return feed.New(
		cfg.Feed.APIKey,
		cfg.Feed.WebSocketURL,
		cfg.Feed.Instruments,
		cfg.Feed.Timeframe,
		reconnect,
		ping,
		l,
	)
}

// ProvideCandleCollector wires the feed through the validation pipeline into
// the manager.
func ProvideCandleCollector(
	stream repository.MarketStream,
	mgr *usecase.EngineManager,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.CandleCollector {
	if stream == nil {
		return nil
	}
	opts := []mid.PipelineOption{}
	if cfg.Feed.MaxRPS > 0 {
		opts = append(opts, mid.WithMaxRPS(cfg.Feed.MaxRPS))
	}
	if cfg.Feed.BufferSize > 0 {
		opts = append(opts, mid.WithBufferSize(cfg.Feed.BufferSize))
	}
	pipe := mid.NewCandlePipeline(mgr, m, opts...)
	return usecase.NewCandleCollector(stream, mgr, m, pipe)
}

// ProvideSignalsUseCase creates the read-side usecase for the HTTP API.
func ProvideSignalsUseCase(mgr *usecase.EngineManager, store repository.SignalStore, cache repository.SignalCache) *usecase.SignalsUseCase {
	return usecase.NewSignalsUseCase(mgr, store, cache)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	mgr *usecase.EngineManager,
	collector *usecase.CandleCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaCandlesHandler,
	chClient *pkgch.Client,
	store repository.SignalStore,
	cache repository.SignalCache,
	pub repository.SignalPublisher,
	signals *usecase.SignalsUseCase,
	l *logger.Logger,
) *server.App {
	var handler pkgkafka.MessageHandler
	if kh != nil {
		handler = kh
	}
	return server.New(cfg, mgr, collector, consumer, handler, chClient, store, cache, pub, signals, l)
}
