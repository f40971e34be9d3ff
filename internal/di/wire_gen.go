// Code generated by Wire. DO NOT EDIT.

//go:generate go run -mod=mod github.com/google/wire/cmd/wire
//go:build !wireinject
// +build !wireinject

package di

import (
	"SignalForge/pkg/config"
	"SignalForge/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	producer, err := ProvideKafkaProducer(cfg)
	if err != nil {
		return nil, err
	}
	signalPublisher := ProvideSignalPublisher(producer, cfg)
	client, err := ProvideClickHouseClient(cfg)
	if err != nil {
		return nil, err
	}
	logger, err := ProvideLogger(cfg, producer)
	if err != nil {
		return nil, err
	}
	signalStore := ProvideSignalStore(client, logger)
	signalCache, err := ProvideSignalCache(cfg)
	if err != nil {
		return nil, err
	}
	metrics := ProvideMetrics()
	engineManager, err := ProvideEngineManager(cfg, signalPublisher, signalStore, signalCache, metrics, logger)
	if err != nil {
		return nil, err
	}
	marketStream := ProvideMarketStream(cfg, logger)
	candleCollector := ProvideCandleCollector(marketStream, engineManager, metrics, cfg)
	consumer, err := ProvideKafkaConsumer(cfg, metrics)
	if err != nil {
		return nil, err
	}
	kafkaCandlesHandler := ProvideKafkaCandlesHandler(engineManager, metrics, cfg)
	signalsUseCase := ProvideSignalsUseCase(engineManager, signalStore, signalCache)
	app := ProvideApp(cfg, engineManager, candleCollector, consumer, kafkaCandlesHandler, client, signalStore, signalCache, signalPublisher, signalsUseCase, logger)
	return app, nil
}
