//go:build wireinject
// +build wireinject

package di

import (
	"SignalForge/pkg/config"
	"SignalForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideSignalStore,
		ProvideSignalPublisher,
		ProvideSignalCache,
		ProvideMarketStream,

		// Use cases
		ProvideEngineManager,
		ProvideKafkaCandlesHandler,
		ProvideCandleCollector,
		ProvideSignalsUseCase,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
