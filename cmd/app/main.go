package main

import (
	"flag"
	"log"
	"os"

	"SignalForge/internal/di"
	"SignalForge/pkg/config"
)

func run() error {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		return err
	}
	log.Printf("env=%s model=%s trend_period=%d", cfg.Environment, cfg.Engine.ModelType, cfg.Engine.TrendPeriod)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return err
	}

	if cfg.ClickHouse.Enabled {
		log.Printf("clickhouse: connected, db=%s", cfg.ClickHouse.Database)
	}
	if cfg.Kafka.CandlesTopic != "" {
		log.Printf("kafka: brokers=%v candles_topic=%s", cfg.Kafka.Brokers, cfg.Kafka.CandlesTopic)
	}
	if len(cfg.Feed.Instruments) > 0 {
		log.Printf("feed: instruments=%v tf=%s", cfg.Feed.Instruments, cfg.Feed.Timeframe)
	}

	return app.Run()
}

func main() {
	if err := run(); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}
