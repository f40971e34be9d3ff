package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
environment: test
engine:
  trend_period: 10
  trend_multiplier: 2.0
  model_type: linreg
  lookback: 5
  train_window: 64
  retrain_interval: 16
ensemble:
  threshold: 0.3
  weights:
    trend_up:
      trend: 1.0
kafka:
  candles_topic: candles
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Engine.ModelType != "linreg" {
		t.Errorf("ModelType = %q, want linreg", c.Engine.ModelType)
	}
	if c.Engine.TrendPeriod != 10 {
		t.Errorf("TrendPeriod = %d, want 10", c.Engine.TrendPeriod)
	}
	if c.Ensemble.Weights["trend_up"]["trend"] != 1.0 {
		t.Errorf("weights not parsed: %v", c.Ensemble.Weights)
	}
}

func TestLoadRejectsBadModelType(t *testing.T) {
	bad := validYAML + "\n"
	c, err := Load(writeConfig(t, bad))
	if err != nil || c == nil {
		t.Fatalf("baseline should load, got %v", err)
	}
	c.Engine.ModelType = "forest"
	if err := c.Validate(); err == nil {
		t.Error("Validate accepted unknown model_type")
	}
}

func TestValidateRequiresCandleSource(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	c.Kafka.CandlesTopic = ""
	c.Feed.Instruments = nil
	if err := c.Validate(); err == nil {
		t.Error("Validate accepted config with no candle source")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("INSTRUMENTS", "BTCUSD,ETHUSD")
	t.Setenv("REDIS_PORT", "6380")

	c, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if len(c.Kafka.Brokers) != 2 || c.Kafka.Brokers[1] != "b2:9092" {
		t.Errorf("brokers = %v", c.Kafka.Brokers)
	}
	if len(c.Feed.Instruments) != 2 || c.Feed.Instruments[0] != "BTCUSD" {
		t.Errorf("instruments = %v", c.Feed.Instruments)
	}
	if c.Cache.Redis.Port != 6380 {
		t.Errorf("redis port = %d, want 6380", c.Cache.Redis.Port)
	}
}

func TestEnvOverrideIgnoresInvalidPort(t *testing.T) {
	t.Setenv("REDIS_PORT", "not-a-port")
	c, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatal(err)
	}
	if c.Cache.Redis.Port != 0 {
		t.Errorf("invalid REDIS_PORT should keep the file value, got %d", c.Cache.Redis.Port)
	}
}
