package repository

import (
	"context"
	"time"

	"SignalForge/internal/domain/models"
)

// MarketStream is a live candle feed (WebSocket adapter or replay source).
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.CandleEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalPublisher pushes emitted signals and decisions downstream (Kafka).
type SignalPublisher interface {
	PublishSignal(ctx context.Context, key Key, s *models.BarSignal) error
	PublishDecision(ctx context.Context, key Key, d *models.Decision) error
	Close() error
}

// SignalStore persists emitted signals and model-version audit rows. It never
// stores raw historical bars; bar persistence is the caller's concern.
type SignalStore interface {
	Init(ctx context.Context) error
	StoreSignal(ctx context.Context, key Key, s *models.BarSignal) error
	StoreDecision(ctx context.Context, key Key, d *models.Decision) error
	StoreModelVersion(ctx context.Context, key Key, m *models.ModelInfo) error
	QuerySignals(ctx context.Context, key Key, from, to time.Time, limit int) ([]*models.BarSignal, error)
	Health(ctx context.Context) error
	Close() error
}

// SignalCache holds the most recent per-key outputs for cheap API reads.
type SignalCache interface {
	SetLatest(ctx context.Context, key Key, agg *models.AggregateSignals) error
	GetLatest(ctx context.Context, key Key) (*models.AggregateSignals, bool, error)
	Close() error
}

// Metrics is the domain-facing metrics recorder.
type Metrics interface {
	RecordSignal(instrument string, label string)
	RecordRetrain(instrument string, outcome string)
	RecordError(kind string)
	RecordLastPrice(instrument string, price float64)
	RecordLatency(op string, seconds float64)
}
