package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	pkgch "SignalForge/pkg/clickhouse"
	applogger "SignalForge/pkg/logger"
)

// CHSignalStore persists emitted signals, decisions and model-version audit
// rows in ClickHouse. Raw bars are never stored here; the engine holds only
// rolling windows.
type CHSignalStore struct {
	db *sql.DB
	l  *applogger.Logger
}

func NewCHSignalStore(ch *pkgch.Client) *CHSignalStore {
	return &CHSignalStore{db: ch.DB()}
}

// SetLogger injects a structured logger.
func (s *CHSignalStore) SetLogger(l *applogger.Logger) { s.l = l }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sf_signals (
        ts DateTime64(3),
        instrument LowCardinality(String),
        tf LowCardinality(String),
        trend_line Float64,
        direction LowCardinality(String),
        trend_offset Float64,
        buy_signal UInt8,
        sell_signal UInt8,
        stop_loss Float64,
        take_profit Float64,
        label LowCardinality(String),
        strength Float64
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMMDD(ts)
    ORDER BY (instrument, tf, ts)`,
	`CREATE TABLE IF NOT EXISTS sf_decisions (
        ts DateTime64(3),
        instrument LowCardinality(String),
        tf LowCardinality(String),
        regime LowCardinality(String),
        final_signal LowCardinality(String),
        confidence Float64
    ) ENGINE = MergeTree()
    PARTITION BY toYYYYMMDD(ts)
    ORDER BY (instrument, tf, ts)`,
	`CREATE TABLE IF NOT EXISTS sf_model_versions (
        trained_at DateTime64(3),
        instrument LowCardinality(String),
        tf LowCardinality(String),
        version UInt64,
        dim UInt32,
        samples UInt32
    ) ENGINE = MergeTree()
    ORDER BY (instrument, tf, version)`,
}

// Init creates the output tables (idempotent).
func (s *CHSignalStore) Init(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("signal store init: %w", err)
		}
	}
	return nil
}

func (s *CHSignalStore) StoreSignal(ctx context.Context, key domrepo.Key, sig *models.BarSignal) error {
	const q = `INSERT INTO sf_signals
        (ts, instrument, tf, trend_line, direction, trend_offset, buy_signal, sell_signal, stop_loss, take_profit, label, strength)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		time.UnixMilli(sig.Timestamp),
		key.Instrument,
		string(key.Timeframe),
		sig.TrendLine,
		sig.Direction.String(),
		sig.TrendOffset,
		boolToUInt8(sig.BuySignal),
		boolToUInt8(sig.SellSignal),
		sig.StopLoss,
		sig.TakeProfit,
		string(sig.Signal.Label),
		sig.Signal.Strength,
	)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_signal error",
				applogger.String("instrument", key.Instrument),
				applogger.String("tf", string(key.Timeframe)),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store signal: %w", err)
	}
	return nil
}

func (s *CHSignalStore) StoreDecision(ctx context.Context, key domrepo.Key, d *models.Decision) error {
	const q = `INSERT INTO sf_decisions
        (ts, instrument, tf, regime, final_signal, confidence)
        VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		time.UnixMilli(d.Timestamp),
		key.Instrument,
		string(key.Timeframe),
		string(d.Regime),
		string(d.Final),
		d.Confidence,
	)
	if err != nil {
		return fmt.Errorf("store decision: %w", err)
	}
	return nil
}

func (s *CHSignalStore) StoreModelVersion(ctx context.Context, key domrepo.Key, m *models.ModelInfo) error {
	const q = `INSERT INTO sf_model_versions
        (trained_at, instrument, tf, version, dim, samples)
        VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, q,
		m.TrainedAt,
		key.Instrument,
		string(key.Timeframe),
		m.Version,
		uint32(m.Dim),
		uint32(m.Samples),
	)
	if err != nil {
		return fmt.Errorf("store model version: %w", err)
	}
	return nil
}

func (s *CHSignalStore) QuerySignals(ctx context.Context, key domrepo.Key, from, to time.Time, limit int) ([]*models.BarSignal, error) {
	start := time.Now()
	const q = `
        SELECT ts, trend_line, direction, trend_offset, buy_signal, sell_signal, stop_loss, take_profit, label, strength
        FROM sf_signals
        WHERE instrument = ? AND tf = ? AND ts >= ? AND ts <= ?
        ORDER BY ts DESC
        LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, key.Instrument, string(key.Timeframe), from, to, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse query_signals error",
				applogger.String("instrument", key.Instrument),
				applogger.String("tf", string(key.Timeframe)),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	out := make([]*models.BarSignal, 0, limit)
	for rows.Next() {
		var (
			ts         time.Time
			dir, label string
			buy, sell  uint8
			sig        models.BarSignal
		)
		if err := rows.Scan(&ts, &sig.TrendLine, &dir, &sig.TrendOffset, &buy, &sell,
			&sig.StopLoss, &sig.TakeProfit, &label, &sig.Signal.Strength); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Signal.Label = models.SignalLabel(label)
		sig.Instrument = key.Instrument
		sig.Timeframe = string(key.Timeframe)
		sig.Timestamp = ts.UnixMilli()
		sig.Direction = models.TrendDirectionFromString(dir)
		sig.BuySignal = buy != 0
		sig.SellSignal = sell != 0
		out = append(out, &sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if s.l != nil {
		s.l.Debug("clickhouse query_signals ok",
			applogger.String("instrument", key.Instrument),
			applogger.String("tf", string(key.Timeframe)),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func (s *CHSignalStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *CHSignalStore) Close() error {
	return nil // pool owned by pkg client
}

func boolToUInt8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

var _ domrepo.SignalStore = (*CHSignalStore)(nil)
