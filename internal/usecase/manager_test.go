package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/services/engine"
	"SignalForge/internal/services/model"
)

type nopMetrics struct{}

func (nopMetrics) RecordSignal(string, string)     {}
func (nopMetrics) RecordRetrain(string, string)    {}
func (nopMetrics) RecordError(string)              {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordLatency(string, float64)   {}

type memStore struct {
	mu       sync.Mutex
	signals  []*models.BarSignal
	decs     []*models.Decision
	versions []*models.ModelInfo
}

func (s *memStore) Init(context.Context) error { return nil }
func (s *memStore) StoreSignal(_ context.Context, _ domrepo.Key, sig *models.BarSignal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signals = append(s.signals, sig)
	return nil
}
func (s *memStore) StoreDecision(_ context.Context, _ domrepo.Key, d *models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decs = append(s.decs, d)
	return nil
}
func (s *memStore) StoreModelVersion(_ context.Context, _ domrepo.Key, m *models.ModelInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions = append(s.versions, m)
	return nil
}
func (s *memStore) QuerySignals(_ context.Context, _ domrepo.Key, _, _ time.Time, limit int) ([]*models.BarSignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.signals
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
func (s *memStore) Health(context.Context) error { return nil }
func (s *memStore) Close() error                 { return nil }

func testManagerConfig() ManagerConfig {
	return ManagerConfig{
		Engine: engine.Config{
			TrendPeriod:     5,
			TrendMultiplier: 3,
			ModelKind:       model.Ridge,
			RidgeAlpha:      0.1,
			Lookback:        3,
			TrainWindow:     30,
			RetrainInterval: 10,
		},
		RegimePeriod: 50,
		EMAFast:      5,
		EMASlow:      10,
		MomentumWin:  10,
		WeightTables: map[models.Regime]models.RegimeWeights{
			models.RegimeTrending: {"ml_trend": 0.5, "ema_cross": 0.3, "momentum": 0.2},
			models.RegimeRanging:  {"ml_trend": 0.4, "ema_cross": 0.3, "momentum": 0.3},
			models.RegimeVolatile: {"ml_trend": 0.6, "ema_cross": 0.2, "momentum": 0.2},
		},
		Threshold: 0.2,
	}
}

func candleAt(i int, close float64) models.Candle {
	return models.Candle{
		Timestamp: int64(i+1) * 60_000,
		Open:      close - 0.5,
		High:      close + 1,
		Low:       close - 1,
		Close:     close,
		Volume:    100,
	}
}

func TestManagerWarmupNotPersisted(t *testing.T) {
	store := &memStore{}
	mgr, err := NewEngineManager(testManagerConfig(), nil, store, nil, nopMetrics{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()
	key := domrepo.NewKey("BTCUSDT", "1m")
	ctx := context.Background()

	// period 5: bars 0..3 warm up
	for i := 0; i < 4; i++ {
		agg, err := mgr.ProcessSync(ctx, key, candleAt(i, 100+float64(i)))
		if err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
		if !agg.Bar.WarmingUp {
			t.Fatalf("bar %d not marked warming up", i)
		}
	}
	if len(store.signals) != 0 {
		t.Fatalf("warm-up bars persisted: %d", len(store.signals))
	}

	agg, err := mgr.ProcessSync(ctx, key, candleAt(4, 104))
	if err != nil {
		t.Fatal(err)
	}
	if agg.Bar.WarmingUp {
		t.Fatal("bar 4 still warming up")
	}
	if len(store.signals) != 1 {
		t.Fatalf("first ready bar not persisted: %d stored", len(store.signals))
	}
}

func TestManagerDecisionAfterRegimeWindow(t *testing.T) {
	cfg := testManagerConfig()
	store := &memStore{}
	mgr, err := NewEngineManager(cfg, nil, store, nil, nopMetrics{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()
	key := domrepo.NewKey("ETHUSDT", "1m")
	ctx := context.Background()

	var last *models.AggregateSignals
	for i := 0; i < cfg.RegimePeriod+10; i++ {
		last, err = mgr.ProcessSync(ctx, key, candleAt(i, 100+0.1*float64(i)))
		if err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
		if i < cfg.RegimePeriod-1 && last.Decision != nil {
			t.Fatalf("decision before regime window full at bar %d", i)
		}
	}
	if last.Decision == nil {
		t.Fatal("no decision after regime window filled")
	}
	if last.Decision.Regime == "" || last.Decision.Final == "" {
		t.Fatalf("incomplete decision: %+v", last.Decision)
	}
	if last.Decision.Confidence < 0 || last.Decision.Confidence > 1 {
		t.Fatalf("confidence %v out of range", last.Decision.Confidence)
	}
	if len(store.decs) == 0 {
		t.Fatal("decisions not persisted")
	}
}

func TestManagerModelVersionAudit(t *testing.T) {
	cfg := testManagerConfig()
	store := &memStore{}
	mgr, err := NewEngineManager(cfg, nil, store, nil, nopMetrics{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()
	key := domrepo.NewKey("BTCUSDT", "1m")
	ctx := context.Background()

	// enough bars to fill the training window and retrain once
	n := cfg.Engine.TrendPeriod - 1 + cfg.Engine.Lookback + cfg.Engine.TrainWindow + 5
	for i := 0; i < n; i++ {
		if _, err := mgr.ProcessSync(ctx, key, candleAt(i, 100+math.Sin(float64(i)/5))); err != nil {
			t.Fatalf("bar %d: %v", i, err)
		}
	}
	if len(store.versions) == 0 {
		t.Fatal("model version never audited")
	}
	if store.versions[0].Version != 1 {
		t.Fatalf("first audited version = %d, want 1", store.versions[0].Version)
	}
	info, ok := mgr.ModelInfo(key)
	if !ok || info == nil {
		t.Fatal("model info unavailable after retrain")
	}
	if info.Dim != cfg.Engine.Lookback+3 {
		t.Fatalf("model dim %d, want %d", info.Dim, cfg.Engine.Lookback+3)
	}
}

func TestManagerRejectsOutOfOrder(t *testing.T) {
	mgr, err := NewEngineManager(testManagerConfig(), nil, nil, nil, nopMetrics{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()
	key := domrepo.NewKey("BTCUSDT", "1m")
	ctx := context.Background()

	if _, err := mgr.ProcessSync(ctx, key, candleAt(5, 100)); err != nil {
		t.Fatal(err)
	}
	if _, err := mgr.ProcessSync(ctx, key, candleAt(3, 100)); err == nil {
		t.Fatal("out-of-order candle accepted")
	}
}

func TestManagerWorkerOutlivesCallerContext(t *testing.T) {
	mgr, err := NewEngineManager(testManagerConfig(), nil, nil, nil, nopMetrics{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()
	key := domrepo.NewKey("BTCUSDT", "1m")

	// the first caller's context spawns the worker, then dies
	firstCtx, cancel := context.WithCancel(context.Background())
	if err := mgr.Process(firstCtx, &models.CandleEvent{
		Instrument: key.Instrument,
		Timeframe:  string(key.Timeframe),
		Candle:     candleAt(0, 100),
	}); err != nil {
		t.Fatal(err)
	}
	cancel()

	want := candleAt(1, 101)
	if err := mgr.Process(context.Background(), &models.CandleEvent{
		Instrument: key.Instrument,
		Timeframe:  string(key.Timeframe),
		Candle:     want,
	}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if agg, ok := mgr.Snapshot(key); ok && agg.Bar != nil && agg.Bar.Timestamp == want.Timestamp {
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("worker stopped handling candles after its spawning context was cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManagerKeysIsolated(t *testing.T) {
	mgr, err := NewEngineManager(testManagerConfig(), nil, nil, nil, nopMetrics{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer mgr.Stop()
	ctx := context.Background()
	a := domrepo.NewKey("BTCUSDT", "1m")
	b := domrepo.NewKey("ETHUSDT", "1m")

	if _, err := mgr.ProcessSync(ctx, a, candleAt(10, 100)); err != nil {
		t.Fatal(err)
	}
	// an older timestamp on a different key is fine
	if _, err := mgr.ProcessSync(ctx, b, candleAt(2, 100)); err != nil {
		t.Fatalf("cross-key interference: %v", err)
	}
	if got := len(mgr.Keys()); got != 2 {
		t.Fatalf("keys = %d, want 2", got)
	}
}
