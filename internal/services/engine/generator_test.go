package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/services/model"
)

func testKey() domrepo.Key {
	return domrepo.Key{Instrument: "BTCUSDT", Timeframe: domrepo.TF1m}
}

func testConfig() Config {
	return Config{
		TrendPeriod:     10,
		TrendMultiplier: 3.0,
		ModelKind:       model.Ridge,
		RidgeAlpha:      0.1,
		Lookback:        5,
		TrainWindow:     50,
		RetrainInterval: 20,
	}
}

func bar(ts int64, price, spread float64) models.Candle {
	return models.Candle{
		Timestamp: ts,
		Open:      price,
		High:      price + spread,
		Low:       price - spread,
		Close:     price,
		Volume:    1000,
	}
}

func TestOutOfOrderRejected(t *testing.T) {
	g, err := New(testKey(), testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()
	if _, err := g.Update(ctx, bar(100, 50, 0.5)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = g.Update(ctx, bar(99, 50, 0.5))
	if !errors.Is(err, models.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder, got %v", err)
	}
	if !errors.Is(err, models.ErrInvalidValue) {
		t.Fatalf("ErrOutOfOrder must wrap ErrInvalidValue, got %v", err)
	}
	// duplicate timestamps are regressions too
	if _, err := g.Update(ctx, bar(100, 50, 0.5)); !errors.Is(err, models.ErrOutOfOrder) {
		t.Fatalf("expected ErrOutOfOrder on duplicate, got %v", err)
	}
}

func TestNonFiniteCandleRejected(t *testing.T) {
	g, _ := New(testKey(), testConfig())
	c := bar(1, 50, 0.5)
	c.Close = math.Inf(1)
	if _, err := g.Update(context.Background(), c); !errors.Is(err, models.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestWarmupEmitsNeutralDefaults(t *testing.T) {
	cfg := testConfig()
	g, _ := New(testKey(), cfg)
	ctx := context.Background()
	for i := 0; i < cfg.TrendPeriod-1; i++ {
		s, err := g.Update(ctx, bar(int64(i), 50, 0.5))
		if err != nil {
			t.Fatalf("warm-up bar %d must not fail: %v", i, err)
		}
		if !s.WarmingUp {
			t.Fatalf("bar %d: expected WarmingUp", i)
		}
		if s.BuySignal || s.SellSignal {
			t.Fatalf("bar %d: no trade signals during warm-up", i)
		}
		if s.Signal.Label != models.Neutral {
			t.Fatalf("bar %d: expected Neutral, got %v", i, s.Signal.Label)
		}
		if !math.IsNaN(s.StopLoss) || !math.IsNaN(s.TakeProfit) {
			t.Fatalf("bar %d: expected NaN stop/target", i)
		}
	}
}

func TestRisingSeriesBuyOnceThenHold(t *testing.T) {
	cfg := testConfig()
	g, _ := New(testKey(), cfg)
	ctx := context.Background()

	price := 100.0
	buys := 0
	firstReadyBar := -1
	for i := 0; i < 500; i++ {
		s, err := g.Update(ctx, bar(int64(i), price, 0.05))
		if err != nil {
			t.Fatalf("bar %d: unexpected error: %v", i, err)
		}
		price += 0.1
		if s.WarmingUp {
			continue
		}
		if firstReadyBar == -1 {
			firstReadyBar = i
			if !s.BuySignal {
				t.Fatalf("expected buy at first post-warm-up bar %d", i)
			}
			if s.Signal.Strength != 1 {
				t.Fatalf("flip entry must carry full strength, got %v", s.Signal.Strength)
			}
		}
		if s.Direction != models.TrendUp {
			t.Fatalf("bar %d: expected Up, got %v", i, s.Direction)
		}
		if s.BuySignal {
			buys++
		}
		if s.SellSignal {
			t.Fatalf("bar %d: unexpected sell in rising series", i)
		}
	}
	if buys != 1 {
		t.Fatalf("expected exactly one buy until a flip, got %d", buys)
	}
}

func TestExactlyOneRetrainWhenBufferFills(t *testing.T) {
	cfg := testConfig()
	cfg.TrainWindow = 30
	cfg.RetrainInterval = 100
	g, _ := New(testKey(), cfg)
	ctx := context.Background()

	// first training sample lands lookback+1 bars after warm-up ends
	fillBar := cfg.TrendPeriod - 1 + cfg.Lookback + cfg.TrainWindow

	price := 100.0
	for i := 0; i <= fillBar+5; i++ {
		if _, err := g.Update(ctx, bar(int64(i), price, 0.3)); err != nil {
			t.Fatalf("bar %d: unexpected error: %v", i, err)
		}
		price += 0.05

		pub := g.Model().Published()
		switch {
		case i < fillBar:
			if pub != nil {
				t.Fatalf("bar %d: premature retrain (version %d)", i, pub.Version)
			}
		default:
			if pub == nil || pub.Version != 1 {
				t.Fatalf("bar %d: expected exactly one retrain, got %+v", i, pub)
			}
		}
	}
	if g.Model().Len() != cfg.TrainWindow {
		t.Fatalf("expected full buffer, got %d", g.Model().Len())
	}
}

func TestPredictBeforeFirstRetrainDegradesToBaseTrend(t *testing.T) {
	cfg := testConfig()
	g, _ := New(testKey(), cfg)
	ctx := context.Background()
	price := 100.0
	for i := 0; i < cfg.TrendPeriod+cfg.Lookback+2; i++ {
		s, err := g.Update(ctx, bar(int64(i), price, 0.3))
		if err != nil {
			t.Fatalf("bar %d: unexpected error: %v", i, err)
		}
		price += 0.05
		if !s.WarmingUp && s.TrendOffset != 0 {
			t.Fatalf("bar %d: expected zero offset before first retrain, got %v", i, s.TrendOffset)
		}
	}
}

func TestConstantPriceDoesNotDiverge(t *testing.T) {
	cfg := testConfig()
	g, _ := New(testKey(), cfg)
	ctx := context.Background()

	bars := cfg.TrendPeriod + cfg.Lookback + cfg.TrainWindow + 50
	var last *models.BarSignal
	for i := 0; i < bars; i++ {
		s, err := g.Update(ctx, bar(int64(i), 100, 0))
		if err != nil {
			t.Fatalf("bar %d: constant input must never fail: %v", i, err)
		}
		last = s
	}
	if g.Model().Published() == nil {
		t.Fatalf("expected a trained model")
	}
	if math.Abs(last.TrendOffset) > 1e-9 {
		t.Fatalf("expected ~0 trend offset on constant input, got %v", last.TrendOffset)
	}
}

func TestReplayIsDeterministic(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(42))
	candles := make([]models.Candle, 300)
	price := 100.0
	for i := range candles {
		price += rng.Float64() - 0.48
		candles[i] = bar(int64(i), price, 0.2+rng.Float64())
	}

	run := func() string {
		t.Helper()
		g, err := New(testKey(), cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var out strings.Builder
		for _, c := range candles {
			s, err := g.Update(context.Background(), c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			fmt.Fprintf(&out, "%+v\n", *s)
		}
		return out.String()
	}

	if first, second := run(), run(); first != second {
		t.Fatalf("replay produced different output")
	}
}
