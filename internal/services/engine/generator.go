package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/services/features"
	"SignalForge/internal/services/model"
	"SignalForge/internal/services/trend"
)

// Config enumerates the per-stream engine options.
type Config struct {
	TrendPeriod     int     // warm-up / ATR period of the trend tracker
	TrendMultiplier float64 // band width in ATR multiples
	ModelKind       model.Kind
	RidgeAlpha      float64 // 0 selects ordinary least squares
	Lookback        int     // feature window
	TrainWindow     int     // training buffer capacity
	RetrainInterval int     // new samples between retrains after the first
	// AsyncRetrain moves retrains off the update path (live mode). The
	// default synchronous mode keeps output a pure function of the candle
	// sequence and configuration.
	AsyncRetrain bool
}

func (c Config) validate() error {
	if c.TrendPeriod <= 0 || c.Lookback <= 0 {
		return fmt.Errorf("engine: period/lookback: %w", models.ErrInvalidPeriod)
	}
	if c.TrendMultiplier <= 0 {
		return fmt.Errorf("engine: trend multiplier %v: %w", c.TrendMultiplier, models.ErrInvalidParameter)
	}
	if c.TrainWindow <= 0 || c.RetrainInterval <= 0 {
		return fmt.Errorf("engine: train window/retrain interval: %w", models.ErrInvalidParameter)
	}
	return nil
}

// Generator is the per-candle orchestrator for one (instrument, timeframe)
// stream: it feeds the trend tracker, maintains the one-bar-lagged training
// flow into the regression model and emits a BarSignal per update. Updates
// must arrive sequentially in strictly increasing timestamp order; different
// keys own independent generators and share nothing.
type Generator struct {
	key       domrepo.Key
	cfg       Config
	tracker   *trend.Tracker
	extractor *features.Extractor
	mdl       *model.Model
	retrainer *model.Retrainer

	lastTS int64
	haveTS bool

	// previous-bar carryover for the lagged training sample and the
	// crossing rules
	prevFeatures  models.FeatureVector
	prevTrendLine float64
	prevAdjusted  float64
	prevClose     float64
	havePrev      bool
	haveAdjusted  bool

	sinceRetrain int
	firstTrained bool
}

func New(key domrepo.Key, cfg Config) (*Generator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	tracker, err := trend.New(cfg.TrendPeriod, cfg.TrendMultiplier)
	if err != nil {
		return nil, err
	}
	extractor, err := features.NewExtractor(cfg.Lookback)
	if err != nil {
		return nil, err
	}
	mdl, err := model.New(cfg.ModelKind, cfg.TrainWindow, extractor.Dim(), cfg.RidgeAlpha)
	if err != nil {
		return nil, err
	}
	g := &Generator{
		key:       key,
		cfg:       cfg,
		tracker:   tracker,
		extractor: extractor,
		mdl:       mdl,
	}
	if cfg.AsyncRetrain {
		g.retrainer = model.NewRetrainer(mdl)
	}
	return g, nil
}

// Model exposes the underlying offset model for audit reads.
func (g *Generator) Model() *model.Model { return g.mdl }

// Retrainer returns the async retrainer (nil in synchronous mode).
func (g *Generator) Retrainer() *model.Retrainer { return g.retrainer }

// Update consumes one candle and emits the per-bar signal. All validation
// happens before any state mutation; a rejected candle leaves the stream
// untouched. The synchronous path is O(1)/O(d) except at retrain trigger
// bars in synchronous mode.
func (g *Generator) Update(ctx context.Context, c models.Candle) (*models.BarSignal, error) {
	if err := c.CheckFinite(); err != nil {
		return nil, err
	}
	if g.haveTS && c.Timestamp <= g.lastTS {
		return nil, fmt.Errorf("engine %s: candle t=%d after t=%d: %w", g.key, c.Timestamp, g.lastTS, models.ErrOutOfOrder)
	}
	g.lastTS = c.Timestamp
	g.haveTS = true

	// Realised outcome of the previous step: the label for features_{i-1}
	// only becomes known now, which is exactly why it is pushed one bar
	// late. Features and labels never encode information unavailable at
	// decision time.
	if g.havePrev {
		sample := models.TrainingSample{Features: g.prevFeatures, Target: c.Close - g.prevTrendLine}
		if err := g.mdl.Push(sample); err != nil {
			return nil, err
		}
		if err := g.maybeRetrain(ctx); err != nil {
			return nil, err
		}
	}

	st, err := g.tracker.Update(c)
	if errors.Is(err, models.ErrInsufficientData) {
		// Documented degraded mode, not a failure: accumulate and emit
		// neutral defaults.
		g.havePrev = false
		g.haveAdjusted = false
		return g.warmupSignal(c), nil
	}
	if err != nil {
		return nil, err
	}

	g.extractor.Push(c.Close)
	vol := g.tracker.Volatility()

	feats, ferr := g.extractor.Vector(st, vol)
	if ferr != nil && !errors.Is(ferr, models.ErrInsufficientData) {
		return nil, ferr
	}

	offset := 0.0
	if feats != nil {
		pred, perr := g.mdl.Predict(feats)
		switch {
		case perr == nil:
			offset = pred
		case errors.Is(perr, models.ErrInsufficientData):
			// no published model yet: base trend only
		default:
			return nil, perr
		}
	}
	adjusted := st.TrendLine + offset

	buy, sell := g.decide(st, c.Close, adjusted)
	stop, target := tradeLevels(st.Direction, adjusted, vol, g.cfg.TrendMultiplier)

	out := &models.BarSignal{
		Instrument:  g.key.Instrument,
		Timeframe:   string(g.key.Timeframe),
		Timestamp:   c.Timestamp,
		TrendLine:   st.TrendLine,
		Direction:   st.Direction,
		TrendOffset: offset,
		BuySignal:   buy,
		SellSignal:  sell,
		StopLoss:    stop,
		TakeProfit:  target,
	}
	out.Signal = makeSignal(out, st.Flipped, c.Close, adjusted, vol, g.cfg.TrendMultiplier)

	// carry over for the next bar
	if feats != nil {
		g.prevFeatures = feats
		g.prevTrendLine = st.TrendLine
		g.havePrev = true
	} else {
		g.havePrev = false
	}
	g.prevAdjusted = adjusted
	g.prevClose = c.Close
	g.haveAdjusted = true

	return out, nil
}

// maybeRetrain fires the first retrain when the buffer reaches capacity and
// every RetrainInterval new samples afterwards, not per sample.
func (g *Generator) maybeRetrain(ctx context.Context) error {
	if !g.firstTrained {
		if !g.mdl.Full() {
			return nil
		}
		g.firstTrained = true
		g.sinceRetrain = 0
		return g.retrain(ctx)
	}
	g.sinceRetrain++
	if g.sinceRetrain < g.cfg.RetrainInterval {
		return nil
	}
	g.sinceRetrain = 0
	return g.retrain(ctx)
}

func (g *Generator) retrain(ctx context.Context) error {
	if g.retrainer != nil {
		g.retrainer.Trigger(ctx)
		return nil
	}
	_, err := g.mdl.Retrain(ctx)
	return err
}

// decide derives the buy/sell flags: a direction flip fires once, and a close
// crossing the adjusted trend line in the trend direction re-arms an entry.
func (g *Generator) decide(st models.TrendState, close, adjusted float64) (buy, sell bool) {
	if st.Flipped {
		return st.Direction == models.TrendUp, st.Direction == models.TrendDown
	}
	if !g.haveAdjusted {
		return false, false
	}
	switch st.Direction {
	case models.TrendUp:
		buy = g.prevClose <= g.prevAdjusted && close > adjusted
	case models.TrendDown:
		sell = g.prevClose >= g.prevAdjusted && close < adjusted
	}
	return buy, sell
}

// tradeLevels places stop and target as volatility multiples around the
// adjusted trend line.
func tradeLevels(dir models.TrendDirection, adjusted, vol, mult float64) (stop, target float64) {
	switch dir {
	case models.TrendUp:
		return adjusted - mult*vol, adjusted + 2*mult*vol
	case models.TrendDown:
		return adjusted + mult*vol, adjusted - 2*mult*vol
	}
	return math.NaN(), math.NaN()
}

// makeSignal grades the bar decision: flip entries carry full strength,
// crossing entries are graded by distance from the adjusted line.
func makeSignal(bar *models.BarSignal, flipped bool, close, adjusted, vol, mult float64) models.Signal {
	s := models.Signal{Label: models.Neutral, StopLoss: bar.StopLoss, TakeProfit: bar.TakeProfit}
	switch {
	case bar.BuySignal:
		s.Label = models.Buy
	case bar.SellSignal:
		s.Label = models.Sell
	default:
		return s
	}
	if flipped {
		s.Strength = 1
		return s
	}
	s.Strength = crossStrength(close, adjusted, vol, mult)
	return s
}

// crossStrength grades a crossing entry by its distance from the adjusted
// line in band widths, clamped to [0,1].
func crossStrength(close, adjusted, vol, mult float64) float64 {
	den := mult * vol
	if den == 0 {
		return 0
	}
	return math.Min(math.Abs(close-adjusted)/den, 1)
}

// warmupSignal is the neutral default emitted while the trend tracker warms.
func (g *Generator) warmupSignal(c models.Candle) *models.BarSignal {
	nan := math.NaN()
	return &models.BarSignal{
		Instrument: g.key.Instrument,
		Timeframe:  string(g.key.Timeframe),
		Timestamp:  c.Timestamp,
		TrendLine:  nan,
		Direction:  models.TrendUninit,
		StopLoss:   nan,
		TakeProfit: nan,
		WarmingUp:  true,
		Signal:     models.Signal{Label: models.Neutral, StopLoss: nan, TakeProfit: nan},
	}
}
