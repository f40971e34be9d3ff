package regime

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
	domsvc "SignalForge/internal/domain/service"
)

// DefaultPeriod is the window the classifier inspects when none is configured.
const DefaultPeriod = 400

// Classifier labels market behaviour from price-action statistics over a
// fixed window. It is a pure function of its input: no state survives a call.
type Classifier struct {
	period int
	series domsvc.SeriesProvider
}

func New(period int, series domsvc.SeriesProvider) (*Classifier, error) {
	if period <= 0 {
		return nil, fmt.Errorf("regime classifier: period %d: %w", period, models.ErrInvalidPeriod)
	}
	if series == nil {
		return nil, fmt.Errorf("regime classifier: nil series provider: %w", models.ErrInvalidParameter)
	}
	return &Classifier{period: period, series: series}, nil
}

var _ domsvc.RegimeClassifier = (*Classifier)(nil)

// Classify inspects the most recent period bars. First matching rule wins:
//
//	range > 50%          -> TRENDING if directional efficiency > 0.15 else VOLATILE
//	|price change| > 7.5% -> TRENDING
//	range > 35%          -> VOLATILE
//	otherwise            -> RANGING
func (c *Classifier) Classify(candles []models.Candle) (models.Regime, error) {
	if len(candles) < c.period {
		return "", fmt.Errorf("regime classifier: %d/%d bars: %w", len(candles), c.period, models.ErrInsufficientData)
	}
	window := candles[len(candles)-c.period:]

	highs := make([]float64, len(window))
	lows := make([]float64, len(window))
	for i, b := range window {
		if err := b.CheckFinite(); err != nil {
			return "", err
		}
		highs[i] = b.High
		lows[i] = b.Low
	}

	first := window[0].Close
	last := window[len(window)-1].Close
	if first == 0 {
		return "", fmt.Errorf("regime classifier: zero anchor close: %w", models.ErrComputation)
	}

	maxHigh, err := c.series.RollingMax(highs, len(highs))
	if err != nil {
		return "", err
	}
	minLow, err := c.series.RollingMin(lows, len(lows))
	if err != nil {
		return "", err
	}
	hi := maxHigh[len(maxHigh)-1]
	lo := minLow[len(minLow)-1]
	if lo == 0 {
		return "", fmt.Errorf("regime classifier: zero window low: %w", models.ErrComputation)
	}

	priceChangePct := (last - first) / first * 100
	rangePct := (hi - lo) / lo * 100

	var efficiency float64
	if rangePct != 0 {
		efficiency = math.Abs(priceChangePct) / rangePct
	}

	switch {
	case rangePct > 50:
		if efficiency > 0.15 {
			return models.RegimeTrending, nil
		}
		return models.RegimeVolatile, nil
	case math.Abs(priceChangePct) > 7.5:
		return models.RegimeTrending, nil
	case rangePct > 35:
		return models.RegimeVolatile, nil
	}
	return models.RegimeRanging, nil
}
