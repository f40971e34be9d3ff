package trend

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
	domsvc "SignalForge/internal/domain/service"
	"SignalForge/internal/services/kernels"
)

// Tracker is the incremental band-convergence trend state machine. One
// instance exclusively owns the TrendState for a single (instrument,
// timeframe) key; Update must be called sequentially.
//
// Bands are built around the bar midpoint at multiplier * ATR and clamped
// monotonically against the previous bands (upper never rises, lower never
// falls) while the direction holds; a flip releases the clamp for that bar.
// The clamp keeps band oscillation noise from producing spurious reversals
// and bounds band drift.
type Tracker struct {
	period     int
	multiplier float64

	atr    *kernels.WilderATR
	st     models.TrendState
	seeded bool
}

func New(period int, multiplier float64) (*Tracker, error) {
	if period <= 0 {
		return nil, fmt.Errorf("trend tracker: period %d: %w", period, models.ErrInvalidPeriod)
	}
	if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
		return nil, fmt.Errorf("trend tracker: multiplier %v: %w", multiplier, models.ErrInvalidParameter)
	}
	atr, err := kernels.NewWilderATR(period)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		period:     period,
		multiplier: multiplier,
		atr:        atr,
		st:         models.TrendState{Direction: models.TrendUninit},
	}, nil
}

var _ domsvc.TrendTracker = (*Tracker)(nil)

// Update consumes one bar. During the warm-up of period bars it only
// accumulates the volatility estimate and fails with ErrInsufficientData;
// afterwards it returns the updated state in O(1).
func (t *Tracker) Update(c models.Candle) (models.TrendState, error) {
	if err := c.CheckFinite(); err != nil {
		return models.TrendState{}, err
	}

	vol, err := t.atr.Update(c.High, c.Low, c.Close)
	if err != nil {
		return models.TrendState{}, err
	}

	mid := c.Mid()
	rawUpper := mid + t.multiplier*vol
	rawLower := mid - t.multiplier*vol

	prev := t.st
	next := models.TrendState{Direction: prev.Direction}

	if !t.seeded {
		// First post-warm-up bar: seed the direction from where the close
		// sits relative to the midpoint. Counts as a flip so signal logic
		// fires exactly once.
		next.Upper = rawUpper
		next.Lower = rawLower
		if c.Close >= mid {
			next.Direction = models.TrendUp
		} else {
			next.Direction = models.TrendDown
		}
		next.Flipped = true
		t.seeded = true
	} else {
		next.Upper = math.Min(rawUpper, prev.Upper)
		next.Lower = math.Max(rawLower, prev.Lower)

		switch {
		case c.Close > next.Upper:
			if prev.Direction != models.TrendUp {
				next.Direction = models.TrendUp
				next.Flipped = true
			}
		case c.Close < next.Lower:
			if prev.Direction != models.TrendDown {
				next.Direction = models.TrendDown
				next.Flipped = true
			}
		}
		if next.Flipped {
			next.Upper = rawUpper
			next.Lower = rawLower
		}
	}

	if next.Direction == models.TrendUp {
		next.TrendLine = next.Lower
	} else {
		next.TrendLine = next.Upper
	}

	t.st = next
	return next, nil
}

// State returns the current trend snapshot.
func (t *Tracker) State() models.TrendState { return t.st }

// Volatility returns the current ATR estimate (zero during warm-up).
func (t *Tracker) Volatility() float64 {
	v, err := t.atr.Value()
	if err != nil {
		return 0
	}
	return v
}

// Warm reports whether the warm-up window has been consumed.
func (t *Tracker) Warm() bool { return t.atr.Warm() }
