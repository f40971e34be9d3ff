package kernels

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
)

// WilderATR is the streaming form of ATR: O(1) per bar, SMA-seeded over the
// first period true ranges, Wilder recurrence afterwards.
type WilderATR struct {
	period    int
	prevClose float64
	havePrev  bool
	seedSum   float64
	count     int
	rma       float64
}

func NewWilderATR(period int) (*WilderATR, error) {
	if period <= 0 {
		return nil, fmt.Errorf("wilder atr: period %d: %w", period, models.ErrInvalidPeriod)
	}
	return &WilderATR{period: period}, nil
}

// Update consumes one bar and returns the current ATR. It fails with
// ErrInsufficientData until period bars have accumulated; the bar is still
// absorbed into the seed, so warm-up is pure accumulation, not a dropped call.
func (a *WilderATR) Update(high, low, close float64) (float64, error) {
	for _, v := range [...]float64{high, low, close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("wilder atr: %w", models.ErrInvalidValue)
		}
	}
	tr := high - low
	if a.havePrev {
		tr = trueRange(high, low, a.prevClose)
	}
	a.prevClose = close
	a.havePrev = true

	a.count++
	switch {
	case a.count < a.period:
		a.seedSum += tr
		return 0, fmt.Errorf("wilder atr: %d/%d bars: %w", a.count, a.period, models.ErrInsufficientData)
	case a.count == a.period:
		a.seedSum += tr
		a.rma = a.seedSum / float64(a.period)
	default:
		n := float64(a.period)
		a.rma = (a.rma*(n-1) + tr) / n
	}
	return a.rma, nil
}

// Warm reports whether the seed window has been consumed.
func (a *WilderATR) Warm() bool { return a.count >= a.period }

// Value returns the current ATR, ErrInsufficientData before warm-up.
func (a *WilderATR) Value() (float64, error) {
	if !a.Warm() {
		return 0, fmt.Errorf("wilder atr: %w", models.ErrInsufficientData)
	}
	return a.rma, nil
}

// StreamEMA is the O(1) streaming EMA, SMA-seeded like the slice form.
type StreamEMA struct {
	period  int
	alpha   float64
	seedSum float64
	count   int
	value   float64
}

func NewStreamEMA(period int) (*StreamEMA, error) {
	if period <= 0 {
		return nil, fmt.Errorf("stream ema: period %d: %w", period, models.ErrInvalidPeriod)
	}
	return &StreamEMA{period: period, alpha: 2.0 / (float64(period) + 1)}, nil
}

// Push absorbs one value; ok is false until the seed window fills.
func (e *StreamEMA) Push(v float64) (value float64, ok bool) {
	e.count++
	switch {
	case e.count < e.period:
		e.seedSum += v
		return 0, false
	case e.count == e.period:
		e.seedSum += v
		e.value = e.seedSum / float64(e.period)
	default:
		e.value = e.alpha*v + (1-e.alpha)*e.value
	}
	return e.value, true
}

// Warm reports whether the seed window has filled.
func (e *StreamEMA) Warm() bool { return e.count >= e.period }

// Value returns the current EMA (zero before warm-up).
func (e *StreamEMA) Value() float64 { return e.value }

// OnlineVariance maintains numerically stable running mean and variance via
// Welford's recurrence.
type OnlineVariance struct {
	n    int
	mean float64
	m2   float64
}

func (o *OnlineVariance) Push(v float64) {
	o.n++
	delta := v - o.mean
	o.mean += delta / float64(o.n)
	o.m2 += delta * (v - o.mean)
}

func (o *OnlineVariance) Count() int    { return o.n }
func (o *OnlineVariance) Mean() float64 { return o.mean }

// Variance returns the sample variance (0 for fewer than two samples).
func (o *OnlineVariance) Variance() float64 {
	if o.n < 2 {
		return 0
	}
	return o.m2 / float64(o.n-1)
}
