package kernels

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
	domsvc "SignalForge/internal/domain/service"
)

// Provider implements the SeriesProvider collaborator over float64 slices.
// All operations validate input at entry and fail fast; none returns partial
// or degraded output.
type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

var _ domsvc.SeriesProvider = (*Provider)(nil)

func checkSeries(name string, values []float64) error {
	if len(values) == 0 {
		return fmt.Errorf("%s: %w", name, models.ErrEmptyInput)
	}
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: index %d: %w", name, i, models.ErrInvalidValue)
		}
	}
	return nil
}

func checkPeriod(name string, period, n int) error {
	if period <= 0 {
		return fmt.Errorf("%s: period %d: %w", name, period, models.ErrInvalidPeriod)
	}
	if period > n {
		return fmt.Errorf("%s: period %d exceeds %d values: %w", name, period, n, models.ErrInsufficientData)
	}
	return nil
}

// Sum computes a Kahan-compensated sum.
func Sum(values []float64) (float64, error) {
	if err := checkSeries("sum", values); err != nil {
		return 0, err
	}
	var sum, comp float64
	for _, v := range values {
		y := v - comp
		t := sum + y
		comp = (t - sum) - y
		sum = t
	}
	return sum, nil
}

// Mean computes the arithmetic mean with compensated summation.
func Mean(values []float64) (float64, error) {
	s, err := Sum(values)
	if err != nil {
		return 0, err
	}
	return s / float64(len(values)), nil
}

// EMA computes an exponential moving average seeded with the SMA of the first
// period values. Output is aligned with input; entries before the seed index
// are NaN.
func (p *Provider) EMA(values []float64, period int) ([]float64, error) {
	if err := checkSeries("ema", values); err != nil {
		return nil, err
	}
	if err := checkPeriod("ema", period, len(values)); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	seed, _ := Mean(values[:period])
	out[period-1] = seed
	alpha := 2.0 / (float64(period) + 1)
	for i := period; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out, nil
}

// WilderRMA computes Wilder's smoothed moving average
// (rma_t = (rma_{t-1}*(period-1) + v_t) / period), SMA-seeded.
func (p *Provider) WilderRMA(values []float64, period int) ([]float64, error) {
	if err := checkSeries("wilder rma", values); err != nil {
		return nil, err
	}
	if err := checkPeriod("wilder rma", period, len(values)); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	for i := 0; i < period-1; i++ {
		out[i] = math.NaN()
	}
	seed, _ := Mean(values[:period])
	out[period-1] = seed
	n := float64(period)
	for i := period; i < len(values); i++ {
		out[i] = (out[i-1]*(n-1) + values[i]) / n
	}
	return out, nil
}

// TrueRange computes the true-range series. The first bar uses high-low since
// no prior close exists.
func TrueRange(high, low, close []float64) ([]float64, error) {
	if len(high) != len(low) || len(low) != len(close) {
		return nil, fmt.Errorf("true range: %w", models.ErrLengthMismatch)
	}
	if err := checkSeries("true range high", high); err != nil {
		return nil, err
	}
	if err := checkSeries("true range low", low); err != nil {
		return nil, err
	}
	if err := checkSeries("true range close", close); err != nil {
		return nil, err
	}
	out := make([]float64, len(high))
	out[0] = high[0] - low[0]
	for i := 1; i < len(high); i++ {
		out[i] = trueRange(high[i], low[i], close[i-1])
	}
	return out, nil
}

func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if v := math.Abs(high - prevClose); v > tr {
		tr = v
	}
	if v := math.Abs(low - prevClose); v > tr {
		tr = v
	}
	return tr
}

// ATR computes Wilder-smoothed average true range.
func (p *Provider) ATR(high, low, close []float64, period int) ([]float64, error) {
	tr, err := TrueRange(high, low, close)
	if err != nil {
		return nil, err
	}
	return p.WilderRMA(tr, period)
}

// RollingMax computes the rolling window maximum with a monotonic deque,
// O(n) total. Entries before the first full window are NaN.
func (p *Provider) RollingMax(values []float64, window int) ([]float64, error) {
	return rollingExtreme("rolling max", values, window, func(a, b float64) bool { return a >= b })
}

// RollingMin is the rolling window minimum counterpart of RollingMax.
func (p *Provider) RollingMin(values []float64, window int) ([]float64, error) {
	return rollingExtreme("rolling min", values, window, func(a, b float64) bool { return a <= b })
}

// rollingExtreme keeps deque indices whose values are monotone under wins,
// front being the current extreme.
func rollingExtreme(name string, values []float64, window int, wins func(a, b float64) bool) ([]float64, error) {
	if err := checkSeries(name, values); err != nil {
		return nil, err
	}
	if err := checkPeriod(name, window, len(values)); err != nil {
		return nil, err
	}
	out := make([]float64, len(values))
	deque := make([]int, 0, window)
	for i, v := range values {
		for len(deque) > 0 && wins(v, values[deque[len(deque)-1]]) {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, i)
		if deque[0] <= i-window {
			deque = deque[1:]
		}
		if i < window-1 {
			out[i] = math.NaN()
		} else {
			out[i] = values[deque[0]]
		}
	}
	return out, nil
}

// Variance computes the sample variance via Welford's online recurrence.
func (p *Provider) Variance(values []float64) (float64, error) {
	if err := checkSeries("variance", values); err != nil {
		return 0, err
	}
	if len(values) < 2 {
		return 0, fmt.Errorf("variance: need at least 2 values: %w", models.ErrInsufficientData)
	}
	var ov OnlineVariance
	for _, v := range values {
		ov.Push(v)
	}
	return ov.Variance(), nil
}
