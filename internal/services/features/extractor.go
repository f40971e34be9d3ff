package features

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
)

// Extractor derives the fixed-length per-bar feature row from a lookback
// window of closes plus the current trend snapshot. The layout is
//
//	[0..lookback)   relative close deltas, oldest first
//	[lookback]      volatility estimate normalised by close
//	[lookback+1]    trend direction (+1 up, -1 down, 0 uninit)
//	[lookback+2]    close distance from the trend line, normalised by close
//
// One extractor belongs to one engine stream; Push is sequential.
type Extractor struct {
	lookback int
	closes   []float64 // last lookback+1 closes, oldest first
}

func NewExtractor(lookback int) (*Extractor, error) {
	if lookback <= 0 {
		return nil, fmt.Errorf("feature extractor: lookback %d: %w", lookback, models.ErrInvalidPeriod)
	}
	return &Extractor{lookback: lookback, closes: make([]float64, 0, lookback+1)}, nil
}

// Dim is the feature dimension produced by Vector.
func (e *Extractor) Dim() int { return e.lookback + 3 }

// Push records one close. O(1) amortized.
func (e *Extractor) Push(close float64) {
	if len(e.closes) == cap(e.closes) {
		copy(e.closes, e.closes[1:])
		e.closes = e.closes[:len(e.closes)-1]
	}
	e.closes = append(e.closes, close)
}

// Ready reports whether enough closes have accumulated for a full vector.
func (e *Extractor) Ready() bool { return len(e.closes) == e.lookback+1 }

// Vector builds the feature row for the current bar. It fails with
// ErrInsufficientData until the lookback window fills.
func (e *Extractor) Vector(st models.TrendState, vol float64) (models.FeatureVector, error) {
	if !e.Ready() {
		return nil, fmt.Errorf("feature extractor: %d/%d closes: %w", len(e.closes), e.lookback+1, models.ErrInsufficientData)
	}
	out := make(models.FeatureVector, 0, e.Dim())
	for i := 1; i < len(e.closes); i++ {
		prev := e.closes[i-1]
		if prev == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (e.closes[i]-prev)/prev)
	}

	last := e.closes[len(e.closes)-1]
	if last != 0 {
		out = append(out, vol/last)
	} else {
		out = append(out, 0)
	}

	switch st.Direction {
	case models.TrendUp:
		out = append(out, 1)
	case models.TrendDown:
		out = append(out, -1)
	default:
		out = append(out, 0)
	}

	if last != 0 && !math.IsNaN(st.TrendLine) {
		out = append(out, (last-st.TrendLine)/last)
	} else {
		out = append(out, 0)
	}
	return out, nil
}

// ComputeLogReturns computes r_t = ln(C_t / C_{t-1}) over a close-price
// window, oldest first. It returns len(closes)-1 values, or nil when fewer
// than two closes are given. Non-positive closes yield a zero return.
func ComputeLogReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// MeanReturn is the arithmetic mean of the trailing window of returns, used
// by the momentum sub-signal. Returns 0 when the window cannot be filled.
func MeanReturn(returns []float64, window int) float64 {
	if window <= 0 || len(returns) < window {
		return 0
	}
	sum := 0.0
	for _, r := range returns[len(returns)-window:] {
		sum += r
	}
	return sum / float64(window)
}
