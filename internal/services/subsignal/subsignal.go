package subsignal

import (
	"math"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/features"
	"SignalForge/internal/services/kernels"
)

// Source is a streaming vote generator feeding the ensemble combiner next to
// the model-driven trend vote. Sources see only closes and never look ahead.
type Source interface {
	Name() string
	Push(close float64)
	// Vote returns the current vote; ok is false until the source is warm.
	Vote() (models.SubSignal, bool)
}

// EMACross votes on the relative position of a fast and a slow EMA.
type EMACross struct {
	fast *kernels.StreamEMA
	slow *kernels.StreamEMA
	// separation (as a fraction of the slow EMA) treated as full strength
	fullSep float64
}

const defaultFullSeparation = 0.005

func NewEMACross(fastPeriod, slowPeriod int) (*EMACross, error) {
	if fastPeriod >= slowPeriod {
		return nil, models.ErrInvalidParameter
	}
	fast, err := kernels.NewStreamEMA(fastPeriod)
	if err != nil {
		return nil, err
	}
	slow, err := kernels.NewStreamEMA(slowPeriod)
	if err != nil {
		return nil, err
	}
	return &EMACross{fast: fast, slow: slow, fullSep: defaultFullSeparation}, nil
}

func (e *EMACross) Name() string { return "ema_cross" }

func (e *EMACross) Push(close float64) {
	e.fast.Push(close)
	e.slow.Push(close)
}

func (e *EMACross) Vote() (models.SubSignal, bool) {
	if !e.fast.Warm() || !e.slow.Warm() {
		return models.SubSignal{}, false
	}
	fast, slow := e.fast.Value(), e.slow.Value()
	if slow == 0 {
		return models.SubSignal{Label: models.Neutral}, true
	}
	sep := (fast - slow) / math.Abs(slow)
	strength := math.Min(1, math.Abs(sep)/e.fullSep)
	switch {
	case sep > 0:
		return models.SubSignal{Label: models.Buy, Strength: strength}, true
	case sep < 0:
		return models.SubSignal{Label: models.Sell, Strength: strength}, true
	default:
		return models.SubSignal{Label: models.Neutral}, true
	}
}

// Momentum votes on the mean log return over a trailing close window.
type Momentum struct {
	window int
	closes []float64 // last window+1 closes, oldest first
	// mean log return per bar treated as full strength
	fullRet float64
}

const defaultFullReturn = 0.001

func NewMomentum(window int) (*Momentum, error) {
	if window <= 0 {
		return nil, models.ErrInvalidPeriod
	}
	return &Momentum{window: window, closes: make([]float64, 0, window+1), fullRet: defaultFullReturn}, nil
}

func (m *Momentum) Name() string { return "momentum" }

func (m *Momentum) Push(close float64) {
	if len(m.closes) == cap(m.closes) {
		copy(m.closes, m.closes[1:])
		m.closes = m.closes[:len(m.closes)-1]
	}
	m.closes = append(m.closes, close)
}

func (m *Momentum) Vote() (models.SubSignal, bool) {
	if len(m.closes) < m.window+1 {
		return models.SubSignal{}, false
	}
	mean := features.MeanReturn(features.ComputeLogReturns(m.closes), m.window)
	strength := math.Min(1, math.Abs(mean)/m.fullRet)
	switch {
	case mean > 0:
		return models.SubSignal{Label: models.Buy, Strength: strength}, true
	case mean < 0:
		return models.SubSignal{Label: models.Sell, Strength: strength}, true
	default:
		return models.SubSignal{Label: models.Neutral}, true
	}
}
