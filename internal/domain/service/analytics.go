package service

import (
	"context"

	"SignalForge/internal/domain/models"
)

// SeriesProvider exposes the validated numeric primitives the engine consumes.
// Every method fails with a defined error kind on empty or invalid input
// rather than silently returning degraded output.
type SeriesProvider interface {
	EMA(values []float64, period int) ([]float64, error)
	WilderRMA(values []float64, period int) ([]float64, error)
	ATR(high, low, close []float64, period int) ([]float64, error)
	RollingMax(values []float64, window int) ([]float64, error)
	RollingMin(values []float64, window int) ([]float64, error)
	Variance(values []float64) (float64, error)
}

// TrendTracker is the incremental band-convergence trend state machine.
type TrendTracker interface {
	Update(c models.Candle) (models.TrendState, error)
	State() models.TrendState
	Volatility() float64
	Warm() bool
}

// OffsetModel is the rolling-window regression predicting a trend offset.
type OffsetModel interface {
	Push(s models.TrainingSample) error
	Retrain(ctx context.Context) (*models.ModelState, error)
	Predict(features models.FeatureVector) (float64, error)
	Published() *models.ModelState
	Len() int
}

// RegimeClassifier labels the current market regime from a candle window.
type RegimeClassifier interface {
	Classify(candles []models.Candle) (models.Regime, error)
}

// EnsembleCombiner folds named sub-signals into one decision using the weight
// table selected by the current regime.
type EnsembleCombiner interface {
	Combine(regime models.Regime, votes map[string]models.SubSignal) (models.SignalLabel, float64, error)
}
