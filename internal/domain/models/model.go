package models

import "time"

// FeatureVector is a fixed-length feature row derived from a lookback window.
// Owned transiently per update; never persisted.
type FeatureVector []float64

// TrainingSample pairs a feature row with its realised one-bar-lagged target.
type TrainingSample struct {
	Features FeatureVector
	Target   float64
}

// ModelState is an immutable regression snapshot. A retrain constructs a new
// ModelState and publishes it with a single atomic swap; readers never observe
// partial-field mutation. Version increases monotonically per key.
type ModelState struct {
	Coefficients []float64
	Intercept    float64
	Version      uint64
	TrainedAt    time.Time
}

// Dim returns the feature dimension the model was fitted on.
func (m *ModelState) Dim() int { return len(m.Coefficients) }
