package models

// Regime classifies recent market behaviour; it selects which ensemble weight
// table applies.
type Regime string

const (
	RegimeTrending Regime = "TRENDING"
	RegimeRanging  Regime = "RANGING"
	RegimeVolatile Regime = "VOLATILE"
)

// RegimeWeights maps sub-signal name to its ensemble weight. Validated once at
// load (weights sum to 1 within tolerance); read-only during use and replaced
// wholesale when the regime changes.
type RegimeWeights map[string]float64
