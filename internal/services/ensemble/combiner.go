package ensemble

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
	domsvc "SignalForge/internal/domain/service"
)

// WeightTolerance is the accepted deviation of a weight table sum from 1.0.
const WeightTolerance = 1e-9

// Combiner folds named sub-signals into one decision using the weight table
// selected by the current regime. Tables are validated once at construction
// and read-only afterwards; sub-signals absent from the table contribute zero
// and their weight is not redistributed.
type Combiner struct {
	tables    map[models.Regime]models.RegimeWeights
	threshold float64
}

// New validates one weight table per regime. Every table must be present,
// carry finite non-negative weights and sum to 1 within WeightTolerance.
func New(tables map[models.Regime]models.RegimeWeights, threshold float64) (*Combiner, error) {
	if len(tables) == 0 {
		return nil, fmt.Errorf("ensemble: no weight tables: %w", models.ErrInvalidParameter)
	}
	if threshold < 0 || math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, fmt.Errorf("ensemble: threshold %v: %w", threshold, models.ErrInvalidParameter)
	}
	for _, r := range [...]models.Regime{models.RegimeTrending, models.RegimeRanging, models.RegimeVolatile} {
		tbl, ok := tables[r]
		if !ok {
			return nil, fmt.Errorf("ensemble: missing weight table for %s: %w", r, models.ErrInvalidParameter)
		}
		if err := validateTable(r, tbl); err != nil {
			return nil, err
		}
	}
	return &Combiner{tables: tables, threshold: threshold}, nil
}

func validateTable(r models.Regime, tbl models.RegimeWeights) error {
	if len(tbl) == 0 {
		return fmt.Errorf("ensemble: empty weight table for %s: %w", r, models.ErrEmptyInput)
	}
	sum := 0.0
	for name, w := range tbl {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return fmt.Errorf("ensemble: %s weight for %q is %v: %w", r, name, w, models.ErrInvalidParameter)
		}
		sum += w
	}
	if math.Abs(sum-1) > WeightTolerance {
		return fmt.Errorf("ensemble: %s weights sum to %v: %w", r, sum, models.ErrInvalidParameter)
	}
	return nil
}

var _ domsvc.EnsembleCombiner = (*Combiner)(nil)

// Combine scores the weighted vote and applies the decision threshold.
// score = sum over table names of weight * signed(sub-signal); confidence is
// |score| clamped to [0,1]. Weight tables are never re-validated here.
func (c *Combiner) Combine(regime models.Regime, votes map[string]models.SubSignal) (models.SignalLabel, float64, error) {
	tbl, ok := c.tables[regime]
	if !ok {
		return models.Neutral, 0, fmt.Errorf("ensemble: unknown regime %q: %w", regime, models.ErrInvalidParameter)
	}

	score := 0.0
	for name, w := range tbl {
		vote, ok := votes[name]
		if !ok {
			continue
		}
		s, err := signed(vote)
		if err != nil {
			return models.Neutral, 0, fmt.Errorf("ensemble: sub-signal %q: %w", name, err)
		}
		score += w * s
	}

	confidence := math.Min(math.Abs(score), 1)
	switch {
	case score > c.threshold:
		return models.Buy, confidence, nil
	case score < -c.threshold:
		return models.Sell, confidence, nil
	}
	return models.Neutral, confidence, nil
}

// signed maps a sub-signal to +strength, -strength or 0.
func signed(v models.SubSignal) (float64, error) {
	if math.IsNaN(v.Strength) || math.IsInf(v.Strength, 0) || v.Strength < 0 || v.Strength > 1 {
		return 0, fmt.Errorf("strength %v: %w", v.Strength, models.ErrOutOfRange)
	}
	switch v.Label {
	case models.Buy:
		return v.Strength, nil
	case models.Sell:
		return -v.Strength, nil
	case models.Neutral:
		return 0, nil
	}
	return 0, fmt.Errorf("label %q: %w", v.Label, models.ErrInvalidValue)
}
