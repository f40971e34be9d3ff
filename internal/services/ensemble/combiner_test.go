package ensemble

import (
	"errors"
	"math"
	"testing"

	"SignalForge/internal/domain/models"
)

func tables(w models.RegimeWeights) map[models.Regime]models.RegimeWeights {
	return map[models.Regime]models.RegimeWeights{
		models.RegimeTrending: w,
		models.RegimeRanging:  w,
		models.RegimeVolatile: w,
	}
}

func TestRejectsBadWeightSum(t *testing.T) {
	_, err := New(tables(models.RegimeWeights{"a": 0.5, "b": 0.6}), 0)
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestRejectsMissingRegimeTable(t *testing.T) {
	partial := map[models.Regime]models.RegimeWeights{
		models.RegimeTrending: {"a": 1.0},
	}
	if _, err := New(partial, 0); !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestRejectsNegativeWeight(t *testing.T) {
	_, err := New(tables(models.RegimeWeights{"a": 1.5, "b": -0.5}), 0)
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestAllNeutralScoresZero(t *testing.T) {
	c, err := New(tables(models.RegimeWeights{"a": 0.5, "b": 0.5}), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	label, conf, err := c.Combine(models.RegimeRanging, map[string]models.SubSignal{
		"a": {Label: models.Neutral, Strength: 0.9},
		"b": {Label: models.Neutral, Strength: 0.1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != models.Neutral || conf != 0 {
		t.Fatalf("expected Neutral/0, got %v/%v", label, conf)
	}
}

func TestWeightedVote(t *testing.T) {
	c, _ := New(tables(models.RegimeWeights{"trend": 0.6, "momo": 0.4}), 0)
	label, conf, err := c.Combine(models.RegimeTrending, map[string]models.SubSignal{
		"trend": {Label: models.Buy, Strength: 1.0},
		"momo":  {Label: models.Sell, Strength: 0.5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 0.6*1 - 0.4*0.5 = 0.4
	if label != models.Buy || math.Abs(conf-0.4) > 1e-12 {
		t.Fatalf("expected Buy/0.4, got %v/%v", label, conf)
	}
}

func TestAbsentSubSignalNotRedistributed(t *testing.T) {
	c, _ := New(tables(models.RegimeWeights{"trend": 0.6, "momo": 0.4}), 0)
	label, conf, err := c.Combine(models.RegimeTrending, map[string]models.SubSignal{
		"trend": {Label: models.Buy, Strength: 0.5},
		// "momo" missing: contributes 0, weight not redistributed
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != models.Buy || math.Abs(conf-0.3) > 1e-12 {
		t.Fatalf("expected Buy/0.3, got %v/%v", label, conf)
	}
}

func TestUnknownVoteNameIgnored(t *testing.T) {
	c, _ := New(tables(models.RegimeWeights{"trend": 1.0}), 0)
	label, conf, err := c.Combine(models.RegimeVolatile, map[string]models.SubSignal{
		"trend":   {Label: models.Sell, Strength: 0.5},
		"unknown": {Label: models.Buy, Strength: 1.0},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != models.Sell || math.Abs(conf-0.5) > 1e-12 {
		t.Fatalf("expected Sell/0.5, got %v/%v", label, conf)
	}
}

func TestThresholdHoldsNeutral(t *testing.T) {
	c, _ := New(tables(models.RegimeWeights{"trend": 1.0}), 0.5)
	label, conf, err := c.Combine(models.RegimeTrending, map[string]models.SubSignal{
		"trend": {Label: models.Buy, Strength: 0.4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if label != models.Neutral || math.Abs(conf-0.4) > 1e-12 {
		t.Fatalf("expected Neutral below threshold, got %v/%v", label, conf)
	}
}

func TestStrengthOutOfRange(t *testing.T) {
	c, _ := New(tables(models.RegimeWeights{"trend": 1.0}), 0)
	_, _, err := c.Combine(models.RegimeTrending, map[string]models.SubSignal{
		"trend": {Label: models.Buy, Strength: 1.5},
	})
	if !errors.Is(err, models.ErrOutOfRange) {
		t.Fatalf("expected ErrOutOfRange, got %v", err)
	}
}
