package features

import (
	"errors"
	"math"
	"testing"

	"SignalForge/internal/domain/models"
)

func TestVectorBeforeWindowFills(t *testing.T) {
	e, err := NewExtractor(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	e.Push(100)
	e.Push(101)
	if _, err := e.Vector(models.TrendState{}, 1); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestVectorLayout(t *testing.T) {
	e, _ := NewExtractor(2)
	for _, c := range []float64{100, 110, 99} {
		e.Push(c)
	}
	st := models.TrendState{Direction: models.TrendUp, TrendLine: 90}
	v, err := e.Vector(st, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(v) != e.Dim() || e.Dim() != 5 {
		t.Fatalf("expected dim 5, got %d", len(v))
	}
	if math.Abs(v[0]-0.10) > 1e-12 {
		t.Fatalf("delta[0]: expected 0.10, got %v", v[0])
	}
	if math.Abs(v[1]-(99.0-110.0)/110.0) > 1e-12 {
		t.Fatalf("delta[1]: got %v", v[1])
	}
	if math.Abs(v[2]-2.0/99.0) > 1e-12 {
		t.Fatalf("vol feature: got %v", v[2])
	}
	if v[3] != 1 {
		t.Fatalf("direction feature: got %v", v[3])
	}
	if math.Abs(v[4]-(99.0-90.0)/99.0) > 1e-12 {
		t.Fatalf("distance feature: got %v", v[4])
	}
}

func TestPushSlidesWindow(t *testing.T) {
	e, _ := NewExtractor(2)
	for _, c := range []float64{1, 2, 3, 4} {
		e.Push(c)
	}
	v, err := e.Vector(models.TrendState{}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// window is [2,3,4]: deltas 0.5 and 1/3
	if math.Abs(v[0]-0.5) > 1e-12 || math.Abs(v[1]-1.0/3.0) > 1e-12 {
		t.Fatalf("expected sliding deltas [0.5, 0.333], got %v", v[:2])
	}
}

func TestComputeLogReturns(t *testing.T) {
	cs := []float64{100, 110, 104.5}
	rets := ComputeLogReturns(cs)
	if len(rets) != 2 {
		t.Fatalf("expected 2 returns, got %d", len(rets))
	}
	if math.Abs(rets[0]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("unexpected return %v", rets[0])
	}
	if ComputeLogReturns(cs[:1]) != nil {
		t.Fatalf("expected nil for a single close")
	}
}

func TestMeanReturnWindow(t *testing.T) {
	rets := []float64{0.5, 0.1, 0.3}
	if got := MeanReturn(rets, 2); math.Abs(got-0.2) > 1e-12 {
		t.Fatalf("expected 0.2, got %v", got)
	}
	if got := MeanReturn(rets, 5); got != 0 {
		t.Fatalf("expected 0 for oversized window, got %v", got)
	}
}
