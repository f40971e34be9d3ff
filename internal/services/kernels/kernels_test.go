package kernels

import (
	"errors"
	"math"
	"testing"

	"SignalForge/internal/domain/models"
)

func TestSumCompensated(t *testing.T) {
	got, err := Sum([]float64{1e16, 1, -1e16, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected compensated sum 2, got %v", got)
	}
}

func TestSumEmpty(t *testing.T) {
	if _, err := Sum(nil); !errors.Is(err, models.ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestEMARejectsNaN(t *testing.T) {
	p := NewProvider()
	if _, err := p.EMA([]float64{1, math.NaN(), 3}, 2); !errors.Is(err, models.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestEMASeedAndRecurrence(t *testing.T) {
	p := NewProvider()
	out, err := p.EMA([]float64{1, 2, 3, 4}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !math.IsNaN(out[0]) {
		t.Fatalf("expected NaN before seed, got %v", out[0])
	}
	if out[1] != 1.5 {
		t.Fatalf("expected SMA seed 1.5, got %v", out[1])
	}
	// alpha = 2/3: 3*2/3 + 1.5/3 = 2.5
	if math.Abs(out[2]-2.5) > 1e-12 {
		t.Fatalf("expected 2.5, got %v", out[2])
	}
}

func TestWilderRMAPeriodTooLarge(t *testing.T) {
	p := NewProvider()
	if _, err := p.WilderRMA([]float64{1, 2}, 5); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestTrueRangeLengthMismatch(t *testing.T) {
	if _, err := TrueRange([]float64{1, 2}, []float64{1}, []float64{1, 2}); !errors.Is(err, models.ErrLengthMismatch) {
		t.Fatalf("expected ErrLengthMismatch, got %v", err)
	}
}

func TestRollingExtrema(t *testing.T) {
	p := NewProvider()
	in := []float64{3, 1, 4, 1, 5, 9, 2, 6}
	maxOut, err := p.RollingMax(in, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantMax := []float64{4, 4, 5, 9, 9, 9}
	for i, w := range wantMax {
		if maxOut[i+2] != w {
			t.Fatalf("rolling max[%d]: expected %v, got %v", i+2, w, maxOut[i+2])
		}
	}
	minOut, err := p.RollingMin(in, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantMin := []float64{1, 1, 1, 1, 2, 2}
	for i, w := range wantMin {
		if minOut[i+2] != w {
			t.Fatalf("rolling min[%d]: expected %v, got %v", i+2, w, minOut[i+2])
		}
	}
}

func TestWilderATRWarmup(t *testing.T) {
	atr, err := NewWilderATR(3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := atr.Update(10, 9, 9.5); !errors.Is(err, models.ErrInsufficientData) {
			t.Fatalf("bar %d: expected ErrInsufficientData, got %v", i, err)
		}
	}
	v, err := atr.Update(10, 9, 9.5)
	if err != nil {
		t.Fatalf("unexpected error after warm-up: %v", err)
	}
	if math.Abs(v-1) > 1e-12 {
		t.Fatalf("expected seeded ATR 1, got %v", v)
	}
	if !atr.Warm() {
		t.Fatalf("expected warm")
	}
}

func TestOnlineVariance(t *testing.T) {
	var ov OnlineVariance
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		ov.Push(v)
	}
	if math.Abs(ov.Mean()-5) > 1e-12 {
		t.Fatalf("expected mean 5, got %v", ov.Mean())
	}
	// sample variance of the classic set is 32/7
	if math.Abs(ov.Variance()-32.0/7.0) > 1e-12 {
		t.Fatalf("expected variance %v, got %v", 32.0/7.0, ov.Variance())
	}
}

func TestVarianceConstantSeries(t *testing.T) {
	p := NewProvider()
	v, err := p.Variance([]float64{5, 5, 5, 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected 0 variance, got %v", v)
	}
}
