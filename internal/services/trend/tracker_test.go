package trend

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"SignalForge/internal/domain/models"
)

func bar(ts int64, o, h, l, c float64) models.Candle {
	return models.Candle{Timestamp: ts, Open: o, High: h, Low: l, Close: c, Volume: 100}
}

func TestWarmupReturnsInsufficientData(t *testing.T) {
	tr, err := New(5, 2.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := tr.Update(bar(int64(i), 10, 11, 9, 10)); !errors.Is(err, models.ErrInsufficientData) {
			t.Fatalf("bar %d: expected ErrInsufficientData, got %v", i, err)
		}
		if tr.State().Direction != models.TrendUninit {
			t.Fatalf("bar %d: expected Uninit during warm-up", i)
		}
	}
	st, err := tr.Update(bar(4, 10, 11, 9, 10))
	if err != nil {
		t.Fatalf("unexpected error after warm-up: %v", err)
	}
	if st.Direction == models.TrendUninit {
		t.Fatalf("expected seeded direction after warm-up")
	}
	if !st.Flipped {
		t.Fatalf("expected seed bar to count as a flip")
	}
}

func TestRejectsNonFiniteInput(t *testing.T) {
	tr, _ := New(3, 2.0)
	if _, err := tr.Update(bar(0, 10, math.NaN(), 9, 10)); !errors.Is(err, models.ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
}

func TestRisingSeriesStabilizesUp(t *testing.T) {
	tr, _ := New(10, 3.0)
	price := 100.0
	var st models.TrendState
	var err error
	for i := 0; i < 500; i++ {
		st, err = tr.Update(bar(int64(i), price, price+0.05, price-0.05, price+0.04))
		price += 0.1
		if i < 9 {
			continue
		}
		if err != nil {
			t.Fatalf("bar %d: unexpected error: %v", i, err)
		}
		if st.Direction != models.TrendUp {
			t.Fatalf("bar %d: expected Up, got %v", i, st.Direction)
		}
	}
	if st.TrendLine != st.Lower {
		t.Fatalf("uptrend trend line must track the lower band")
	}
}

func TestBandConvergenceInvariant(t *testing.T) {
	tr, _ := New(14, 3.0)
	rng := rand.New(rand.NewSource(7))
	price := 50.0
	prev := models.TrendState{}
	havePrev := false
	for i := 0; i < 2000; i++ {
		price += rng.Float64() - 0.5
		h := price + rng.Float64()
		l := price - rng.Float64()
		st, err := tr.Update(bar(int64(i), price, h, l, price))
		if errors.Is(err, models.ErrInsufficientData) {
			continue
		}
		if err != nil {
			t.Fatalf("bar %d: unexpected error: %v", i, err)
		}
		if havePrev && !st.Flipped {
			if st.Upper > prev.Upper {
				t.Fatalf("bar %d: upper band rose without a flip: %v > %v", i, st.Upper, prev.Upper)
			}
			if st.Lower < prev.Lower {
				t.Fatalf("bar %d: lower band fell without a flip: %v < %v", i, st.Lower, prev.Lower)
			}
		}
		prev = st
		havePrev = true
	}
}

func TestFlipResetsBands(t *testing.T) {
	tr, _ := New(5, 1.0)
	// warm-up plus seed around a flat price
	for i := 0; i < 20; i++ {
		tr.Update(bar(int64(i), 100, 100.5, 99.5, 100))
	}
	// strong break downward must flip to Down with released bands
	st, err := tr.Update(bar(21, 100, 100, 80, 80))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.Direction != models.TrendDown || !st.Flipped {
		t.Fatalf("expected flip to Down, got %+v", st)
	}
	if st.TrendLine != st.Upper {
		t.Fatalf("downtrend trend line must track the upper band")
	}
}

func TestInvalidConstruction(t *testing.T) {
	if _, err := New(0, 2.0); !errors.Is(err, models.ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
	if _, err := New(10, -1); !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
}
