package regime

import (
	"errors"
	"testing"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/services/kernels"
)

// rampWindow builds period bars with a controlled total close change and
// high/low range, both in percent of the starting price.
func rampWindow(period int, changePct, rangePct float64) []models.Candle {
	start := 100.0
	end := start * (1 + changePct/100)
	lo := start
	hi := lo * (1 + rangePct/100)
	out := make([]models.Candle, period)
	for i := range out {
		c := start + (end-start)*float64(i)/float64(period-1)
		out[i] = models.Candle{Timestamp: int64(i), Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	// pin the window extremes on interior bars
	out[period/2].High = hi
	out[period/3].Low = lo
	return out
}

func newClassifier(t *testing.T, period int) *Classifier {
	t.Helper()
	c, err := New(period, kernels.NewProvider())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestInsufficientData(t *testing.T) {
	c := newClassifier(t, 400)
	if _, err := c.Classify(rampWindow(399, 1, 1)); !errors.Is(err, models.ErrInsufficientData) {
		t.Fatalf("expected ErrInsufficientData, got %v", err)
	}
}

func TestHighRangeEfficientIsTrending(t *testing.T) {
	c := newClassifier(t, 400)
	// change 74%, range 80% -> efficiency ~0.93
	r, err := c.Classify(rampWindow(400, 74, 80))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != models.RegimeTrending {
		t.Fatalf("expected TRENDING, got %v", r)
	}
}

func TestHighRangeInefficientIsVolatile(t *testing.T) {
	c := newClassifier(t, 400)
	// change 6%, range 80% -> efficiency ~0.075
	r, err := c.Classify(rampWindow(400, 6, 80))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != models.RegimeVolatile {
		t.Fatalf("expected VOLATILE, got %v", r)
	}
}

func TestStrongMoveModestRangeIsTrending(t *testing.T) {
	c := newClassifier(t, 100)
	r, err := c.Classify(rampWindow(100, 10, 20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != models.RegimeTrending {
		t.Fatalf("expected TRENDING, got %v", r)
	}
}

func TestMidRangeIsVolatile(t *testing.T) {
	c := newClassifier(t, 100)
	r, err := c.Classify(rampWindow(100, 2, 40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != models.RegimeVolatile {
		t.Fatalf("expected VOLATILE, got %v", r)
	}
}

func TestQuietWindowIsRanging(t *testing.T) {
	c := newClassifier(t, 100)
	r, err := c.Classify(rampWindow(100, 1, 5))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != models.RegimeRanging {
		t.Fatalf("expected RANGING, got %v", r)
	}
}

func TestUsesOnlyTrailingWindow(t *testing.T) {
	c := newClassifier(t, 100)
	// noisy prefix followed by a quiet trailing window
	prefix := rampWindow(100, 70, 90)
	quiet := rampWindow(100, 1, 5)
	all := append(prefix, quiet...)
	r, err := c.Classify(all)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r != models.RegimeRanging {
		t.Fatalf("expected RANGING from trailing window, got %v", r)
	}
}
