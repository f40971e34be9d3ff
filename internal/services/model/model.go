package model

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"SignalForge/internal/domain/models"
	domsvc "SignalForge/internal/domain/service"
)

// Kind selects the regression variant. Resolved once at construction, never
// re-dispatched per call.
type Kind int

const (
	Linreg Kind = iota
	Ridge
)

// KindFromString parses the configured model type.
func KindFromString(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "linreg":
		return Linreg, nil
	case "ridge":
		return Ridge, nil
	}
	return 0, fmt.Errorf("model type %q: %w", s, models.ErrInvalidParameter)
}

// Model is the rolling-window regression predicting a trend offset. Pushes
// and retrains are serialised by the owner (one engine per key); Predict may
// run concurrently with an in-flight retrain because publication is a single
// atomic pointer swap over an immutable snapshot.
type Model struct {
	kind   Kind
	alpha  float64
	window int
	dim    int

	mu  sync.Mutex // guards buf
	buf *ring

	pubMu     sync.Mutex // serialises publishes so versions stay monotonic
	published atomic.Pointer[models.ModelState]
	version   atomic.Uint64
}

func New(kind Kind, window, dim int, alpha float64) (*Model, error) {
	if window <= 0 {
		return nil, fmt.Errorf("model: train window %d: %w", window, models.ErrInvalidParameter)
	}
	if dim <= 0 {
		return nil, fmt.Errorf("model: feature dim %d: %w", dim, models.ErrInvalidParameter)
	}
	if alpha < 0 || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return nil, fmt.Errorf("model: alpha %v: %w", alpha, models.ErrInvalidParameter)
	}
	if kind == Linreg {
		alpha = 0
	}
	return &Model{kind: kind, alpha: alpha, window: window, dim: dim, buf: newRing(window)}, nil
}

var _ domsvc.OffsetModel = (*Model)(nil)

// Push inserts one training sample, evicting the oldest when full. O(1).
func (m *Model) Push(s models.TrainingSample) error {
	if len(s.Features) != m.dim {
		return fmt.Errorf("model: push dim %d, want %d: %w", len(s.Features), m.dim, models.ErrLengthMismatch)
	}
	if math.IsNaN(s.Target) || math.IsInf(s.Target, 0) {
		return fmt.Errorf("model: target: %w", models.ErrInvalidValue)
	}
	for _, v := range s.Features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("model: feature: %w", models.ErrInvalidValue)
		}
	}
	m.mu.Lock()
	m.buf.push(s)
	m.mu.Unlock()
	return nil
}

// Len returns the number of buffered samples.
func (m *Model) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.len()
}

// Full reports whether the training buffer has reached capacity.
func (m *Model) Full() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.full()
}

// Retrain fits the current buffer contents and atomically publishes the new
// snapshot. O(window·d² + d³).
func (m *Model) Retrain(ctx context.Context) (*models.ModelState, error) {
	st, err := m.fit(ctx, m.snapshot())
	if err != nil {
		return nil, err
	}
	m.publish(st)
	return st, nil
}

// Predict returns the dot product against the currently published snapshot.
// O(d); never blocks on a retrain.
func (m *Model) Predict(features models.FeatureVector) (float64, error) {
	st := m.published.Load()
	if st == nil {
		return 0, fmt.Errorf("model: no published model: %w", models.ErrInsufficientData)
	}
	if len(features) != len(st.Coefficients) {
		return 0, fmt.Errorf("model: predict dim %d, want %d: %w", len(features), len(st.Coefficients), models.ErrLengthMismatch)
	}
	sum := st.Intercept
	for i, c := range st.Coefficients {
		sum += c * features[i]
	}
	return sum, nil
}

// Published returns the current model snapshot (nil before the first retrain).
func (m *Model) Published() *models.ModelState { return m.published.Load() }

func (m *Model) snapshot() []models.TrainingSample {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buf.snapshot()
}

// fit solves the normal equations off to the side without publishing.
func (m *Model) fit(ctx context.Context, samples []models.TrainingSample) (*models.ModelState, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("model: retrain: %w", models.ErrInsufficientData)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	coef, intercept, err := solveNormal(samples, m.dim, m.alpha)
	if err != nil {
		return nil, err
	}
	return &models.ModelState{
		Coefficients: coef,
		Intercept:    intercept,
		TrainedAt:    time.Now().UTC(),
	}, nil
}

// publish makes the snapshot visible with a single pointer swap. Readers of
// the prior snapshot are never locked out or shown partial state.
func (m *Model) publish(st *models.ModelState) {
	m.pubMu.Lock()
	st.Version = m.version.Add(1)
	m.published.Store(st)
	m.pubMu.Unlock()
}
