package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/pkg/util"
)

// SignalsUseCase serves read queries for the HTTP API: latest aggregates from
// the cache (falling back to worker snapshots), signal history from the
// store, and ad-hoc ensemble evaluation.
type SignalsUseCase struct {
	mgr     *EngineManager
	store   domrepo.SignalStore
	cache   domrepo.SignalCache
	timeout time.Duration
}

func NewSignalsUseCase(mgr *EngineManager, store domrepo.SignalStore, cache domrepo.SignalCache) *SignalsUseCase {
	return &SignalsUseCase{mgr: mgr, store: store, cache: cache, timeout: 10 * time.Second}
}

// GetLatest returns the most recent aggregate for a key. Cache first, then
// the live worker snapshot; a key never seen by either is a miss.
func (uc *SignalsUseCase) GetLatest(ctx context.Context, key domrepo.Key) (*models.AggregateSignals, error) {
	if key.Instrument == "" {
		return nil, fmt.Errorf("instrument required: %w", models.ErrInvalidValue)
	}
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	if uc.cache != nil {
		if agg, ok, err := uc.cache.GetLatest(ctx, key); err == nil && ok {
			return agg, nil
		}
	}
	if agg, ok := uc.mgr.Snapshot(key); ok {
		return agg, nil
	}
	return nil, fmt.Errorf("no signals for %s: %w", key, models.ErrInsufficientData)
}

// GetRegime returns the current regime decision for a key.
func (uc *SignalsUseCase) GetRegime(ctx context.Context, key domrepo.Key) (*models.Decision, error) {
	agg, err := uc.GetLatest(ctx, key)
	if err != nil {
		return nil, err
	}
	if agg.Decision == nil {
		return nil, fmt.Errorf("regime for %s: %w", key, models.ErrInsufficientData)
	}
	return agg.Decision, nil
}

// GetModelInfo returns the published model audit view for a key.
func (uc *SignalsUseCase) GetModelInfo(ctx context.Context, key domrepo.Key) (*models.ModelInfo, error) {
	if info, ok := uc.mgr.ModelInfo(key); ok && info != nil {
		return info, nil
	}
	agg, err := uc.GetLatest(ctx, key)
	if err != nil {
		return nil, err
	}
	if agg.Model == nil {
		return nil, fmt.Errorf("model for %s: %w", key, models.ErrInsufficientData)
	}
	return agg.Model, nil
}

// QuerySignals returns stored per-bar signals for a key and time range.
func (uc *SignalsUseCase) QuerySignals(ctx context.Context, key domrepo.Key, from, to time.Time, limit int) ([]*models.BarSignal, error) {
	if uc.store == nil {
		return nil, fmt.Errorf("signal store unavailable")
	}
	if from.After(to) {
		return nil, fmt.Errorf("from must be <= to: %w", models.ErrInvalidParameter)
	}
	if limit <= 0 {
		limit = 1000
	}
	if limit > 50000 {
		limit = 50000
	}
	from, to = util.AlignFromTo(from, to, string(key.Timeframe))
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()
	return uc.store.QuerySignals(ctx, key, from, to, limit)
}

// Evaluate folds caller-supplied votes with the key's current regime and the
// live weight tables. With no votes it returns the key's current decision.
func (uc *SignalsUseCase) Evaluate(ctx context.Context, key domrepo.Key, votes map[string]models.SubSignal) (*models.Decision, error) {
	dec, err := uc.GetRegime(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(votes) == 0 {
		return dec, nil
	}
	label, conf, err := uc.mgr.Combiner().Combine(dec.Regime, votes)
	if err != nil {
		return nil, err
	}
	return &models.Decision{
		Instrument: key.Instrument,
		Timeframe:  string(key.Timeframe),
		Timestamp:  dec.Timestamp,
		Regime:     dec.Regime,
		Final:      label,
		Confidence: conf,
	}, nil
}
