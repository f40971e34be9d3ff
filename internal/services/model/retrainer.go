package model

import (
	"context"
	"errors"
	"sync"
)

// Retrainer runs retrains as cancellable background tasks. A trigger arriving
// while a fit is in flight supersedes it: the prior task is cancelled and its
// result discarded, so at most one snapshot is published per trigger.
type Retrainer struct {
	model *Model

	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// onDone, when set, observes every publish (or terminal fit error).
	onDone func(version uint64, err error)

	// fitDone, when set, runs after a fit completes and before the supersede
	// check. Tests use it to pin an interleaving.
	fitDone func(seq uint64)
}

func NewRetrainer(m *Model) *Retrainer {
	return &Retrainer{model: m}
}

// SetObserver installs a completion callback (version 0 on failure).
func (r *Retrainer) SetObserver(fn func(version uint64, err error)) { r.onDone = fn }

// Trigger schedules a background retrain off a consistent buffer snapshot,
// superseding any in-flight one.
func (r *Retrainer) Trigger(ctx context.Context) {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	fitCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.seq++
	seq := r.seq
	r.mu.Unlock()

	samples := r.model.snapshot()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		st, err := r.model.fit(fitCtx, samples)
		if err != nil {
			if !errors.Is(err, context.Canceled) && r.onDone != nil {
				r.onDone(0, err)
			}
			return
		}

		if r.fitDone != nil {
			r.fitDone(seq)
		}

		// Publish only if no newer trigger superseded this fit. The check and
		// the publish stay under one lock so a trigger landing between them
		// cannot have its result overwritten by this stale fit.
		r.mu.Lock()
		if r.seq != seq || fitCtx.Err() != nil {
			r.mu.Unlock()
			return
		}
		r.model.publish(st)
		onDone := r.onDone
		version := st.Version
		r.mu.Unlock()
		if onDone != nil {
			onDone(version, nil)
		}
	}()
}

// Wait blocks until all scheduled retrains have finished. Used at shutdown.
func (r *Retrainer) Wait() { r.wg.Wait() }
