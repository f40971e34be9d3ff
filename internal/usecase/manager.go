package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	domsvc "SignalForge/internal/domain/service"
	"SignalForge/internal/services/engine"
	"SignalForge/internal/services/ensemble"
	"SignalForge/internal/services/kernels"
	"SignalForge/internal/services/regime"
	"SignalForge/internal/services/subsignal"
	applogger "SignalForge/pkg/logger"
)

// ManagerConfig bundles the per-key engine parameters plus the shared regime
// and sub-signal settings.
type ManagerConfig struct {
	Engine       engine.Config
	RegimePeriod int
	EMAFast      int
	EMASlow      int
	MomentumWin  int
	WeightTables map[models.Regime]models.RegimeWeights
	Threshold    float64
	// QueueSize is the per-worker inbox capacity.
	QueueSize int
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	if c.RegimePeriod <= 0 {
		c.RegimePeriod = regime.DefaultPeriod
	}
	if c.EMAFast <= 0 {
		c.EMAFast = 12
	}
	if c.EMASlow <= 0 {
		c.EMASlow = 26
	}
	if c.MomentumWin <= 0 {
		c.MomentumWin = 20
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// EngineManager owns one worker per (instrument, timeframe) key. Workers share
// nothing; each candle is handled by exactly one goroutine, so per-key output
// stays a deterministic function of that key's candle sequence.
type EngineManager struct {
	cfg      ManagerConfig
	combiner domsvc.EnsembleCombiner
	pub      domrepo.SignalPublisher
	store    domrepo.SignalStore
	cache    domrepo.SignalCache
	metrics  domrepo.Metrics
	l        *applogger.Logger

	// baseCtx outlives any caller context so a short-lived Process caller
	// cannot tear down the worker it happened to spawn.
	baseCtx       context.Context
	cancelWorkers context.CancelFunc

	mu      sync.RWMutex
	workers map[domrepo.Key]*keyWorker
	wg      sync.WaitGroup
	closed  bool
}

func NewEngineManager(
	cfg ManagerConfig,
	pub domrepo.SignalPublisher,
	store domrepo.SignalStore,
	cache domrepo.SignalCache,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) (*EngineManager, error) {
	cfg = cfg.withDefaults()
	comb, err := ensemble.New(cfg.WeightTables, cfg.Threshold)
	if err != nil {
		return nil, fmt.Errorf("ensemble config: %w", err)
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	return &EngineManager{
		cfg:           cfg,
		combiner:      comb,
		pub:           pub,
		store:         store,
		cache:         cache,
		metrics:       metrics,
		l:             l,
		baseCtx:       baseCtx,
		cancelWorkers: cancel,
		workers:       make(map[domrepo.Key]*keyWorker),
	}, nil
}

// Process routes one event to its key's worker, creating the worker on first
// sight. It blocks when the worker inbox is full, which is the backpressure
// the pipeline's buffer absorbs.
func (m *EngineManager) Process(ctx context.Context, ev *models.CandleEvent) error {
	if ev == nil || ev.Instrument == "" {
		return fmt.Errorf("candle event: %w", models.ErrInvalidValue)
	}
	key := domrepo.NewKey(ev.Instrument, ev.Timeframe)
	w, err := m.worker(key)
	if err != nil {
		return err
	}
	select {
	case w.inbox <- ev.Candle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessSync runs one candle through a key's worker on the caller's
// goroutine. Used by tests and replay tooling; must not be mixed with Process
// for the same key.
func (m *EngineManager) ProcessSync(ctx context.Context, key domrepo.Key, c models.Candle) (*models.AggregateSignals, error) {
	w, err := m.worker(key)
	if err != nil {
		return nil, err
	}
	return w.handle(ctx, c)
}

// Snapshot returns the latest aggregate output for a key, if any.
func (m *EngineManager) Snapshot(key domrepo.Key) (*models.AggregateSignals, bool) {
	m.mu.RLock()
	w, ok := m.workers[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return w.snapshot()
}

// ModelInfo returns the published model audit view for a key.
func (m *EngineManager) ModelInfo(key domrepo.Key) (*models.ModelInfo, bool) {
	m.mu.RLock()
	w, ok := m.workers[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return w.modelInfo(), true
}

// Combiner exposes the shared ensemble combiner for read-only evaluation.
func (m *EngineManager) Combiner() domsvc.EnsembleCombiner { return m.combiner }

// Keys lists the keys with live workers.
func (m *EngineManager) Keys() []domrepo.Key {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domrepo.Key, 0, len(m.workers))
	for k := range m.workers {
		out = append(out, k)
	}
	return out
}

// worker returns the key's worker, spawning it on first sight. Workers run on
// the manager's own context, not the caller's, so their lifetime matches the
// manager's regardless of who touched the key first.
func (m *EngineManager) worker(key domrepo.Key) (*keyWorker, error) {
	m.mu.RLock()
	w, ok := m.workers[key]
	m.mu.RUnlock()
	if ok {
		return w, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("engine manager closed")
	}
	if w, ok = m.workers[key]; ok {
		return w, nil
	}
	w, err := m.newWorker(key)
	if err != nil {
		return nil, err
	}
	m.workers[key] = w
	m.wg.Add(1)
	go w.run(m.baseCtx, &m.wg)
	if m.l != nil {
		m.l.Info("engine worker started",
			applogger.String("instrument", key.Instrument),
			applogger.String("tf", string(key.Timeframe)),
		)
	}
	return w, nil
}

func (m *EngineManager) newWorker(key domrepo.Key) (*keyWorker, error) {
	gen, err := engine.New(key, m.cfg.Engine)
	if err != nil {
		return nil, fmt.Errorf("generator %s: %w", key, err)
	}
	cls, err := regime.New(m.cfg.RegimePeriod, kernels.NewProvider())
	if err != nil {
		return nil, fmt.Errorf("regime classifier %s: %w", key, err)
	}
	emaCross, err := subsignal.NewEMACross(m.cfg.EMAFast, m.cfg.EMASlow)
	if err != nil {
		return nil, fmt.Errorf("ema cross %s: %w", key, err)
	}
	momentum, err := subsignal.NewMomentum(m.cfg.MomentumWin)
	if err != nil {
		return nil, fmt.Errorf("momentum %s: %w", key, err)
	}
	return &keyWorker{
		mgr:     m,
		key:     key,
		gen:     gen,
		cls:     cls,
		sources: []subsignal.Source{emaCross, momentum},
		window:  make([]models.Candle, 0, m.cfg.RegimePeriod),
		inbox:   make(chan models.Candle, m.cfg.QueueSize),
	}, nil
}

// Stop closes worker inboxes and waits for in-flight candles to finish.
func (m *EngineManager) Stop() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	for _, w := range m.workers {
		close(w.inbox)
	}
	m.mu.Unlock()
	m.wg.Wait()
	m.cancelWorkers()
}

// keyWorker is the single-goroutine owner of one key's engine state.
type keyWorker struct {
	mgr     *EngineManager
	key     domrepo.Key
	gen     *engine.Generator
	cls     domsvc.RegimeClassifier
	sources []subsignal.Source
	window  []models.Candle
	inbox   chan models.Candle

	lastModelVersion uint64

	outMu sync.RWMutex
	out   *models.AggregateSignals
}

func (w *keyWorker) run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-w.inbox:
			if !ok {
				return
			}
			if _, err := w.handle(ctx, c); err != nil && w.mgr.l != nil {
				w.mgr.l.Warn("candle rejected",
					applogger.String("instrument", w.key.Instrument),
					applogger.String("tf", string(w.key.Timeframe)),
					applogger.Error(err),
				)
			}
		}
	}
}

// handle runs the full per-bar sequence: engine update, regime window,
// sub-signal votes, ensemble decision, then fan-out to publisher, store and
// cache. Warm-up bars are returned but never published downstream.
func (w *keyWorker) handle(ctx context.Context, c models.Candle) (*models.AggregateSignals, error) {
	start := time.Now()
	bar, err := w.gen.Update(ctx, c)
	if err != nil {
		w.mgr.metrics.RecordError("engine_update")
		return nil, err
	}
	w.pushWindow(c)
	for _, s := range w.sources {
		s.Push(c.Close)
	}

	agg := &models.AggregateSignals{
		Instrument: w.key.Instrument,
		Timeframe:  string(w.key.Timeframe),
		Bar:        bar,
	}

	if !bar.WarmingUp {
		if dec, derr := w.decide(bar); derr != nil {
			agg.Errors = map[string]string{"ensemble": derr.Error()}
			w.mgr.metrics.RecordError("ensemble")
		} else if dec != nil {
			agg.Decision = dec
		}
	}
	agg.Model = w.modelInfo()

	w.fanOut(ctx, agg)
	w.setSnapshot(agg)

	w.mgr.metrics.RecordLastPrice(w.key.Instrument, c.Close)
	w.mgr.metrics.RecordLatency("bar_handle", time.Since(start).Seconds())
	return agg, nil
}

// decide classifies the regime from the trailing window and folds the votes.
// Before the window is full no decision is made.
func (w *keyWorker) decide(bar *models.BarSignal) (*models.Decision, error) {
	if len(w.window) < w.mgr.cfg.RegimePeriod {
		return nil, nil
	}
	rg, err := w.cls.Classify(w.window)
	if err != nil {
		return nil, err
	}

	votes := map[string]models.SubSignal{
		"ml_trend": {Label: bar.Signal.Label, Strength: bar.Signal.Strength},
	}
	for _, s := range w.sources {
		if v, ok := s.Vote(); ok {
			votes[s.Name()] = v
		}
	}

	label, conf, err := w.mgr.combiner.Combine(rg, votes)
	if err != nil {
		return nil, err
	}
	return &models.Decision{
		Instrument: w.key.Instrument,
		Timeframe:  string(w.key.Timeframe),
		Timestamp:  bar.Timestamp,
		Regime:     rg,
		Final:      label,
		Confidence: conf,
	}, nil
}

// fanOut pushes the bar and decision downstream. Warm-up bars carry NaN
// fields that cannot be JSON-encoded, so they stop here. Downstream errors
// are recorded but never fail the bar.
func (w *keyWorker) fanOut(ctx context.Context, agg *models.AggregateSignals) {
	if agg.Bar == nil || agg.Bar.WarmingUp {
		return
	}
	if w.mgr.pub != nil {
		if err := w.mgr.pub.PublishSignal(ctx, w.key, agg.Bar); err != nil {
			w.mgr.metrics.RecordError("publish_signal")
		}
	}
	if w.mgr.store != nil {
		if err := w.mgr.store.StoreSignal(ctx, w.key, agg.Bar); err != nil {
			w.mgr.metrics.RecordError("store_signal")
		}
	}
	if agg.Decision != nil {
		if w.mgr.pub != nil {
			if err := w.mgr.pub.PublishDecision(ctx, w.key, agg.Decision); err != nil {
				w.mgr.metrics.RecordError("publish_decision")
			}
		}
		if w.mgr.store != nil {
			if err := w.mgr.store.StoreDecision(ctx, w.key, agg.Decision); err != nil {
				w.mgr.metrics.RecordError("store_decision")
			}
		}
	}
	if w.mgr.cache != nil {
		if err := w.mgr.cache.SetLatest(ctx, w.key, agg); err != nil {
			w.mgr.metrics.RecordError("cache_set")
		}
	}
	w.mgr.metrics.RecordSignal(w.key.Instrument, string(agg.Bar.Signal.Label))

	if agg.Model != nil && agg.Model.Version > w.lastModelVersion {
		w.lastModelVersion = agg.Model.Version
		w.mgr.metrics.RecordRetrain(w.key.Instrument, "published")
		if w.mgr.store != nil {
			if err := w.mgr.store.StoreModelVersion(ctx, w.key, agg.Model); err != nil {
				w.mgr.metrics.RecordError("store_model_version")
			}
		}
	}
}

func (w *keyWorker) pushWindow(c models.Candle) {
	if len(w.window) == w.mgr.cfg.RegimePeriod {
		copy(w.window, w.window[1:])
		w.window = w.window[:w.mgr.cfg.RegimePeriod-1]
	}
	w.window = append(w.window, c)
}

func (w *keyWorker) modelInfo() *models.ModelInfo {
	st := w.gen.Model().Published()
	if st == nil {
		return nil
	}
	return &models.ModelInfo{
		Instrument: w.key.Instrument,
		Timeframe:  string(w.key.Timeframe),
		Version:    st.Version,
		TrainedAt:  st.TrainedAt,
		Dim:        st.Dim(),
		Samples:    w.gen.Model().Len(),
	}
}

func (w *keyWorker) snapshot() (*models.AggregateSignals, bool) {
	w.outMu.RLock()
	defer w.outMu.RUnlock()
	return w.out, w.out != nil
}

func (w *keyWorker) setSnapshot(agg *models.AggregateSignals) {
	w.outMu.Lock()
	w.out = agg
	w.outMu.Unlock()
}
