package usecase

import (
	"context"
	"encoding/json"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	pkgkafka "SignalForge/pkg/kafka"
)

// KafkaCandlesHandler consumes closed candles from Kafka and feeds them into
// the engine manager.
type KafkaCandlesHandler struct {
	topic   string
	mgr     *EngineManager
	metrics domrepo.Metrics
}

func NewKafkaCandlesHandler(topic string, mgr *EngineManager, metrics domrepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, mgr: mgr, metrics: metrics}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// incoming message schema: {instrument, tf, t, o, h, l, c, v}; t in ms
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		Instrument string  `json:"instrument"`
		TF         string  `json:"tf"`
		T          int64   `json:"t"`
		O          float64 `json:"o"`
		H          float64 `json:"h"`
		L          float64 `json:"l"`
		C          float64 `json:"c"`
		V          float64 `json:"v"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	if m.T > 0 && m.T < 1e12 { // sec, normalise to ms
		m.T = m.T * 1000
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(time.UnixMilli(m.T)).Seconds())

	ev := &models.CandleEvent{
		Instrument: m.Instrument,
		Timeframe:  m.TF,
		Candle: models.Candle{
			Timestamp: m.T,
			Open:      m.O,
			High:      m.H,
			Low:       m.L,
			Close:     m.C,
			Volume:    m.V,
		},
	}
	if err := h.mgr.Process(ctx, ev); err != nil {
		h.metrics.RecordError("consumer_dispatch")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
