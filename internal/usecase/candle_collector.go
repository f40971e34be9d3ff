package usecase

import (
	"context"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	mid "SignalForge/internal/middleware"
)

// CandleCollector pulls candle events off the market stream and pushes them
// through the pipeline into the engine manager.
type CandleCollector struct {
	stream  domrepo.MarketStream
	mgr     *EngineManager
	metrics domrepo.Metrics
	pipe    *mid.CandlePipeline
}

func NewCandleCollector(stream domrepo.MarketStream, mgr *EngineManager, metrics domrepo.Metrics, pipe *mid.CandlePipeline) *CandleCollector {
	return &CandleCollector{stream: stream, mgr: mgr, metrics: metrics, pipe: pipe}
}

// IsConnected reports the market stream status.
func (c *CandleCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *CandleCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	evCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, evCh, errCh)
	return nil
}

func (c *CandleCollector) consume(ctx context.Context, evCh <-chan *models.CandleEvent, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
				_ = c.stream.Reconnect(ctx)
			}
		case ev := <-evCh:
			if ev == nil {
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, ev)
			} else {
				_ = c.mgr.Process(ctx, ev)
			}
		}
	}
}

// Shutdown stops the pipeline and closes the stream.
func (c *CandleCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
