package models

import (
	"fmt"
	"math"
)

// Candle is a single OHLCV bar. Timestamp is Unix milliseconds. Candles are
// immutable once created and arrive in strictly increasing timestamp order per
// (instrument, timeframe) key. OHLC consistency (high >= max(open,close),
// low <= min(open,close)) is the feed adapter's responsibility.
type Candle struct {
	Timestamp int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
}

// CheckFinite rejects candles carrying NaN or Inf fields.
func (c Candle) CheckFinite() error {
	for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("candle t=%d: %w", c.Timestamp, ErrInvalidValue)
		}
	}
	return nil
}

// Mid is the bar midpoint used for band construction.
func (c Candle) Mid() float64 { return (c.High + c.Low) / 2 }

// CandleEvent is a candle tagged with its stream key, as delivered by a feed
// adapter or decoded from the ingest topic.
type CandleEvent struct {
	Instrument string `json:"instrument"`
	Timeframe  string `json:"tf"`
	Candle     Candle `json:"candle"`
}
