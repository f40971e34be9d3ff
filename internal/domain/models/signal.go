package models

import "time"

// SignalLabel is the discrete trading decision carried by a Signal.
type SignalLabel string

const (
	Buy     SignalLabel = "BUY"
	Sell    SignalLabel = "SELL"
	Neutral SignalLabel = "NEUTRAL"
)

// Signal is the per-indicator decision derived from one bar. Created fresh per
// candle, never mutated after creation.
type Signal struct {
	Label      SignalLabel `json:"label"`
	Strength   float64     `json:"strength"` // [0,1]
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
}

// BarSignal is the full per-bar engine output for one (instrument, timeframe)
// key: trend snapshot, model offset and the derived trade levels.
type BarSignal struct {
	Instrument  string         `json:"instrument"`
	Timeframe   string         `json:"timeframe"`
	Timestamp   int64          `json:"t"`
	TrendLine   float64        `json:"trend_line"`
	Direction   TrendDirection `json:"direction"`
	TrendOffset float64        `json:"trend_offset"`
	BuySignal   bool           `json:"buy_signal"`
	SellSignal  bool           `json:"sell_signal"`
	StopLoss    float64        `json:"stop_loss"`
	TakeProfit  float64        `json:"take_profit"`
	WarmingUp   bool           `json:"warming_up"`
	Signal      Signal         `json:"signal"`
}

// SubSignal is one named vote fed to the ensemble combiner.
type SubSignal struct {
	Label    SignalLabel `json:"label"`
	Strength float64     `json:"strength"`
}

// Decision is the combined ensemble output for one bar.
type Decision struct {
	Instrument string      `json:"instrument"`
	Timeframe  string      `json:"timeframe"`
	Timestamp  int64       `json:"t"`
	Regime     Regime      `json:"market_regime"`
	Final      SignalLabel `json:"final_signal"`
	Confidence float64     `json:"confidence"` // [0,1]
}

// ModelInfo is the audit view of a published regression model.
type ModelInfo struct {
	Instrument string    `json:"instrument"`
	Timeframe  string    `json:"timeframe"`
	Version    uint64    `json:"version"`
	TrainedAt  time.Time `json:"trained_at"`
	Dim        int       `json:"dim"`
	Samples    int       `json:"samples"`
}
