package repository

// Timeframe represents candle resolution buckets.
type Timeframe string

const (
	TF1s Timeframe = "1s"
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
)

// Key identifies one independent engine stream. Streams with different keys
// share no mutable state and may be processed concurrently.
type Key struct {
	Instrument string
	Timeframe  Timeframe
}

func (k Key) String() string { return k.Instrument + ":" + string(k.Timeframe) }
