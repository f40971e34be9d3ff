package repository

// IsValidTimeframe reports whether tf is a supported resolution.
func IsValidTimeframe(tf Timeframe) bool {
	switch tf {
	case TF1s, TF1m, TF5m:
		return true
	}
	return false
}

// DefaultTimeframe is the resolution assumed when none is given.
func DefaultTimeframe() Timeframe { return TF1m }

// NormalizeTimeframe converts a raw string to a valid timeframe, falling back
// to the default for empty or unknown values.
func NormalizeTimeframe(s string) Timeframe {
	if tf := Timeframe(s); IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}

// NewKey builds a stream key from raw instrument and timeframe strings.
func NewKey(instrument, tf string) Key {
	return Key{Instrument: instrument, Timeframe: NormalizeTimeframe(tf)}
}
