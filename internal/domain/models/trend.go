package models

// TrendDirection enumerates the trend state machine directions.
type TrendDirection int

const (
	TrendUninit TrendDirection = iota
	TrendUp
	TrendDown
)

func (d TrendDirection) String() string {
	switch d {
	case TrendUp:
		return "UP"
	case TrendDown:
		return "DOWN"
	default:
		return "UNINIT"
	}
}

// TrendDirectionFromString parses a stored direction label.
func TrendDirectionFromString(s string) TrendDirection {
	switch s {
	case "UP":
		return TrendUp
	case "DOWN":
		return TrendDown
	default:
		return TrendUninit
	}
}

// TrendState is the dynamic support/resistance snapshot owned by one tracker
// instance per (instrument, timeframe) key. Mutated only by sequential updates.
type TrendState struct {
	Direction TrendDirection `json:"direction"`
	Upper     float64        `json:"upper_band"`
	Lower     float64        `json:"lower_band"`
	TrendLine float64        `json:"trend_line"`
	// Flipped marks that Direction changed on the most recent update
	// (including the initial direction seed).
	Flipped bool `json:"flipped"`
}
