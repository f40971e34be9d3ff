package models

// Requests for the signal HTTP endpoints. Defined in domain for consistency and reuse.

type SignalRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
}

type RegimeRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
}

// EnsembleRequest evaluates votes against the live weight tables. With no
// votes supplied the endpoint returns the key's current decision.
type EnsembleRequest struct {
	Instrument string               `query:"instrument" json:"instrument" validate:"required"`
	TF         string               `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	Votes      map[string]SubSignal `json:"votes,omitempty"`
}

type SignalHistoryRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
	// From and To accept RFC3339 timestamps or unix seconds.
	From  string `query:"from" json:"from"`
	To    string `query:"to" json:"to"`
	Limit int    `query:"limit" json:"limit" default:"1000" validate:"gte=0,lte=50000"`
}

type ModelInfoRequest struct {
	Instrument string `query:"instrument" json:"instrument" validate:"required"`
	TF         string `query:"tf" json:"tf" default:"1m" validate:"oneof=1s 1m 5m"`
}
