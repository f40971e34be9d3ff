package models

// AggregateSignals is a consolidated per-key view served by the HTTP API:
// the latest per-bar signal, the ensemble decision behind it, and the model
// audit info. No transport (json/http) concerns beyond field tags.
type AggregateSignals struct {
	Instrument string            `json:"instrument"`
	Timeframe  string            `json:"timeframe"`
	Bar        *BarSignal        `json:"bar,omitempty"`
	Decision   *Decision         `json:"decision,omitempty"`
	Model      *ModelInfo        `json:"model,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}
