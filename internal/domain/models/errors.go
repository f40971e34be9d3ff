package models

import (
	"errors"
	"fmt"
)

// Error kinds shared by every numeric and engine operation. Callers match with
// errors.Is; operations wrap these with context via fmt.Errorf("...: %w", err).
var (
	ErrEmptyInput       = errors.New("empty input")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrInvalidPeriod    = errors.New("invalid period")
	ErrLengthMismatch   = errors.New("length mismatch")
	ErrOutOfRange       = errors.New("out of range")
	ErrComputation      = errors.New("computation error")
	ErrInvalidValue     = errors.New("invalid value")
	ErrInsufficientData = errors.New("insufficient data")
)

// ErrOutOfOrder rejects timestamp regressions on a per-key candle stream.
// It wraps ErrInvalidValue so both kinds match.
var ErrOutOfOrder = fmt.Errorf("out-of-order timestamp: %w", ErrInvalidValue)
