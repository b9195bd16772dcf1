package portfolio

import (
	"errors"
	"fmt"
)

// ErrEmptyPortfolio is returned by sell and valuation operations when the
// ledger holds no shares at all.
var ErrEmptyPortfolio = errors.New("portfolio is empty")

// ErrInvalidTicker is returned when a ticker is empty after normalization.
var ErrInvalidTicker = errors.New("ticker must be a non-empty symbol")

// InvalidShareCountError rejects share counts that are not positive whole
// numbers. Raw carries the offending input for user-facing messages.
type InvalidShareCountError struct {
	Raw any
}

func (e *InvalidShareCountError) Error() string {
	return fmt.Sprintf("number of shares must be a positive integer, got %v", e.Raw)
}

// NotOwnedError is returned by sell when the ticker is absent from holdings.
type NotOwnedError struct {
	Ticker string
}

func (e *NotOwnedError) Error() string {
	return fmt.Sprintf("no shares of %s owned", e.Ticker)
}

// InsufficientSharesError is returned by sell when the requested quantity
// exceeds the owned quantity. Both counts are part of the payload so callers
// can build messages without parsing error text.
type InsufficientSharesError struct {
	Ticker    string
	Owned     int
	Requested int
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("own %d shares of %s, attempted to sell %d", e.Owned, e.Ticker, e.Requested)
}

// UnknownInstrumentError is returned when a ticker cannot be resolved through
// the cache or the market data provider. It wraps the underlying cause so
// callers can distinguish a bad symbol from a transient provider failure.
type UnknownInstrumentError struct {
	Ticker string
	Err    error
}

func (e *UnknownInstrumentError) Error() string {
	return fmt.Sprintf("could not resolve instrument %s: %v", e.Ticker, e.Err)
}

func (e *UnknownInstrumentError) Unwrap() error { return e.Err }
