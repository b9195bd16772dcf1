package marketdata

import (
	"context"
	"errors"
)

// ErrNotFound means the provider does not know the ticker.
var ErrNotFound = errors.New("ticker not found")

// ErrUnavailable means a transient provider failure (timeout, network error,
// rate limiting upstream). Callers may retry; ErrNotFound callers should not.
var ErrUnavailable = errors.New("market data unavailable")

// Provider is the narrow contract the rest of the system consumes.
//
//go:generate mockgen -package=portfolio_test -destination=../portfolio/mock_provider_test.go -source=provider.go Provider
type Provider interface {
	// FetchPrice returns the current price for a ticker.
	FetchPrice(ctx context.Context, ticker string) (float64, error)
	// IsValid reports whether the ticker identifies a real instrument.
	IsValid(ctx context.Context, ticker string) (bool, error)
}
