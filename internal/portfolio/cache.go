package portfolio

import (
	"context"
	"strings"
	"sync"
	"time"

	"portfoliotracker/internal/marketdata"
)

// Instrument is a tradable symbol with its last known price.
type Instrument struct {
	Ticker string  `json:"ticker"`
	Price  float64 `json:"price"`
}

// cacheEntry stores one instrument with expiry.
type cacheEntry struct {
	inst      Instrument
	expiresAt time.Time
}

// DefaultTTL bounds price staleness when no TTL is configured.
const DefaultTTL = 60 * time.Second

// PriceCache serves instrument lookups with bounded staleness, keeping calls
// to the market data provider to at most one per ticker per TTL window.
// It is safe for concurrent use and may be shared across portfolios;
// concurrent misses for the same ticker may both fetch, and the later write
// wins with a fresher expiry.
type PriceCache struct {
	provider marketdata.Provider
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// CacheOption configures a PriceCache.
type CacheOption func(*PriceCache)

// WithClock overrides the cache's time source. Tests use it to expire
// entries without sleeping.
func WithClock(now func() time.Time) CacheOption {
	return func(c *PriceCache) {
		c.now = now
	}
}

// NewPriceCache wraps a provider with a TTL cache. A non-positive ttl falls
// back to DefaultTTL.
func NewPriceCache(p marketdata.Provider, ttl time.Duration, opts ...CacheOption) *PriceCache {
	c := &PriceCache{
		provider: p,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]cacheEntry),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NormalizeTicker trims and upper-cases a raw ticker.
func NormalizeTicker(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// Get returns the instrument for ticker, fetching from the provider when the
// cached entry is missing or expired. A failed fetch installs nothing, so the
// cache never holds an entry it could not price.
func (c *PriceCache) Get(ctx context.Context, ticker string) (Instrument, error) {
	sym := NormalizeTicker(ticker)
	if sym == "" {
		return Instrument{}, ErrInvalidTicker
	}

	now := c.now()
	c.mu.RLock()
	e, ok := c.entries[sym]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.inst, nil
	}

	price, err := c.provider.FetchPrice(ctx, sym)
	if err != nil {
		return Instrument{}, err
	}

	inst := Instrument{Ticker: sym, Price: price}
	c.mu.Lock()
	c.entries[sym] = cacheEntry{inst: inst, expiresAt: now.Add(c.ttl)}
	c.mu.Unlock()
	return inst, nil
}

// Invalidate drops the cached entry for ticker, forcing the next Get to
// fetch. Used after an instrument is deleted from the store.
func (c *PriceCache) Invalidate(ticker string) {
	sym := NormalizeTicker(ticker)
	c.mu.Lock()
	delete(c.entries, sym)
	c.mu.Unlock()
}

// Len reports the number of cached entries, expired or not.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
