// Package ratelimit gates calls to a market data provider. Alpha Vantage's
// free tier allows a handful of requests per minute, so both quote and
// symbol-search calls go through the same bucket.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"portfoliotracker/internal/marketdata"
)

// TokenBucket is a stdlib-only token bucket limiter.
// rate is tokens per second; capacity is the maximum burst.
type TokenBucket struct {
	rate     float64
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

func NewTokenBucket(tokensPerSecond float64, burst int) *TokenBucket {
	if tokensPerSecond <= 0 {
		tokensPerSecond = 0.0000001
	}
	if burst <= 0 {
		burst = 1
	}
	return &TokenBucket{
		rate:     tokensPerSecond,
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// wait blocks until one token is available or the context is canceled.
func (tb *TokenBucket) wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.last).Seconds()
		if elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()

		waitDur := time.Duration(deficit / tb.rate * float64(time.Second))
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		timer := time.NewTimer(waitDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Provider wraps a marketdata.Provider and gates every call through a token
// bucket.
type Provider struct {
	P  marketdata.Provider
	TB *TokenBucket
}

func (p *Provider) FetchPrice(ctx context.Context, ticker string) (float64, error) {
	if p.TB != nil {
		if err := p.TB.wait(ctx); err != nil {
			return 0, err
		}
	}
	return p.P.FetchPrice(ctx, ticker)
}

func (p *Provider) IsValid(ctx context.Context, ticker string) (bool, error) {
	if p.TB != nil {
		if err := p.TB.wait(ctx); err != nil {
			return false, err
		}
	}
	return p.P.IsValid(ctx, ticker)
}

// MinInterval wraps a provider and enforces a minimum time between calls.
// Concurrent calls wait until the interval has elapsed since the last call,
// or return early if the context is canceled.
type MinInterval struct {
	P        marketdata.Provider
	Interval time.Duration

	mu   sync.Mutex
	last time.Time
}

func (m *MinInterval) gate(ctx context.Context) error {
	if m.Interval <= 0 {
		return nil
	}
	m.mu.Lock()
	wait := time.Until(m.last.Add(m.Interval))
	m.mu.Unlock()
	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

func (m *MinInterval) mark() {
	if m.Interval <= 0 {
		return
	}
	m.mu.Lock()
	m.last = time.Now()
	m.mu.Unlock()
}

func (m *MinInterval) FetchPrice(ctx context.Context, ticker string) (float64, error) {
	if err := m.gate(ctx); err != nil {
		return 0, err
	}
	price, err := m.P.FetchPrice(ctx, ticker)
	m.mark()
	return price, err
}

func (m *MinInterval) IsValid(ctx context.Context, ticker string) (bool, error) {
	if err := m.gate(ctx); err != nil {
		return false, err
	}
	ok, err := m.P.IsValid(ctx, ticker)
	m.mark()
	return ok, err
}
