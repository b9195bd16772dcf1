package portfolio

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// TradeType tags a receipt as a purchase or a sale.
type TradeType string

const (
	TradeBuy  TradeType = "BUY"
	TradeSell TradeType = "SELL"
)

// Receipt is the immutable record of a completed trade. The engine returns
// it to the caller and keeps no copy.
type Receipt struct {
	ID            string    `json:"id"`
	Type          TradeType `json:"transaction_type"`
	Ticker        string    `json:"ticker"`
	Shares        int       `json:"shares"`
	PricePerShare float64   `json:"price_per_share"`
	Total         float64   `json:"total"`
	Timestamp     time.Time `json:"timestamp"`
}

// Holding is one row of a portfolio summary.
type Holding struct {
	Ticker       string  `json:"ticker"`
	Quantity     int     `json:"quantity"`
	CurrentPrice float64 `json:"current_price"`
	Value        float64 `json:"holding_value"`
}

// Summary is the total portfolio value with a per-ticker breakdown computed
// from the same refreshed prices.
type Summary struct {
	TotalValue float64   `json:"total_value"`
	Holdings   []Holding `json:"holdings"`
}

// Engine validates and executes trades against a single portfolio. It owns
// the holdings ledger; prices come through the injected cache. The engine is
// not safe for concurrent mutation, callers serialize access per portfolio.
type Engine struct {
	cache    *PriceCache
	holdings holdings
	now      func() time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithEngineClock overrides the engine's time source for receipt timestamps.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an empty portfolio priced through cache.
func NewEngine(cache *PriceCache, opts ...EngineOption) *Engine {
	e := &Engine{
		cache:    cache,
		holdings: make(holdings),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ParseShares coerces a raw share count to a positive whole number.
// Fractional shares are rejected; this system trades whole shares only.
func ParseShares(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		if v > 0 {
			return v, nil
		}
	case int64:
		if v > 0 && v <= math.MaxInt32 {
			return int(v), nil
		}
	case float64:
		if v > 0 && v == math.Trunc(v) && v <= math.MaxInt32 {
			return int(v), nil
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return ParseShares(n)
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return ParseShares(n)
		}
	}
	return 0, &InvalidShareCountError{Raw: raw}
}

// resolve normalizes the ticker, optionally requires it to be held, and
// resolves it through the price cache. No ledger mutation happens here.
func (e *Engine) resolve(ctx context.Context, ticker string, requireOwned bool) (Instrument, error) {
	sym := NormalizeTicker(ticker)
	if sym == "" {
		return Instrument{}, ErrInvalidTicker
	}
	if requireOwned {
		if _, ok := e.holdings[sym]; !ok {
			return Instrument{}, &NotOwnedError{Ticker: sym}
		}
	}
	inst, err := e.cache.Get(ctx, sym)
	if err != nil {
		return Instrument{}, &UnknownInstrumentError{Ticker: sym, Err: err}
	}
	return inst, nil
}

func (e *Engine) receipt(typ TradeType, inst Instrument, shares int) Receipt {
	return Receipt{
		ID:            uuid.NewString(),
		Type:          typ,
		Ticker:        inst.Ticker,
		Shares:        shares,
		PricePerShare: inst.Price,
		Total:         inst.Price * float64(shares),
		Timestamp:     e.now(),
	}
}

// Buy purchases shares of ticker at the current cached price. Validation and
// pricing complete before the ledger changes, so a failed price fetch leaves
// holdings untouched.
func (e *Engine) Buy(ctx context.Context, ticker string, shares int) (Receipt, error) {
	inst, err := e.resolve(ctx, ticker, false)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := ParseShares(shares); err != nil {
		return Receipt{}, err
	}
	e.holdings.increase(inst.Ticker, shares)
	return e.receipt(TradeBuy, inst, shares), nil
}

// Sell disposes shares of a held ticker at the current cached price. Selling
// the full position removes the ticker from holdings entirely.
func (e *Engine) Sell(ctx context.Context, ticker string, shares int) (Receipt, error) {
	if e.holdings.isEmpty() {
		return Receipt{}, ErrEmptyPortfolio
	}
	inst, err := e.resolve(ctx, ticker, true)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := ParseShares(shares); err != nil {
		return Receipt{}, err
	}
	if owned := e.holdings[inst.Ticker]; owned < shares {
		return Receipt{}, &InsufficientSharesError{Ticker: inst.Ticker, Owned: owned, Requested: shares}
	}
	e.holdings.decrease(inst.Ticker, shares)
	return e.receipt(TradeSell, inst, shares), nil
}

// Value sums quantity times refreshed price over all holdings. Any ticker
// that fails to price fails the whole valuation; partial sums are never
// returned. The result is unrounded, presentation rounding is the caller's
// concern.
func (e *Engine) Value(ctx context.Context) (float64, error) {
	if e.holdings.isEmpty() {
		return 0, ErrEmptyPortfolio
	}
	var total float64
	for sym, qty := range e.holdings {
		inst, err := e.cache.Get(ctx, sym)
		if err != nil {
			return 0, &UnknownInstrumentError{Ticker: sym, Err: err}
		}
		total += float64(qty) * inst.Price
	}
	return total, nil
}

// Summary returns the total value with a per-ticker breakdown. Each ticker is
// priced once through the cache and the same price feeds both the row and the
// total.
func (e *Engine) Summary(ctx context.Context) (Summary, error) {
	if e.holdings.isEmpty() {
		return Summary{}, ErrEmptyPortfolio
	}
	s := Summary{Holdings: make([]Holding, 0, len(e.holdings))}
	for _, sym := range e.holdings.tickers() {
		inst, err := e.cache.Get(ctx, sym)
		if err != nil {
			return Summary{}, &UnknownInstrumentError{Ticker: sym, Err: err}
		}
		qty := e.holdings[sym]
		value := float64(qty) * inst.Price
		s.Holdings = append(s.Holdings, Holding{
			Ticker:       sym,
			Quantity:     qty,
			CurrentPrice: inst.Price,
			Value:        value,
		})
		s.TotalValue += value
	}
	return s, nil
}

// Shares reports the owned quantity for ticker, zero when absent.
func (e *Engine) Shares(ticker string) int {
	return e.holdings[NormalizeTicker(ticker)]
}

// IsEmpty reports whether the portfolio holds no shares.
func (e *Engine) IsEmpty() bool {
	return e.holdings.isEmpty()
}
