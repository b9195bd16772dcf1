package portfolio_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"portfoliotracker/internal/marketdata"
	"portfoliotracker/internal/portfolio"
)

func newEngine(t *testing.T) (*portfolio.Engine, *MockProvider, *fakeClock) {
	t.Helper()
	ctrl := gomock.NewController(t)
	provider := NewMockProvider(ctrl)
	clock := newClock()
	cache := portfolio.NewPriceCache(provider, time.Minute, portfolio.WithClock(clock.Now))
	eng := portfolio.NewEngine(cache, portfolio.WithEngineClock(clock.Now))
	return eng, provider, clock
}

func TestBuy_IntoEmptyPortfolio(t *testing.T) {
	t.Parallel()

	eng, provider, clock := newEngine(t)
	provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(174.35, nil)

	r, err := eng.Buy(t.Context(), "aapl", 10)
	require.NoError(t, err)

	assert.Equal(t, portfolio.TradeBuy, r.Type)
	assert.Equal(t, "AAPL", r.Ticker)
	assert.Equal(t, 10, r.Shares)
	assert.Equal(t, 174.35, r.PricePerShare)
	assert.InDelta(t, 1743.50, r.Total, 1e-9)
	assert.Equal(t, clock.Now(), r.Timestamp)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, 10, eng.Shares("AAPL"))
}

func TestBuy_AddsToExistingPosition(t *testing.T) {
	t.Parallel()

	eng, provider, clock := newEngine(t)
	gomock.InOrder(
		provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(174.35, nil),
		provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(180.00, nil),
	)

	_, err := eng.Buy(t.Context(), "AAPL", 5)
	require.NoError(t, err)

	// Step past the TTL so the second buy prices at the fresh quote.
	clock.Advance(2 * time.Minute)
	r, err := eng.Buy(t.Context(), "AAPL", 5)
	require.NoError(t, err)

	assert.Equal(t, 5, r.Shares)
	assert.Equal(t, 180.00, r.PricePerShare)
	assert.InDelta(t, 900.00, r.Total, 1e-9)
	assert.Equal(t, 10, eng.Shares("AAPL"))
}

func TestBuy_ProviderFailureLeavesHoldingsUntouched(t *testing.T) {
	t.Parallel()

	eng, provider, _ := newEngine(t)
	provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(0.0, marketdata.ErrUnavailable)

	_, err := eng.Buy(t.Context(), "AAPL", 10)

	var unknown *portfolio.UnknownInstrumentError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "AAPL", unknown.Ticker)
	assert.ErrorIs(t, err, marketdata.ErrUnavailable)
	assert.True(t, eng.IsEmpty())
}

func TestBuy_RejectsNonPositiveShares(t *testing.T) {
	t.Parallel()

	eng, provider, _ := newEngine(t)
	// Ticker validation resolves through the cache before shares are checked.
	provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(174.35, nil).AnyTimes()

	for _, n := range []int{0, -3} {
		_, err := eng.Buy(t.Context(), "AAPL", n)
		var bad *portfolio.InvalidShareCountError
		require.ErrorAs(t, err, &bad, "shares=%d", n)
	}
	assert.True(t, eng.IsEmpty())
}

func TestSell_EmptyPortfolioFailsFast(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)

	_, err := eng.Sell(t.Context(), "AAPL", 1)
	require.ErrorIs(t, err, portfolio.ErrEmptyPortfolio)
}

func TestSell_NotOwned(t *testing.T) {
	t.Parallel()

	eng, provider, _ := newEngine(t)
	provider.EXPECT().FetchPrice(gomock.Any(), "TSLA").Return(250.0, nil)

	_, err := eng.Buy(t.Context(), "TSLA", 3)
	require.NoError(t, err)

	_, err = eng.Sell(t.Context(), "MSFT", 1)
	var notOwned *portfolio.NotOwnedError
	require.ErrorAs(t, err, &notOwned)
	assert.Equal(t, "MSFT", notOwned.Ticker)
}

func TestSell_InsufficientShares(t *testing.T) {
	t.Parallel()

	eng, provider, _ := newEngine(t)
	provider.EXPECT().FetchPrice(gomock.Any(), "TSLA").Return(250.0, nil).AnyTimes()

	_, err := eng.Buy(t.Context(), "TSLA", 3)
	require.NoError(t, err)

	_, err = eng.Sell(t.Context(), "TSLA", 5)
	var insufficient *portfolio.InsufficientSharesError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 3, insufficient.Owned)
	assert.Equal(t, 5, insufficient.Requested)
	assert.Equal(t, 3, eng.Shares("TSLA"), "holdings unchanged after failed sell")
}

func TestSell_FullPositionRemovesTicker(t *testing.T) {
	t.Parallel()

	eng, provider, _ := newEngine(t)
	provider.EXPECT().FetchPrice(gomock.Any(), "GOOGL").Return(2800.00, nil).AnyTimes()

	_, err := eng.Buy(t.Context(), "GOOGL", 5)
	require.NoError(t, err)

	r, err := eng.Sell(t.Context(), "GOOGL", 5)
	require.NoError(t, err)

	assert.Equal(t, portfolio.TradeSell, r.Type)
	assert.Equal(t, 5, r.Shares)
	assert.InDelta(t, 14000.00, r.Total, 1e-9)
	assert.Equal(t, 0, eng.Shares("GOOGL"))
	assert.True(t, eng.IsEmpty())
}

func TestSell_ProviderFailureLeavesHoldingsUntouched(t *testing.T) {
	t.Parallel()

	eng, provider, clock := newEngine(t)
	provider.EXPECT().FetchPrice(gomock.Any(), "NVDA").Return(900.0, nil)

	_, err := eng.Buy(t.Context(), "NVDA", 4)
	require.NoError(t, err)

	// Past the TTL the sell has to re-price, and that fetch fails.
	clock.Advance(2 * time.Minute)
	provider.EXPECT().FetchPrice(gomock.Any(), "NVDA").Return(0.0, marketdata.ErrUnavailable)

	_, err = eng.Sell(t.Context(), "NVDA", 4)
	require.ErrorIs(t, err, marketdata.ErrUnavailable)
	assert.Equal(t, 4, eng.Shares("NVDA"))
}

func TestValue_EmptyPortfolio(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)

	_, err := eng.Value(t.Context())
	require.ErrorIs(t, err, portfolio.ErrEmptyPortfolio)
}

func TestValue_SumsAllHoldings(t *testing.T) {
	t.Parallel()

	eng, provider, _ := newEngine(t)
	provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(100.0, nil)
	provider.EXPECT().FetchPrice(gomock.Any(), "TSLA").Return(200.0, nil)

	_, err := eng.Buy(t.Context(), "AAPL", 2)
	require.NoError(t, err)
	_, err = eng.Buy(t.Context(), "TSLA", 3)
	require.NoError(t, err)

	v, err := eng.Value(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, 800.0, v, 1e-9)
}

func TestValue_IdempotentWithinTTL(t *testing.T) {
	t.Parallel()

	eng, provider, _ := newEngine(t)
	// One fetch covers the buy and both valuations.
	provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(174.35, nil).Times(1)

	_, err := eng.Buy(t.Context(), "AAPL", 10)
	require.NoError(t, err)

	v1, err := eng.Value(t.Context())
	require.NoError(t, err)
	v2, err := eng.Value(t.Context())
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
}

func TestValue_AllOrNothing(t *testing.T) {
	t.Parallel()

	eng, provider, clock := newEngine(t)
	provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(100.0, nil)
	provider.EXPECT().FetchPrice(gomock.Any(), "TSLA").Return(200.0, nil)

	_, err := eng.Buy(t.Context(), "AAPL", 1)
	require.NoError(t, err)
	_, err = eng.Buy(t.Context(), "TSLA", 1)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	// After expiry both tickers re-price; either failing fails the valuation.
	provider.EXPECT().FetchPrice(gomock.Any(), gomock.Any()).Return(0.0, marketdata.ErrUnavailable).MinTimes(1)

	_, err = eng.Value(t.Context())
	require.Error(t, err)
	var unknown *portfolio.UnknownInstrumentError
	assert.ErrorAs(t, err, &unknown)
}

func TestSummary_SharesPricesWithTotal(t *testing.T) {
	t.Parallel()

	eng, provider, _ := newEngine(t)
	// One fetch per ticker feeds both the breakdown and the total.
	provider.EXPECT().FetchPrice(gomock.Any(), "AAPL").Return(100.0, nil).Times(1)
	provider.EXPECT().FetchPrice(gomock.Any(), "TSLA").Return(200.0, nil).Times(1)

	_, err := eng.Buy(t.Context(), "AAPL", 2)
	require.NoError(t, err)
	_, err = eng.Buy(t.Context(), "TSLA", 3)
	require.NoError(t, err)

	s, err := eng.Summary(t.Context())
	require.NoError(t, err)

	require.Len(t, s.Holdings, 2)
	assert.Equal(t, portfolio.Holding{Ticker: "AAPL", Quantity: 2, CurrentPrice: 100.0, Value: 200.0}, s.Holdings[0])
	assert.Equal(t, portfolio.Holding{Ticker: "TSLA", Quantity: 3, CurrentPrice: 200.0, Value: 600.0}, s.Holdings[1])
	assert.InDelta(t, 800.0, s.TotalValue, 1e-9)
}

func TestSummary_EmptyPortfolio(t *testing.T) {
	t.Parallel()

	eng, _, _ := newEngine(t)

	_, err := eng.Summary(t.Context())
	require.ErrorIs(t, err, portfolio.ErrEmptyPortfolio)
}

func TestParseShares(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  any
		want int
		ok   bool
	}{
		{"int", 7, 7, true},
		{"string digits", "12", 12, true},
		{"whole float", float64(5), 5, true},
		{"json number", json.Number("3"), 3, true},
		{"zero", 0, 0, false},
		{"negative", -2, 0, false},
		{"fractional", 2.5, 0, false},
		{"fractional json number", json.Number("2.5"), 0, false},
		{"garbage string", "ten", 0, false},
		{"nil", nil, 0, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n, err := portfolio.ParseShares(tc.raw)
			if !tc.ok {
				var bad *portfolio.InvalidShareCountError
				require.True(t, errors.As(err, &bad), "want InvalidShareCountError, got %v", err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, n)
		})
	}
}
