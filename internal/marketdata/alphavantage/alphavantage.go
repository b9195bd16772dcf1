package alphavantage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"portfoliotracker/internal/httpx"
	"portfoliotracker/internal/marketdata"
)

type Config struct {
	Name string
	// QuoteURL serves GLOBAL_QUOTE lookups (the RapidAPI proxy by default).
	QuoteURL string
	// SearchURL serves SYMBOL_SEARCH lookups.
	SearchURL string
	APIKey    string
	// APIHost is the x-rapidapi-host header value for the quote endpoint.
	APIHost string
}

// Client fetches quotes from Alpha Vantage. It implements
// marketdata.Provider.
type Client struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Client {
	if cfg.Name == "" {
		cfg.Name = "AlphaVantage"
	}
	if cfg.QuoteURL == "" {
		cfg.QuoteURL = "https://alpha-vantage.p.rapidapi.com/query"
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = "https://www.alphavantage.co/query"
	}
	if cfg.APIHost == "" {
		cfg.APIHost = "alpha-vantage.p.rapidapi.com"
	}
	return &Client{cfg: cfg, client: hc}
}

func (c *Client) Name() string { return c.cfg.Name }

// globalQuote mirrors the relevant slice of the GLOBAL_QUOTE payload.
// Alpha Vantage keys fields with numeric prefixes.
type globalQuote struct {
	Quote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

// FetchPrice returns the current price for ticker via GLOBAL_QUOTE.
// An empty quote object means the symbol is unknown; transport and server
// failures surface as marketdata.ErrUnavailable so callers can retry.
func (c *Client) FetchPrice(ctx context.Context, ticker string) (float64, error) {
	sym := strings.ToUpper(strings.TrimSpace(ticker))

	q := url.Values{}
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", sym)
	q.Set("datatype", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.QuoteURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("x-rapidapi-host", c.cfg.APIHost)
	req.Header.Set("x-rapidapi-key", c.cfg.APIKey)

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", marketdata.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return 0, fmt.Errorf("%w: %s -> %d", marketdata.ErrUnavailable, c.cfg.QuoteURL, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return 0, fmt.Errorf("GET %s -> %d: %s", c.cfg.QuoteURL, resp.StatusCode, string(b))
	}

	var gq globalQuote
	if err := json.NewDecoder(resp.Body).Decode(&gq); err != nil {
		return 0, fmt.Errorf("%w: decode: %v", marketdata.ErrUnavailable, err)
	}
	if gq.Quote.Price == "" {
		return 0, fmt.Errorf("%w: %s", marketdata.ErrNotFound, sym)
	}
	price, err := strconv.ParseFloat(gq.Quote.Price, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: bad price %q for %s", marketdata.ErrNotFound, gq.Quote.Price, sym)
	}
	return price, nil
}

type searchResponse struct {
	BestMatches []struct {
		Symbol string `json:"1. symbol"`
	} `json:"bestMatches"`
}

// IsValid reports whether ticker matches a real symbol via SYMBOL_SEARCH.
func (c *Client) IsValid(ctx context.Context, ticker string) (bool, error) {
	sym := strings.ToUpper(strings.TrimSpace(ticker))

	q := url.Values{}
	q.Set("function", "SYMBOL_SEARCH")
	q.Set("keywords", sym)
	q.Set("apikey", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.SearchURL+"?"+q.Encode(), nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", marketdata.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%w: %s -> %d", marketdata.ErrUnavailable, c.cfg.SearchURL, resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return false, fmt.Errorf("%w: decode: %v", marketdata.ErrUnavailable, err)
	}
	for _, m := range sr.BestMatches {
		if strings.ToUpper(m.Symbol) == sym {
			return true, nil
		}
	}
	return false, nil
}
