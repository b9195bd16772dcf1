// Command quote prints current prices for one or more tickers, useful for
// smoke-testing API credentials without starting the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"portfoliotracker/internal/config"
	"portfoliotracker/internal/httpx"
	"portfoliotracker/internal/marketdata"
	"portfoliotracker/internal/marketdata/alphavantage"
	"portfoliotracker/internal/marketdata/ratelimit"
)

func main() {
	var tickersCSV string
	var timeout int
	var configPath string
	var asJSON bool

	flag.StringVar(&tickersCSV, "tickers", getenv("TICKERS", "AAPL"), "comma-separated tickers")
	flag.IntVar(&timeout, "timeout", getenvInt("REQUEST_TIMEOUT_SEC", 15), "request timeout seconds")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json (optional)")
	flag.BoolVar(&asJSON, "json", false, "print JSON instead of plain text")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error("config", "error", err)
		os.Exit(1)
	}
	if timeout > 0 {
		cfg.Server.RequestTimeoutSec = timeout
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	var provider marketdata.Provider = alphavantage.New(alphavantage.Config{
		QuoteURL:  cfg.Market.QuoteEndpoint,
		SearchURL: cfg.Market.SearchEndpoint,
		APIKey:    cfg.Market.APIKey,
		APIHost:   cfg.Market.APIHost,
	}, httpClient)
	if cfg.Market.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.Market.MaxRequestsPerMinute) / 60.0
		burst := cfg.Market.Burst
		if burst <= 0 {
			burst = 1
		}
		provider = &ratelimit.Provider{P: provider, TB: ratelimit.NewTokenBucket(rate, burst)}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	type row struct {
		Ticker string  `json:"ticker"`
		Price  float64 `json:"price"`
	}
	var rows []row
	exitCode := 0
	for _, t := range splitCSV(tickersCSV) {
		price, err := provider.FetchPrice(ctx, t)
		if err != nil {
			log.Error("fetch", "ticker", t, "error", err)
			exitCode = 1
			continue
		}
		rows = append(rows, row{Ticker: strings.ToUpper(t), Price: price})
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rows)
	} else {
		for _, r := range rows {
			fmt.Printf("%-8s %.2f\n", r.Ticker, r.Price)
		}
	}
	os.Exit(exitCode)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		var x int
		if _, err := fmt.Sscanf(v, "%d", &x); err == nil {
			return x
		}
	}
	return def
}
