package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfoliotracker/internal/config"
	"portfoliotracker/internal/httpx"
	"portfoliotracker/internal/marketdata"
	"portfoliotracker/internal/marketdata/alphavantage"
	"portfoliotracker/internal/marketdata/ratelimit"
	"portfoliotracker/internal/portfolio"
	"portfoliotracker/internal/store"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfgPath := os.Getenv("CONFIG_FILE")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Error("config", "error", err)
		os.Exit(1)
	}
	if cfg.Market.APIKey == "" {
		log.Warn("no market data API key set; price lookups will fail")
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)

	var provider marketdata.Provider = alphavantage.New(alphavantage.Config{
		QuoteURL:  cfg.Market.QuoteEndpoint,
		SearchURL: cfg.Market.SearchEndpoint,
		APIKey:    cfg.Market.APIKey,
		APIHost:   cfg.Market.APIHost,
	}, httpClient)

	// Prefer token bucket with burst if RPM is set, otherwise use min-interval.
	if cfg.Market.MaxRequestsPerMinute > 0 {
		rate := float64(cfg.Market.MaxRequestsPerMinute) / 60.0
		burst := cfg.Market.Burst
		if burst <= 0 {
			burst = 1
		}
		provider = &ratelimit.Provider{P: provider, TB: ratelimit.NewTokenBucket(rate, burst)}
	} else if cfg.Market.MinRequestIntervalSec > 0 {
		provider = &ratelimit.MinInterval{P: provider, Interval: time.Duration(cfg.Market.MinRequestIntervalSec) * time.Second}
	}

	cache := portfolio.NewPriceCache(provider, time.Duration(cfg.Portfolio.CacheTTLSeconds)*time.Second)

	var accounts store.AccountStore
	var instruments store.InstrumentStore
	if cfg.Database.URL != "" {
		if cfg.Database.MigrateOnStart {
			if err := store.RunMigrations(cfg.Database.URL); err != nil {
				log.Error("migrate", "error", err)
				os.Exit(1)
			}
		}
		pool, err := store.Connect(context.Background(), cfg.Database.URL)
		if err != nil {
			log.Error("database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := store.NewPostgres(pool)
		accounts, instruments = pg, pg
		log.Info("using postgres store")
	} else {
		mem := store.NewMemory()
		accounts, instruments = mem, mem
		log.Warn("DATABASE_URL not set; using in-memory store")
	}

	a := newAPI(log, accounts, instruments, provider, cache)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.recoverPanic(limitBody(a.routes())),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server", "error", err)
			os.Exit(1)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
