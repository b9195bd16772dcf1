package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Market struct {
	QuoteEndpoint         string `json:"quote_endpoint"`
	SearchEndpoint        string `json:"search_endpoint"`
	APIKey                string `json:"api_key"`
	APIHost               string `json:"api_host"`
	MaxRequestsPerMinute  int    `json:"max_requests_per_minute"`
	Burst                 int    `json:"burst"`
	MinRequestIntervalSec int    `json:"min_request_interval_sec"`
}

type Portfolio struct {
	CacheTTLSeconds int `json:"cache_ttl_sec"`
}

type Database struct {
	URL            string `json:"url"`
	MigrateOnStart bool   `json:"migrate_on_start"`
}

type Config struct {
	Server    Server    `json:"server"`
	Market    Market    `json:"market"`
	Portfolio Portfolio `json:"portfolio"`
	Database  Database  `json:"database"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Market: Market{
			QuoteEndpoint:  "https://alpha-vantage.p.rapidapi.com/query",
			SearchEndpoint: "https://www.alphavantage.co/query",
			APIHost:        "alpha-vantage.p.rapidapi.com",
			// Alpha Vantage free tier: 5 requests per minute.
			MaxRequestsPerMinute: 5,
			Burst:                1,
		},
		Portfolio: Portfolio{CacheTTLSeconds: 60},
		Database:  Database{MigrateOnStart: true},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields
// for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := envInt("REQUEST_TIMEOUT_SEC"); v > 0 {
		cfg.Server.RequestTimeoutSec = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_KEY"); v != "" {
		cfg.Market.APIKey = v
	}
	// RAPIDAPI_KEY is the legacy name; ALPHAVANTAGE_API_KEY wins when both set.
	if v := os.Getenv("RAPIDAPI_KEY"); v != "" && cfg.Market.APIKey == "" {
		cfg.Market.APIKey = v
	}
	if v := os.Getenv("ALPHAVANTAGE_QUOTE_ENDPOINT"); v != "" {
		cfg.Market.QuoteEndpoint = v
	}
	if v := os.Getenv("ALPHAVANTAGE_SEARCH_ENDPOINT"); v != "" {
		cfg.Market.SearchEndpoint = v
	}
	if v := os.Getenv("ALPHAVANTAGE_API_HOST"); v != "" {
		cfg.Market.APIHost = v
	}
	if v := envInt("ALPHAVANTAGE_MAX_RPM"); v >= 0 {
		cfg.Market.MaxRequestsPerMinute = v
	}
	if v := envInt("ALPHAVANTAGE_BURST"); v > 0 {
		cfg.Market.Burst = v
	}
	if v := envInt("ALPHAVANTAGE_MIN_INTERVAL_SEC"); v > 0 {
		cfg.Market.MinRequestIntervalSec = v
	}
	if v := envInt("TTL"); v > 0 {
		cfg.Portfolio.CacheTTLSeconds = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	switch os.Getenv("MIGRATE_ON_START") {
	case "1", "true", "yes", "y":
		cfg.Database.MigrateOnStart = true
	case "0", "false", "no", "n":
		cfg.Database.MigrateOnStart = false
	}
}

func envInt(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return -1
	}
	var x int
	if _, err := fmt.Sscanf(v, "%d", &x); err != nil {
		return -1
	}
	return x
}
