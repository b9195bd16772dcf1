package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"

	"portfoliotracker/internal/auth"
	"portfoliotracker/internal/marketdata"
	"portfoliotracker/internal/portfolio"
	"portfoliotracker/internal/store"
)

// api holds the collaborators behind the HTTP surface. One portfolio engine
// exists per user, created lazily and guarded by a per-user mutex because
// the engine itself does not tolerate concurrent trades.
type api struct {
	log         *slog.Logger
	accounts    store.AccountStore
	instruments store.InstrumentStore
	provider    marketdata.Provider
	cache       *portfolio.PriceCache
	sessions    *auth.Sessions

	mu         sync.Mutex
	portfolios map[string]*userPortfolio
}

type userPortfolio struct {
	mu  sync.Mutex
	eng *portfolio.Engine
}

func newAPI(log *slog.Logger, accounts store.AccountStore, instruments store.InstrumentStore, provider marketdata.Provider, cache *portfolio.PriceCache) *api {
	return &api{
		log:         log,
		accounts:    accounts,
		instruments: instruments,
		provider:    provider,
		cache:       cache,
		sessions:    auth.NewSessions(),
		portfolios:  make(map[string]*userPortfolio),
	}
}

func (a *api) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /api/health", a.handleHealth)

	mux.HandleFunc("PUT /api/create-user", a.handleCreateUser)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("POST /api/logout", a.requireAuth(a.handleLogout))
	mux.HandleFunc("POST /api/change-password", a.requireAuth(a.handleChangePassword))

	mux.HandleFunc("GET /api/stock-price/{ticker}", a.requireAuth(a.handleStockPrice))
	mux.HandleFunc("POST /api/create-stock", a.requireAuth(a.handleCreateStock))
	mux.HandleFunc("DELETE /api/delete-stock/{id}", a.requireAuth(a.handleDeleteStock))

	mux.HandleFunc("POST /api/portfolio/buy", a.requireAuth(a.handleBuy))
	mux.HandleFunc("POST /api/portfolio/sell", a.requireAuth(a.handleSell))
	mux.HandleFunc("GET /api/portfolio/value", a.requireAuth(a.handleValue))
	mux.HandleFunc("GET /api/portfolio/summary", a.requireAuth(a.handleSummary))
	return mux
}

// portfolioFor returns the user's portfolio holder, creating it on first use.
func (a *api) portfolioFor(username string) *userPortfolio {
	a.mu.Lock()
	defer a.mu.Unlock()
	up, ok := a.portfolios[username]
	if !ok {
		up = &userPortfolio{eng: portfolio.NewEngine(a.cache)}
		a.portfolios[username] = up
	}
	return up
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"status": "error", "message": msg})
}

// tradeStatus maps engine and provider failures to HTTP statuses. Only a
// transient provider outage is the server's fault.
func tradeStatus(err error) int {
	if errors.Is(err, marketdata.ErrUnavailable) {
		return http.StatusBadGateway
	}
	return http.StatusBadRequest
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Service is running"})
}

type credentialsBody struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *api) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var b credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.Username == "" || b.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	hash, err := auth.HashPassword(b.Password)
	if err != nil {
		a.log.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create user")
		return
	}
	if _, err := a.accounts.CreateUser(r.Context(), b.Username, hash); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "username already taken")
			return
		}
		a.log.Error("create user", "username", b.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "could not create user")
		return
	}
	a.log.Info("user created", "username", b.Username)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "success", "message": "user created"})
}

func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var b credentialsBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.Username == "" || b.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	u, err := a.accounts.GetUser(r.Context(), b.Username)
	if err != nil || !auth.CheckPassword(u.PasswordHash, b.Password) {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	token := a.sessions.Issue(u.Username)
	a.log.Info("user logged in", "username", u.Username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "token": token})
}

func (a *api) handleLogout(w http.ResponseWriter, r *http.Request, username string) {
	a.sessions.Revoke(bearerToken(r))
	a.log.Info("user logged out", "username", username)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "logged out"})
}

func (a *api) handleChangePassword(w http.ResponseWriter, r *http.Request, username string) {
	var b struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.OldPassword == "" || b.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "old and new passwords are required")
		return
	}
	u, err := a.accounts.GetUser(r.Context(), username)
	if err != nil || !auth.CheckPassword(u.PasswordHash, b.OldPassword) {
		writeError(w, http.StatusUnauthorized, "old password is incorrect")
		return
	}
	hash, err := auth.HashPassword(b.NewPassword)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not change password")
		return
	}
	if err := a.accounts.UpdatePassword(r.Context(), username, hash); err != nil {
		a.log.Error("update password", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "could not change password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "password changed"})
}

func (a *api) handleStockPrice(w http.ResponseWriter, r *http.Request, username string) {
	ticker := r.PathValue("ticker")
	inst, err := a.cache.Get(r.Context(), ticker)
	if err != nil {
		writeError(w, tradeStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"ticker":        inst.Ticker,
		"current_price": inst.Price,
	})
}

func (a *api) handleCreateStock(w http.ResponseWriter, r *http.Request, username string) {
	var b struct {
		Ticker string `json:"ticker"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || strings.TrimSpace(b.Ticker) == "" {
		writeError(w, http.StatusBadRequest, "missing or invalid 'ticker' in request body")
		return
	}
	ticker := portfolio.NormalizeTicker(b.Ticker)
	ok, err := a.provider.IsValid(r.Context(), ticker)
	if err != nil {
		writeError(w, tradeStatus(err), err.Error())
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "'"+ticker+"' is not a valid stock symbol")
		return
	}
	price, err := a.provider.FetchPrice(r.Context(), ticker)
	if err != nil {
		writeError(w, tradeStatus(err), err.Error())
		return
	}
	inst, err := a.instruments.SaveInstrument(r.Context(), store.Instrument{Ticker: ticker, Price: price})
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusBadRequest, "stock '"+ticker+"' already exists")
			return
		}
		a.log.Error("save instrument", "ticker", ticker, "error", err)
		writeError(w, http.StatusInternalServerError, "could not create stock")
		return
	}
	a.log.Info("stock created", "ticker", inst.Ticker, "price", inst.Price, "by", username)
	writeJSON(w, http.StatusCreated, map[string]any{"status": "success", "stock": inst})
}

func (a *api) handleDeleteStock(w http.ResponseWriter, r *http.Request, username string) {
	id := r.PathValue("id")
	if err := a.instruments.DeleteInstrument(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "stock not found")
			return
		}
		a.log.Error("delete instrument", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not delete stock")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "stock deleted"})
}

type tradeBody struct {
	Ticker string `json:"ticker"`
	// Shares stays raw so fractional and junk inputs are rejected by the
	// engine's coercion rules rather than by JSON decoding.
	Shares any `json:"shares"`
}

func (a *api) handleBuy(w http.ResponseWriter, r *http.Request, username string) {
	a.handleTrade(w, r, username, portfolio.TradeBuy)
}

func (a *api) handleSell(w http.ResponseWriter, r *http.Request, username string) {
	a.handleTrade(w, r, username, portfolio.TradeSell)
}

func (a *api) handleTrade(w http.ResponseWriter, r *http.Request, username string, typ portfolio.TradeType) {
	var b tradeBody
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	shares, err := portfolio.ParseShares(b.Shares)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	up := a.portfolioFor(username)
	up.mu.Lock()
	defer up.mu.Unlock()

	var receipt portfolio.Receipt
	if typ == portfolio.TradeBuy {
		receipt, err = up.eng.Buy(r.Context(), b.Ticker, shares)
	} else {
		receipt, err = up.eng.Sell(r.Context(), b.Ticker, shares)
	}
	if err != nil {
		a.log.Warn("trade rejected", "type", typ, "ticker", b.Ticker, "user", username, "error", err)
		writeError(w, tradeStatus(err), err.Error())
		return
	}
	a.log.Info("trade executed", "type", typ, "ticker", receipt.Ticker, "shares", receipt.Shares, "user", username)
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "transaction": receipt})
}

func (a *api) handleValue(w http.ResponseWriter, r *http.Request, username string) {
	up := a.portfolioFor(username)
	up.mu.Lock()
	defer up.mu.Unlock()

	v, err := up.eng.Value(r.Context())
	if err != nil {
		writeError(w, tradeStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		// Rounding to cents happens here, never in the engine.
		"portfolio_value": math.Round(v*100) / 100,
	})
}

func (a *api) handleSummary(w http.ResponseWriter, r *http.Request, username string) {
	up := a.portfolioFor(username)
	up.mu.Lock()
	defer up.mu.Unlock()

	s, err := up.eng.Summary(r.Context())
	if err != nil {
		writeError(w, tradeStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "summary": s})
}
