package main

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketfeed/internal/config"
	"marketfeed/internal/engine"
	"marketfeed/internal/httpx"
	"marketfeed/internal/logger"
	"marketfeed/internal/market"
	"marketfeed/internal/provider"
	"marketfeed/internal/provider/binance"
	"marketfeed/internal/provider/bybit"
	"marketfeed/internal/provider/erapi"
	"marketfeed/internal/provider/frankfurter"
	"marketfeed/internal/provider/okx"
	"marketfeed/internal/provider/yahoo"
	"marketfeed/internal/ratelimit"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	eng, err := buildEngine(cfg)
	if err != nil {
		logger.Errorf("engine: %v", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/price", handlePrice(eng))
	mux.HandleFunc("/api/candles", handleCandles(eng))
	mux.HandleFunc("/api/stats", handleStats(eng))
	mux.HandleFunc("/api/movers", handleMovers(eng))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Infof("server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("server: %v", err)
			os.Exit(1)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

// buildEngine assembles the provider registry from the configured chains.
// Disabled providers drop out of their chains; an empty chain is fine, the
// engine reports no-data for that class at request time.
func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	newHTTP := func(pc config.Provider) *httpx.Client {
		hc := httpx.New(time.Duration(pc.TimeoutSec) * time.Second)
		hc.Limiter = limiterFor(pc)
		return hc
	}

	var (
		binanceSrc     *binance.Source
		bybitSrc       *bybit.Source
		okxSrc         *okx.Source
		frankfurterSrc *frankfurter.Source
		erapiSrc       *erapi.Source
	)
	if cfg.Binance.Enabled {
		binanceSrc = binance.New(binance.Config{
			APIKey:      cfg.Binance.APIKey,
			RESTBaseURL: cfg.Binance.BaseURL,
			HTTPTimeout: time.Duration(cfg.Binance.TimeoutSec) * time.Second,
		})
	}
	if cfg.Bybit.Enabled {
		bybitSrc = bybit.New(bybit.Config{BaseURL: cfg.Bybit.BaseURL}, newHTTP(cfg.Bybit))
	}
	if cfg.OKX.Enabled {
		okxSrc = okx.New(okx.Config{BaseURL: cfg.OKX.BaseURL}, newHTTP(cfg.OKX))
	}
	if cfg.Frankfurter.Enabled {
		opts := []frankfurter.ClientOption{
			frankfurter.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Frankfurter.TimeoutSec) * time.Second}),
		}
		if cfg.Frankfurter.BaseURL != "" {
			opts = append(opts, frankfurter.WithBaseURL(cfg.Frankfurter.BaseURL))
		}
		frankfurterSrc = frankfurter.New(frankfurter.Config{}, frankfurter.NewClient(opts...))
	}
	if cfg.ERAPI.Enabled {
		erapiSrc = erapi.New(erapi.Config{BaseURL: cfg.ERAPI.BaseURL}, newHTTP(cfg.ERAPI))
	}
	yahooFor := func(class market.AssetClass) *yahoo.Source {
		if !cfg.Yahoo.Enabled {
			return nil
		}
		return yahoo.New(yahoo.Config{BaseURL: cfg.Yahoo.BaseURL, Class: class}, newHTTP(cfg.Yahoo))
	}
	yahooStocks := yahooFor(market.Stocks)
	yahooCommodities := yahooFor(market.Commodities)
	yahooIndices := yahooFor(market.Indices)

	cryptoByName := func(name string) (provider.PriceSource, provider.CandleSource) {
		switch name {
		case "binance":
			if binanceSrc != nil {
				return binanceSrc, binanceSrc
			}
		case "bybit":
			if bybitSrc != nil {
				return bybitSrc, bybitSrc
			}
		case "okx":
			if okxSrc != nil {
				return okxSrc, okxSrc
			}
		}
		return nil, nil
	}

	reg := engine.Registry{
		Prices:  map[market.AssetClass][]provider.PriceSource{},
		Candles: map[market.AssetClass][]provider.CandleSource{},
	}
	for _, name := range cfg.Chains.Crypto {
		ps, cs := cryptoByName(name)
		if ps == nil {
			continue
		}
		reg.Prices[market.Crypto] = append(reg.Prices[market.Crypto], ps)
		reg.Candles[market.Crypto] = append(reg.Candles[market.Crypto], cs)
		if ss, ok := ps.(provider.StatsSource); ok {
			reg.Stats = append(reg.Stats, ss)
		}
		if sn, ok := ps.(provider.SnapshotSource); ok {
			reg.Snapshots = append(reg.Snapshots, sn)
		}
	}
	for _, name := range cfg.Chains.Forex {
		switch name {
		case "frankfurter":
			if frankfurterSrc != nil {
				reg.Prices[market.Forex] = append(reg.Prices[market.Forex], frankfurterSrc)
				reg.Candles[market.Forex] = append(reg.Candles[market.Forex], frankfurterSrc)
			}
		case "erapi":
			if erapiSrc != nil {
				reg.Prices[market.Forex] = append(reg.Prices[market.Forex], erapiSrc)
			}
		}
	}
	if frankfurterSrc != nil {
		reg.ForexRates = frankfurterSrc
	}
	addYahoo := func(class market.AssetClass, src *yahoo.Source, chain []string) {
		if src == nil {
			return
		}
		for _, name := range chain {
			if name == "yahoo" {
				reg.Prices[class] = append(reg.Prices[class], src)
				reg.Candles[class] = append(reg.Candles[class], src)
			}
		}
	}
	addYahoo(market.Stocks, yahooStocks, cfg.Chains.Stocks)
	addYahoo(market.Commodities, yahooCommodities, cfg.Chains.Commodities)
	addYahoo(market.Indices, yahooIndices, cfg.Chains.Indices)

	return engine.New(reg, engine.Options{
		ProviderTimeout:   time.Duration(cfg.Engine.ProviderTimeoutSec) * time.Second,
		CacheTTL:          time.Duration(cfg.Engine.CacheTTLSeconds) * time.Second,
		CacheMaxItems:     cfg.Engine.CacheMaxItems,
		Race:              engine.RacePolicy(cfg.Engine.RacePolicy),
		QuoteAsset:        cfg.Engine.QuoteAsset,
		ForexPairs:        cfg.Engine.ForexPairs,
		ForexLookbackDays: cfg.Engine.ForexLookbackDays,
	}), nil
}

func limiterFor(pc config.Provider) httpx.Limiter {
	if pc.MaxRequestsPerMinute > 0 {
		burst := pc.Burst
		if burst <= 0 {
			burst = 1
		}
		return ratelimit.NewTokenBucket(float64(pc.MaxRequestsPerMinute)/60.0, burst)
	}
	if pc.MinRequestIntervalSec > 0 {
		return &ratelimit.MinInterval{Interval: time.Duration(pc.MinRequestIntervalSec) * time.Second}
	}
	return nil
}

func handlePrice(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		class, symbol, ok := classAndSymbol(w, r)
		if !ok {
			return
		}
		price, err := eng.GetPrice(r.Context(), class, symbol)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"class": class, "symbol": symbol, "price": price})
	}
}

func handleCandles(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		class, symbol, ok := classAndSymbol(w, r)
		if !ok {
			return
		}
		iv := r.URL.Query().Get("interval")
		if iv == "" {
			iv = "1d"
		}
		limit := queryInt(r, "limit", 100)
		candles, err := eng.GetCandles(r.Context(), class, symbol, iv, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"class": class, "symbol": symbol, "interval": iv, "candles": candles})
	}
}

func handleStats(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
		if symbol == "" {
			http.Error(w, "missing symbol query param", http.StatusBadRequest)
			return
		}
		stats, err := eng.Get24hStats(r.Context(), symbol)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"symbol": symbol, "stats": stats})
	}
}

func handleMovers(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		class := market.AssetClass(r.URL.Query().Get("class"))
		if class == "" {
			class = market.Crypto
		}
		if !class.Valid() {
			http.Error(w, "unknown asset class", http.StatusBadRequest)
			return
		}
		direction := market.Direction(r.URL.Query().Get("direction"))
		if direction == "" {
			direction = market.Gainers
		}
		limit := queryInt(r, "limit", 10)
		movers, err := eng.GetTopMovers(r.Context(), direction, class, limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"class": class, "direction": direction, "movers": movers})
	}
}

func classAndSymbol(w http.ResponseWriter, r *http.Request) (market.AssetClass, string, bool) {
	class := market.AssetClass(r.URL.Query().Get("class"))
	if !class.Valid() {
		http.Error(w, "unknown asset class", http.StatusBadRequest)
		return "", "", false
	}
	symbol := strings.TrimSpace(r.URL.Query().Get("symbol"))
	if symbol == "" {
		http.Error(w, "missing symbol query param", http.StatusBadRequest)
		return "", "", false
	}
	return class, symbol, true
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrUnsupportedSymbol):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, market.ErrNoPriceAvailable), errors.Is(err, market.ErrNoDataAvailable):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses response when client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Errorf("panic: %v", rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
