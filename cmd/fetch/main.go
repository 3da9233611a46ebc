// Command fetch runs a single market-data query from the terminal and prints
// the result as JSON. Handy for poking at provider chains without standing up
// the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

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

	var (
		op         string
		classStr   string
		symbolsCSV string
		intervalID string
		limit      int
		direction  string
		timeout    int
		configPath string
	)
	flag.StringVar(&op, "op", "price", "operation: price, candles, stats, movers")
	flag.StringVar(&classStr, "class", "crypto", "asset class: crypto, forex, stocks, commodities, indices")
	flag.StringVar(&symbolsCSV, "symbols", "BTCUSDT", "comma-separated canonical symbols")
	flag.StringVar(&intervalID, "interval", "1d", "candle interval (1m,5m,15m,1h,4h,1d,1w)")
	flag.IntVar(&limit, "limit", 10, "max candles or movers to return")
	flag.StringVar(&direction, "direction", "gainers", "movers direction: gainers or losers")
	flag.IntVar(&timeout, "timeout", 30, "overall timeout seconds")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	class := market.AssetClass(classStr)
	if !class.Valid() {
		logger.Errorf("unknown asset class %q", classStr)
		os.Exit(1)
	}
	syms := splitCSV(symbolsCSV)
	if len(syms) == 0 {
		logger.Errorf("no symbols provided")
		os.Exit(1)
	}

	eng := buildEngine(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	switch op {
	case "price":
		runPrices(ctx, eng, class, syms)
	case "candles":
		candles, err := eng.GetCandles(ctx, class, syms[0], intervalID, limit)
		exitOn(err)
		printJSON(map[string]any{"symbol": syms[0], "interval": intervalID, "candles": candles})
	case "stats":
		stats, err := eng.Get24hStats(ctx, syms[0])
		exitOn(err)
		printJSON(map[string]any{"symbol": syms[0], "stats": stats})
	case "movers":
		movers, err := eng.GetTopMovers(ctx, market.Direction(direction), class, limit)
		exitOn(err)
		printJSON(map[string]any{"class": class, "direction": direction, "movers": movers})
	default:
		logger.Errorf("unknown op %q", op)
		os.Exit(1)
	}
}

// runPrices resolves every symbol concurrently and prints whatever succeeded.
// A symbol that fails everywhere is reported and skipped rather than failing
// the batch.
func runPrices(ctx context.Context, eng *engine.Engine, class market.AssetClass, syms []string) {
	type row struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	var (
		mu   sync.Mutex
		rows []row
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, sym := range syms {
		sym := sym
		g.Go(func() error {
			price, err := eng.GetPrice(gctx, class, sym)
			if err != nil {
				logger.Warnf("%s: %v", sym, err)
				return nil
			}
			mu.Lock()
			rows = append(rows, row{Symbol: sym, Price: price})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	if len(rows) == 0 {
		logger.Errorf("no prices resolved")
		os.Exit(1)
	}
	printJSON(map[string]any{"class": class, "prices": rows})
}

func buildEngine(cfg *config.Config) *engine.Engine {
	newHTTP := func(pc config.Provider) *httpx.Client {
		hc := httpx.New(time.Duration(pc.TimeoutSec) * time.Second)
		hc.Limiter = limiterFor(pc)
		return hc
	}

	reg := engine.Registry{
		Prices:  map[market.AssetClass][]provider.PriceSource{},
		Candles: map[market.AssetClass][]provider.CandleSource{},
	}
	for _, name := range cfg.Chains.Crypto {
		pc, _ := cfg.ProviderByName(name)
		if !pc.Enabled {
			continue
		}
		var src interface {
			provider.PriceSource
			provider.CandleSource
			provider.StatsSource
			provider.SnapshotSource
		}
		switch name {
		case "binance":
			src = binance.New(binance.Config{APIKey: pc.APIKey, RESTBaseURL: pc.BaseURL, HTTPTimeout: time.Duration(pc.TimeoutSec) * time.Second})
		case "bybit":
			src = bybit.New(bybit.Config{BaseURL: pc.BaseURL}, newHTTP(pc))
		case "okx":
			src = okx.New(okx.Config{BaseURL: pc.BaseURL}, newHTTP(pc))
		default:
			continue
		}
		reg.Prices[market.Crypto] = append(reg.Prices[market.Crypto], src)
		reg.Candles[market.Crypto] = append(reg.Candles[market.Crypto], src)
		reg.Stats = append(reg.Stats, src)
		reg.Snapshots = append(reg.Snapshots, src)
	}
	for _, name := range cfg.Chains.Forex {
		pc, _ := cfg.ProviderByName(name)
		if !pc.Enabled {
			continue
		}
		switch name {
		case "frankfurter":
			opts := []frankfurter.ClientOption{
				frankfurter.WithHTTPClient(&http.Client{Timeout: time.Duration(pc.TimeoutSec) * time.Second}),
			}
			if pc.BaseURL != "" {
				opts = append(opts, frankfurter.WithBaseURL(pc.BaseURL))
			}
			src := frankfurter.New(frankfurter.Config{}, frankfurter.NewClient(opts...))
			reg.Prices[market.Forex] = append(reg.Prices[market.Forex], src)
			reg.Candles[market.Forex] = append(reg.Candles[market.Forex], src)
			reg.ForexRates = src
		case "erapi":
			reg.Prices[market.Forex] = append(reg.Prices[market.Forex], erapi.New(erapi.Config{BaseURL: pc.BaseURL}, newHTTP(pc)))
		}
	}
	for class, chain := range map[market.AssetClass][]string{
		market.Stocks:      cfg.Chains.Stocks,
		market.Commodities: cfg.Chains.Commodities,
		market.Indices:     cfg.Chains.Indices,
	} {
		for _, name := range chain {
			if name != "yahoo" || !cfg.Yahoo.Enabled {
				continue
			}
			src := yahoo.New(yahoo.Config{BaseURL: cfg.Yahoo.BaseURL, Class: class}, newHTTP(cfg.Yahoo))
			reg.Prices[class] = append(reg.Prices[class], src)
			reg.Candles[class] = append(reg.Candles[class], src)
		}
	}

	return engine.New(reg, engine.Options{
		ProviderTimeout:   time.Duration(cfg.Engine.ProviderTimeoutSec) * time.Second,
		CacheTTL:          time.Duration(cfg.Engine.CacheTTLSeconds) * time.Second,
		CacheMaxItems:     cfg.Engine.CacheMaxItems,
		Race:              engine.RacePolicy(cfg.Engine.RacePolicy),
		QuoteAsset:        cfg.Engine.QuoteAsset,
		ForexPairs:        cfg.Engine.ForexPairs,
		ForexLookbackDays: cfg.Engine.ForexLookbackDays,
	})
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

func exitOn(err error) {
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
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
