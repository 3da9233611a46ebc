// Package engine answers the four canonical market-data queries by fanning
// out to an injected registry of provider sources. Scalar price lookups walk
// a priority-ordered fallback chain; candle, stats and crypto-movers queries
// race all eligible sources and keep the first structurally valid answer.
package engine

import (
	"time"

	"marketfeed/internal/market"
	"marketfeed/internal/provider"
	"marketfeed/internal/symbols"
)

// Registry holds the ordered provider chains per asset class. Order matters
// for the fallback chains; racing ignores it.
type Registry struct {
	Prices    map[market.AssetClass][]provider.PriceSource
	Candles   map[market.AssetClass][]provider.CandleSource
	Stats     []provider.StatsSource
	Snapshots []provider.SnapshotSource
	// ForexRates answers the dated lookups behind forex movers comparisons.
	ForexRates provider.ForexRateSource
}

// Options tune engine behavior. Zero values fall back to defaults.
type Options struct {
	// ProviderTimeout bounds each individual upstream call.
	ProviderTimeout time.Duration
	// CacheTTL bounds how long a resolved answer is served without
	// re-resolution.
	CacheTTL time.Duration
	// CacheMaxItems caps the memo size, best effort.
	CacheMaxItems int
	// Race picks what happens to losing race branches.
	Race RacePolicy
	// QuoteAsset filters the crypto movers universe (pairs quoted in it).
	QuoteAsset string
	// ForexPairs is the fixed universe ranked by forex movers.
	ForexPairs []string
	// ForexLookbackDays sets the movers reference date (today minus N days).
	ForexLookbackDays int
}

func (o Options) withDefaults() Options {
	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = 10 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 60 * time.Second
	}
	if o.CacheMaxItems <= 0 {
		o.CacheMaxItems = 4096
	}
	if o.Race == "" {
		o.Race = LetFinish
	}
	if o.QuoteAsset == "" {
		o.QuoteAsset = "USDT"
	}
	if len(o.ForexPairs) == 0 {
		o.ForexPairs = symbols.ForexSymbols()
	}
	if o.ForexLookbackDays <= 0 {
		o.ForexLookbackDays = 7
	}
	return o
}

// Engine is the aggregation engine. Construct it with New; the zero value is
// not usable.
type Engine struct {
	reg   Registry
	opt   Options
	cache *responseCache
	now   func() time.Time
}

func New(reg Registry, opt Options) *Engine {
	final := opt.withDefaults()
	return &Engine{
		reg:   reg,
		opt:   final,
		cache: newResponseCache(final.CacheTTL, final.CacheMaxItems, nil),
		now:   time.Now,
	}
}
