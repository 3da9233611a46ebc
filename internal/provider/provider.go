package provider

import (
	"context"

	"marketfeed/internal/market"
)

// Sources expose one narrow interface per canonical operation so the engine
// can hold ordered chains per asset class without caring which upstream sits
// behind them. Prices cross this boundary as decimal strings to avoid float
// rounding in adapters; the engine decides what parses as acceptable.

// PriceSource answers scalar spot-price lookups.
type PriceSource interface {
	Name() string
	Price(ctx context.Context, symbol string) (string, error)
}

// CandleSource answers OHLCV series lookups for a canonical interval.
type CandleSource interface {
	Name() string
	Candles(ctx context.Context, symbol, canonicalInterval string, limit int) ([]market.Candle, error)
}

// StatsSource answers 24h rolling statistics for one symbol.
type StatsSource interface {
	Name() string
	Stats24h(ctx context.Context, symbol string) (market.Stats24h, error)
}

// SnapshotSource answers a full-market 24h ticker snapshot.
type SnapshotSource interface {
	Name() string
	Snapshot(ctx context.Context) ([]market.Ticker, error)
}

// HistoricalRateSource answers point-in-time forex rates, used for movers
// reference comparisons.
type HistoricalRateSource interface {
	Name() string
	RateOn(ctx context.Context, symbol, date string) (string, error)
}

// ForexRateSource combines spot and dated rate lookups; the movers ranker
// compares the two samples per pair.
type ForexRateSource interface {
	PriceSource
	HistoricalRateSource
}
