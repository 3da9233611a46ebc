package engine

import (
	"context"
	"errors"
	"fmt"

	"marketfeed/internal/interval"
	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

// GetCandles resolves an OHLCV series by racing every candle source of the
// asset class and keeping the first structurally valid, non-empty answer.
// When the winning provider cannot serve the interval natively the call
// fetches a finer native series and synthesizes the requested timeframe.
func (e *Engine) GetCandles(ctx context.Context, class market.AssetClass, symbol, canonicalInterval string, limit int) ([]market.Candle, error) {
	if _, ok := interval.Duration(canonicalInterval); !ok {
		return nil, fmt.Errorf("%w: unknown interval %s", market.ErrNoDataAvailable, canonicalInterval)
	}
	if limit <= 0 {
		limit = 50
	}
	key := cacheKey{Op: "candles", Class: class, Symbol: symbol, Interval: canonicalInterval, Limit: limit}
	if v, ok := e.cache.get(key); ok {
		return v.([]market.Candle), nil
	}

	chain := e.reg.Candles[class]
	if len(chain) == 0 {
		return nil, fmt.Errorf("%w: no providers for %s", market.ErrNoDataAvailable, class)
	}

	calls := make([]raceCall[[]market.Candle], 0, len(chain))
	for _, src := range chain {
		src := src
		calls = append(calls, raceCall[[]market.Candle]{
			name: src.Name(),
			call: func(ctx context.Context) ([]market.Candle, error) {
				return fetchCandles(ctx, src, symbol, canonicalInterval, limit)
			},
		})
	}

	candles, errs := race(ctx, calls, e.opt.ProviderTimeout, e.opt.Race, func(cs []market.Candle) bool {
		return validSeries(cs, limit)
	})
	if candles != nil {
		out := interval.Tail(candles, limit)
		e.cache.put(key, out)
		return out, nil
	}

	if allUnsupported(errs) {
		return nil, fmt.Errorf("%w: %s (%s)", market.ErrUnsupportedSymbol, symbol, class)
	}
	return nil, fmt.Errorf("%w: %s %s (%s)", market.ErrNoDataAvailable, symbol, canonicalInterval, class)
}

// fetchCandles asks one source for the requested timeframe, going through the
// provider's native vocabulary or a synthesis plan.
func fetchCandles(ctx context.Context, src provider.CandleSource, symbol, canonicalInterval string, limit int) ([]market.Candle, error) {
	if _, ok := interval.ToProvider(src.Name(), canonicalInterval); ok {
		cs, err := src.Candles(ctx, symbol, canonicalInterval, limit)
		if err != nil {
			return nil, err
		}
		return interval.Tail(cs, limit), nil
	}
	if native, group, ok := interval.Plan(src.Name(), canonicalInterval); ok {
		fine, err := src.Candles(ctx, symbol, native, limit*group)
		if err != nil {
			return nil, err
		}
		return interval.Tail(interval.Synthesize(fine, group), limit), nil
	}
	return nil, fmt.Errorf("%w: %s cannot serve interval %s", market.ErrInvalidResponse, src.Name(), canonicalInterval)
}

// validSeries checks the structural contract: non-empty, strictly ascending
// open times, within limit.
func validSeries(cs []market.Candle, limit int) bool {
	if len(cs) == 0 || len(cs) > limit {
		return false
	}
	for i := range cs {
		if cs[i].OpenTime >= cs[i].CloseTime {
			return false
		}
		if i > 0 && cs[i-1].OpenTime >= cs[i].OpenTime {
			return false
		}
	}
	return true
}

func allUnsupported(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !errors.Is(err, market.ErrUnsupportedSymbol) {
			return false
		}
	}
	return true
}
