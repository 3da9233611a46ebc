package engine

import (
	"context"
	"fmt"

	"marketfeed/internal/market"
)

// Get24hStats resolves rolling 24-hour statistics for a crypto symbol. The
// query patterns with the bulk lookups: every stats source races and the
// first answer with a positive last price wins.
func (e *Engine) Get24hStats(ctx context.Context, symbol string) (market.Stats24h, error) {
	key := cacheKey{Op: "stats24h", Class: market.Crypto, Symbol: symbol}
	if v, ok := e.cache.get(key); ok {
		return v.(market.Stats24h), nil
	}

	if len(e.reg.Stats) == 0 {
		return market.Stats24h{}, fmt.Errorf("%w: no stats providers", market.ErrNoDataAvailable)
	}

	calls := make([]raceCall[market.Stats24h], 0, len(e.reg.Stats))
	for _, src := range e.reg.Stats {
		src := src
		calls = append(calls, raceCall[market.Stats24h]{
			name: src.Name(),
			call: func(ctx context.Context) (market.Stats24h, error) {
				return src.Stats24h(ctx, symbol)
			},
		})
	}

	stats, errs := race(ctx, calls, e.opt.ProviderTimeout, e.opt.Race, func(s market.Stats24h) bool {
		return s.LastPrice > 0
	})
	if stats.LastPrice > 0 {
		e.cache.put(key, stats)
		return stats, nil
	}

	if allUnsupported(errs) {
		return market.Stats24h{}, fmt.Errorf("%w: %s (crypto)", market.ErrUnsupportedSymbol, symbol)
	}
	return market.Stats24h{}, fmt.Errorf("%w: 24h stats %s", market.ErrNoDataAvailable, symbol)
}
