package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"marketfeed/internal/logger"
	"marketfeed/internal/market"
	"marketfeed/internal/provider"
)

// GetTopMovers ranks the biggest gainers or losers of one asset class.
//
// Crypto races full-market snapshots across the exchanges and ranks the
// winner's rows. Forex has no bulk endpoint anywhere, so it walks the fixed
// pair universe sequentially, comparing today's rate against a reference
// date; the few pairs keep the extra round trips cheap, and a pair whose
// lookup fails is skipped rather than failing the ranking.
func (e *Engine) GetTopMovers(ctx context.Context, direction market.Direction, class market.AssetClass, limit int) ([]market.Mover, error) {
	if direction != market.Gainers && direction != market.Losers {
		return nil, fmt.Errorf("%w: unknown direction %q", market.ErrNoDataAvailable, direction)
	}
	if limit <= 0 {
		limit = 10
	}
	key := cacheKey{Op: "movers", Class: class, Interval: string(direction), Limit: limit}
	if v, ok := e.cache.get(key); ok {
		return v.([]market.Mover), nil
	}

	var (
		movers []market.Mover
		err    error
	)
	switch class {
	case market.Crypto:
		movers, err = e.cryptoMovers(ctx)
	case market.Forex:
		movers, err = e.forexMovers(ctx)
	default:
		return nil, fmt.Errorf("%w: movers not available for %s", market.ErrNoDataAvailable, class)
	}
	if err != nil {
		return nil, err
	}

	sortMovers(movers, direction)
	if len(movers) > limit {
		movers = movers[:limit]
	}
	e.cache.put(key, movers)
	return movers, nil
}

func (e *Engine) cryptoMovers(ctx context.Context) ([]market.Mover, error) {
	if len(e.reg.Snapshots) == 0 {
		return nil, fmt.Errorf("%w: no snapshot providers", market.ErrNoDataAvailable)
	}
	calls := make([]raceCall[[]market.Ticker], 0, len(e.reg.Snapshots))
	for _, src := range e.reg.Snapshots {
		src := src
		calls = append(calls, raceCall[[]market.Ticker]{
			name: src.Name(),
			call: func(ctx context.Context) ([]market.Ticker, error) {
				return src.Snapshot(ctx)
			},
		})
	}
	snapshot, _ := race(ctx, calls, e.opt.ProviderTimeout, e.opt.Race, func(ts []market.Ticker) bool {
		return len(ts) > 0
	})
	if snapshot == nil {
		return nil, fmt.Errorf("%w: crypto movers snapshot", market.ErrNoDataAvailable)
	}

	movers := make([]market.Mover, 0, len(snapshot))
	for _, t := range snapshot {
		if !strings.HasSuffix(t.Symbol, e.opt.QuoteAsset) {
			continue
		}
		movers = append(movers, market.Mover{Symbol: t.Symbol, Price: t.LastPrice, Change: t.ChangePercent})
	}
	if len(movers) == 0 {
		return nil, fmt.Errorf("%w: no %s-quoted rows in snapshot", market.ErrNoDataAvailable, e.opt.QuoteAsset)
	}
	return movers, nil
}

func (e *Engine) forexMovers(ctx context.Context) ([]market.Mover, error) {
	src := e.reg.ForexRates
	if src == nil {
		return nil, fmt.Errorf("%w: no forex rate provider", market.ErrNoDataAvailable)
	}
	refDate := e.now().UTC().AddDate(0, 0, -e.opt.ForexLookbackDays).Format("2006-01-02")

	movers := make([]market.Mover, 0, len(e.opt.ForexPairs))
	for _, pair := range e.opt.ForexPairs {
		mover, err := e.comparePair(ctx, src, pair, refDate)
		if err != nil {
			// partial rankings are fine; a dead pair just drops out
			logger.Warnf("movers: skipping %s: %v", pair, err)
			continue
		}
		movers = append(movers, mover)
	}
	if len(movers) == 0 {
		return nil, fmt.Errorf("%w: forex movers", market.ErrNoDataAvailable)
	}
	return movers, nil
}

func (e *Engine) comparePair(ctx context.Context, src provider.ForexRateSource, pair, refDate string) (market.Mover, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opt.ProviderTimeout)
	defer cancel()

	nowRaw, err := src.Price(callCtx, pair)
	if err != nil {
		return market.Mover{}, err
	}
	refRaw, err := src.RateOn(callCtx, pair, refDate)
	if err != nil {
		return market.Mover{}, err
	}
	nowRate, err := decimal.NewFromString(nowRaw)
	if err != nil || !nowRate.IsPositive() {
		return market.Mover{}, fmt.Errorf("%w: rate %q", market.ErrInvalidResponse, nowRaw)
	}
	refRate, err := decimal.NewFromString(refRaw)
	if err != nil || !refRate.IsPositive() {
		return market.Mover{}, fmt.Errorf("%w: reference rate %q", market.ErrInvalidResponse, refRaw)
	}
	change := nowRate.Sub(refRate).Div(refRate).Mul(decimal.NewFromInt(100))
	price, _ := nowRate.Float64()
	chg, _ := change.Float64()
	return market.Mover{Symbol: pair, Price: price, Change: chg}, nil
}

// sortMovers orders by percent change: non-increasing for gainers,
// non-decreasing for losers. Ties break on symbol for a stable answer.
func sortMovers(movers []market.Mover, direction market.Direction) {
	sort.Slice(movers, func(i, j int) bool {
		if movers[i].Change == movers[j].Change {
			return movers[i].Symbol < movers[j].Symbol
		}
		if direction == market.Losers {
			return movers[i].Change < movers[j].Change
		}
		return movers[i].Change > movers[j].Change
	})
}
