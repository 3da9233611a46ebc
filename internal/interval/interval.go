// Package interval translates canonical timeframe tokens into provider
// vocabularies and derives coarser candle series from finer native ones.
package interval

import (
	"time"

	"marketfeed/internal/market"
	"marketfeed/internal/symbols"
)

// Canonical tokens accepted by the engine.
var durations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"1d":  24 * time.Hour,
	"1w":  7 * 24 * time.Hour,
}

// Duration returns the fixed span of a canonical interval token.
func Duration(canonical string) (time.Duration, bool) {
	d, ok := durations[canonical]
	return d, ok
}

var providerTokens = map[string]map[string]string{
	symbols.ProviderBinance: {
		"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
		"1h": "1h", "4h": "4h", "1d": "1d", "1w": "1w",
	},
	symbols.ProviderBybit: {
		"1m": "1", "5m": "5", "15m": "15", "30m": "30",
		"1h": "60", "4h": "240", "1d": "D", "1w": "W",
	},
	symbols.ProviderOKX: {
		"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
		"1h": "1H", "4h": "4H", "1d": "1D", "1w": "1W",
	},
	symbols.ProviderYahoo: {
		"1m": "1m", "5m": "5m", "15m": "15m", "30m": "30m",
		"1h": "1h", "1d": "1d", "1w": "1wk",
	},
	symbols.ProviderFrankfurter: {
		"1d": "1d",
	},
}

type plan struct {
	Native string
	Group  int
}

// Intervals a provider cannot serve natively, synthesized by bucketing a finer
// native series. Frankfurter publishes business-day rates, so a week is five
// daily samples.
var synthesisPlans = map[string]map[string]plan{
	symbols.ProviderYahoo: {
		"4h": {Native: "1h", Group: 4},
	},
	symbols.ProviderFrankfurter: {
		"1w": {Native: "1d", Group: 5},
	},
}

// ToProvider maps a canonical interval to providerID's native token.
func ToProvider(providerID, canonical string) (string, bool) {
	m, ok := providerTokens[providerID]
	if !ok {
		return "", false
	}
	tok, ok := m[canonical]
	return tok, ok
}

// Plan returns the finer canonical interval and group size used to synthesize
// a timeframe providerID cannot serve natively. ok is false when the interval
// is either native (use ToProvider) or not derivable for this provider.
func Plan(providerID, canonical string) (native string, group int, ok bool) {
	m, found := synthesisPlans[providerID]
	if !found {
		return "", 0, false
	}
	p, found := m[canonical]
	if !found {
		return "", 0, false
	}
	return p.Native, p.Group, true
}

// Synthesize buckets consecutive non-overlapping groups of `group` native
// candles into one derived candle each: open from the first member, close from
// the last, high/low over the group, volume summed, open/close times from the
// first/last member. A trailing group smaller than `group` is dropped.
func Synthesize(native []market.Candle, group int) []market.Candle {
	if group <= 1 {
		return native
	}
	n := len(native) / group
	out := make([]market.Candle, 0, n)
	for i := 0; i+group <= len(native); i += group {
		g := native[i : i+group]
		d := market.Candle{
			OpenTime:  g[0].OpenTime,
			CloseTime: g[len(g)-1].CloseTime,
			Open:      g[0].Open,
			Close:     g[len(g)-1].Close,
			High:      g[0].High,
			Low:       g[0].Low,
		}
		for _, c := range g {
			if c.High > d.High {
				d.High = c.High
			}
			if c.Low < d.Low {
				d.Low = c.Low
			}
			d.Volume += c.Volume
		}
		out = append(out, d)
	}
	return out
}

// Tail keeps the most recent n candles of an ascending series.
func Tail(candles []market.Candle, n int) []market.Candle {
	if n <= 0 || len(candles) <= n {
		return candles
	}
	return candles[len(candles)-n:]
}
