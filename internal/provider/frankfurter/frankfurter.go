// Package frankfurter adapts a free-tier forex daily reference-rate API.
// Rates double as daily candles (one rate sample per business day); coarser
// timeframes are synthesized by the engine.
package frankfurter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"marketfeed/internal/interval"
	"marketfeed/internal/market"
	"marketfeed/internal/symbols"
)

type Config struct {
	Name string
}

type Source struct {
	cfg    Config
	client *Client
}

func New(cfg Config, client *Client) *Source {
	if cfg.Name == "" {
		cfg.Name = symbols.ProviderFrankfurter
	}
	return &Source{cfg: cfg, client: client}
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) Price(ctx context.Context, symbol string) (string, error) {
	base, quote, err := symbols.ForexPair(symbol)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Latest(ctx, base, []string{quote})
	if err != nil {
		return "", err
	}
	rate, ok := resp.Rates[quote]
	if !ok {
		return "", fmt.Errorf("%w: frankfurter %s: missing rate %s", market.ErrInvalidResponse, symbol, quote)
	}
	return strconv.FormatFloat(rate, 'f', -1, 64), nil
}

// RateOn returns the rate published on an ISO date (YYYY-MM-DD).
func (s *Source) RateOn(ctx context.Context, symbol, date string) (string, error) {
	base, quote, err := symbols.ForexPair(symbol)
	if err != nil {
		return "", err
	}
	resp, err := s.client.On(ctx, date, base, []string{quote})
	if err != nil {
		return "", err
	}
	rate, ok := resp.Rates[quote]
	if !ok {
		return "", fmt.Errorf("%w: frankfurter %s@%s: missing rate %s", market.ErrInvalidResponse, symbol, date, quote)
	}
	return strconv.FormatFloat(rate, 'f', -1, 64), nil
}

// Candles maps the daily rate series onto flat OHLC candles (one per business
// day, volume 0). Only the daily interval is native here.
func (s *Source) Candles(ctx context.Context, symbol, canonicalInterval string, limit int) ([]market.Candle, error) {
	if _, ok := interval.ToProvider(symbols.ProviderFrankfurter, canonicalInterval); !ok {
		return nil, fmt.Errorf("%w: frankfurter interval %s", market.ErrInvalidResponse, canonicalInterval)
	}
	base, quote, err := symbols.ForexPair(symbol)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 30
	}
	end := time.Now().UTC()
	// weekends and holidays publish no rate, so over-fetch calendar days
	start := end.AddDate(0, 0, -(limit*7/5 + 4))
	resp, err := s.client.Range(ctx, start.Format("2006-01-02"), end.Format("2006-01-02"), base, []string{quote})
	if err != nil {
		return nil, err
	}
	if len(resp.Rates) == 0 {
		return nil, fmt.Errorf("%w: frankfurter %s: empty series", market.ErrInvalidResponse, symbol)
	}
	dates := make([]string, 0, len(resp.Rates))
	for d := range resp.Rates {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	out := make([]market.Candle, 0, len(dates))
	for _, d := range dates {
		rate, ok := resp.Rates[d][quote]
		if !ok || rate <= 0 {
			continue
		}
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			return nil, fmt.Errorf("%w: frankfurter %s: date %q", market.ErrInvalidResponse, symbol, d)
		}
		openMs := day.UnixMilli()
		out = append(out, market.Candle{
			OpenTime:  openMs,
			CloseTime: openMs + (24 * time.Hour).Milliseconds(),
			Open:      rate,
			High:      rate,
			Low:       rate,
			Close:     rate,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: frankfurter %s: no usable rates", market.ErrInvalidResponse, symbol)
	}
	return interval.Tail(out, limit), nil
}
