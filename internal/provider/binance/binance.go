// Package binance adapts the Binance spot REST API (via the go-binance SDK)
// to the engine's source contracts.
package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"

	"marketfeed/internal/interval"
	"marketfeed/internal/market"
	"marketfeed/internal/symbols"
)

const maxKlinesLimit = 1000

type Config struct {
	Name        string
	APIKey      string
	RESTBaseURL string
	HTTPTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = symbols.ProviderBinance
	}
	if c.HTTPTimeout <= 0 {
		c.HTTPTimeout = 10 * time.Second
	}
	return c
}

type Source struct {
	cfg    Config
	client *binance.Client
}

func New(cfg Config) *Source {
	final := cfg.withDefaults()
	client := binance.NewClient(final.APIKey, "")
	if base := strings.TrimSpace(final.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient = &http.Client{Timeout: final.HTTPTimeout}
	return &Source{cfg: final, client: client}
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) Price(ctx context.Context, symbol string) (string, error) {
	sym, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderBinance)
	if err != nil {
		return "", err
	}
	prices, err := s.client.NewListPricesService().Symbol(sym).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: binance ticker %s: %v", market.ErrProviderUnavailable, sym, err)
	}
	if len(prices) == 0 || prices[0] == nil {
		return "", fmt.Errorf("%w: binance ticker %s: empty result", market.ErrInvalidResponse, sym)
	}
	return prices[0].Price, nil
}

func (s *Source) Candles(ctx context.Context, symbol, canonicalInterval string, limit int) ([]market.Candle, error) {
	sym, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderBinance)
	if err != nil {
		return nil, err
	}
	tok, ok := interval.ToProvider(symbols.ProviderBinance, canonicalInterval)
	if !ok {
		return nil, fmt.Errorf("%w: binance interval %s", market.ErrInvalidResponse, canonicalInterval)
	}
	dur, _ := interval.Duration(canonicalInterval)
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlinesLimit {
		limit = maxKlinesLimit
	}
	kls, err := s.client.NewKlinesService().Symbol(sym).Interval(tok).Limit(limit).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: binance klines %s %s: %v", market.ErrProviderUnavailable, sym, tok, err)
	}
	out := make([]market.Candle, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		// Binance reports closeTime one ms before the next bucket; the engine
		// contract is closeTime == openTime + interval.
		c := market.Candle{OpenTime: kl.OpenTime, CloseTime: kl.OpenTime + dur.Milliseconds()}
		if c.Open, err = parseField("open", kl.Open); err != nil {
			return nil, err
		}
		if c.High, err = parseField("high", kl.High); err != nil {
			return nil, err
		}
		if c.Low, err = parseField("low", kl.Low); err != nil {
			return nil, err
		}
		if c.Close, err = parseField("close", kl.Close); err != nil {
			return nil, err
		}
		if c.Volume, err = parseField("volume", kl.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Source) Stats24h(ctx context.Context, symbol string) (market.Stats24h, error) {
	sym, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderBinance)
	if err != nil {
		return market.Stats24h{}, err
	}
	stats, err := s.client.NewListPriceChangeStatsService().Symbol(sym).Do(ctx)
	if err != nil {
		return market.Stats24h{}, fmt.Errorf("%w: binance 24hr %s: %v", market.ErrProviderUnavailable, sym, err)
	}
	if len(stats) == 0 || stats[0] == nil {
		return market.Stats24h{}, fmt.Errorf("%w: binance 24hr %s: empty result", market.ErrInvalidResponse, sym)
	}
	st := stats[0]
	out := market.Stats24h{}
	if out.PriceChange, err = parseField("priceChange", st.PriceChange); err != nil {
		return market.Stats24h{}, err
	}
	if out.PriceChangePercent, err = parseField("priceChangePercent", st.PriceChangePercent); err != nil {
		return market.Stats24h{}, err
	}
	if out.LastPrice, err = parseField("lastPrice", st.LastPrice); err != nil {
		return market.Stats24h{}, err
	}
	if out.HighPrice, err = parseField("highPrice", st.HighPrice); err != nil {
		return market.Stats24h{}, err
	}
	if out.LowPrice, err = parseField("lowPrice", st.LowPrice); err != nil {
		return market.Stats24h{}, err
	}
	if out.Volume, err = parseField("volume", st.Volume); err != nil {
		return market.Stats24h{}, err
	}
	return out, nil
}

func (s *Source) Snapshot(ctx context.Context) ([]market.Ticker, error) {
	stats, err := s.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: binance 24hr snapshot: %v", market.ErrProviderUnavailable, err)
	}
	out := make([]market.Ticker, 0, len(stats))
	for _, st := range stats {
		if st == nil {
			continue
		}
		last, err1 := strconv.ParseFloat(st.LastPrice, 64)
		chg, err2 := strconv.ParseFloat(st.PriceChangePercent, 64)
		if err1 != nil || err2 != nil {
			// snapshot rows are best effort; a single bad row is skipped
			continue
		}
		out = append(out, market.Ticker{Symbol: st.Symbol, LastPrice: last, ChangePercent: chg})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: binance 24hr snapshot: no parsable rows", market.ErrInvalidResponse)
	}
	return out, nil
}

func parseField(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: binance field %s=%q", market.ErrInvalidResponse, name, v)
	}
	return f, nil
}
