// Package bybit adapts the Bybit v5 spot market REST API.
package bybit

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"

	"marketfeed/internal/httpx"
	"marketfeed/internal/interval"
	"marketfeed/internal/market"
	"marketfeed/internal/symbols"
)

const (
	defaultBaseURL = "https://api.bybit.com"
	maxKlineLimit  = 1000
)

type Config struct {
	Name    string
	BaseURL string
}

type Source struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = symbols.ProviderBybit
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) Price(ctx context.Context, symbol string) (string, error) {
	sym, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderBybit)
	if err != nil {
		return "", err
	}
	body, err := s.get(ctx, "/v5/market/tickers", url.Values{"category": {"spot"}, "symbol": {sym}})
	if err != nil {
		return "", err
	}
	last := gjson.GetBytes(body, "result.list.0.lastPrice")
	if !last.Exists() || last.String() == "" {
		return "", fmt.Errorf("%w: bybit ticker %s: missing result.list.0.lastPrice", market.ErrInvalidResponse, sym)
	}
	return last.String(), nil
}

func (s *Source) Candles(ctx context.Context, symbol, canonicalInterval string, limit int) ([]market.Candle, error) {
	sym, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderBybit)
	if err != nil {
		return nil, err
	}
	tok, ok := interval.ToProvider(symbols.ProviderBybit, canonicalInterval)
	if !ok {
		return nil, fmt.Errorf("%w: bybit interval %s", market.ErrInvalidResponse, canonicalInterval)
	}
	dur, _ := interval.Duration(canonicalInterval)
	if limit <= 0 {
		limit = 100
	}
	if limit > maxKlineLimit {
		limit = maxKlineLimit
	}
	body, err := s.get(ctx, "/v5/market/kline", url.Values{
		"category": {"spot"},
		"symbol":   {sym},
		"interval": {tok},
		"limit":    {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}
	rows := gjson.GetBytes(body, "result.list")
	if !rows.Exists() || !rows.IsArray() {
		return nil, fmt.Errorf("%w: bybit kline %s: missing result.list", market.ErrInvalidResponse, sym)
	}
	list := rows.Array()
	// rows arrive newest first: [startTime, open, high, low, close, volume, turnover]
	out := make([]market.Candle, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		row := list[i].Array()
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: bybit kline %s: short row", market.ErrInvalidResponse, sym)
		}
		start, err := strconv.ParseInt(row[0].String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bybit kline %s: startTime %q", market.ErrInvalidResponse, sym, row[0].String())
		}
		c := market.Candle{
			OpenTime:  start,
			CloseTime: start + dur.Milliseconds(),
			Open:      row[1].Float(),
			High:      row[2].Float(),
			Low:       row[3].Float(),
			Close:     row[4].Float(),
			Volume:    row[5].Float(),
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Source) Stats24h(ctx context.Context, symbol string) (market.Stats24h, error) {
	sym, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderBybit)
	if err != nil {
		return market.Stats24h{}, err
	}
	body, err := s.get(ctx, "/v5/market/tickers", url.Values{"category": {"spot"}, "symbol": {sym}})
	if err != nil {
		return market.Stats24h{}, err
	}
	row := gjson.GetBytes(body, "result.list.0")
	if !row.Exists() {
		return market.Stats24h{}, fmt.Errorf("%w: bybit ticker %s: missing result.list.0", market.ErrInvalidResponse, sym)
	}
	for _, field := range []string{"lastPrice", "prevPrice24h", "price24hPcnt", "highPrice24h", "lowPrice24h", "volume24h"} {
		if !row.Get(field).Exists() {
			return market.Stats24h{}, fmt.Errorf("%w: bybit ticker %s: missing %s", market.ErrInvalidResponse, sym, field)
		}
	}
	last := row.Get("lastPrice").Float()
	prev := row.Get("prevPrice24h").Float()
	if last <= 0 {
		return market.Stats24h{}, fmt.Errorf("%w: bybit ticker %s: lastPrice", market.ErrInvalidResponse, sym)
	}
	return market.Stats24h{
		PriceChange:        last - prev,
		PriceChangePercent: row.Get("price24hPcnt").Float() * 100,
		LastPrice:          last,
		HighPrice:          row.Get("highPrice24h").Float(),
		LowPrice:           row.Get("lowPrice24h").Float(),
		Volume:             row.Get("volume24h").Float(),
	}, nil
}

func (s *Source) Snapshot(ctx context.Context) ([]market.Ticker, error) {
	body, err := s.get(ctx, "/v5/market/tickers", url.Values{"category": {"spot"}})
	if err != nil {
		return nil, err
	}
	rows := gjson.GetBytes(body, "result.list")
	if !rows.Exists() || !rows.IsArray() {
		return nil, fmt.Errorf("%w: bybit snapshot: missing result.list", market.ErrInvalidResponse)
	}
	list := rows.Array()
	out := make([]market.Ticker, 0, len(list))
	for _, row := range list {
		last := row.Get("lastPrice").Float()
		if last <= 0 {
			continue
		}
		out = append(out, market.Ticker{
			Symbol:        row.Get("symbol").String(),
			LastPrice:     last,
			ChangePercent: row.Get("price24hPcnt").Float() * 100,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: bybit snapshot: no parsable rows", market.ErrInvalidResponse)
	}
	return out, nil
}

func (s *Source) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := s.cfg.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: bybit: %v", market.ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: bybit: %v", market.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: bybit: GET %s -> %d", market.ErrProviderUnavailable, path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: bybit: read body: %v", market.ErrProviderUnavailable, err)
	}
	if code := gjson.GetBytes(body, "retCode"); code.Exists() && code.Int() != 0 {
		return nil, fmt.Errorf("%w: bybit: retCode=%d msg=%q", market.ErrInvalidResponse, code.Int(), gjson.GetBytes(body, "retMsg").String())
	}
	return body, nil
}
