// Package okx adapts the OKX v5 spot market REST API.
package okx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"marketfeed/internal/httpx"
	"marketfeed/internal/interval"
	"marketfeed/internal/market"
	"marketfeed/internal/symbols"
)

const (
	defaultBaseURL = "https://www.okx.com"
	maxCandleLimit = 300
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
		cfg.Name = symbols.ProviderOKX
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) Price(ctx context.Context, symbol string) (string, error) {
	inst, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderOKX)
	if err != nil {
		return "", err
	}
	body, err := s.get(ctx, "/api/v5/market/ticker", url.Values{"instId": {inst}})
	if err != nil {
		return "", err
	}
	last := gjson.GetBytes(body, "data.0.last")
	if !last.Exists() || last.String() == "" {
		return "", fmt.Errorf("%w: okx ticker %s: missing data.0.last", market.ErrInvalidResponse, inst)
	}
	return last.String(), nil
}

func (s *Source) Candles(ctx context.Context, symbol, canonicalInterval string, limit int) ([]market.Candle, error) {
	inst, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderOKX)
	if err != nil {
		return nil, err
	}
	bar, ok := interval.ToProvider(symbols.ProviderOKX, canonicalInterval)
	if !ok {
		return nil, fmt.Errorf("%w: okx interval %s", market.ErrInvalidResponse, canonicalInterval)
	}
	dur, _ := interval.Duration(canonicalInterval)
	if limit <= 0 {
		limit = 100
	}
	if limit > maxCandleLimit {
		limit = maxCandleLimit
	}
	body, err := s.get(ctx, "/api/v5/market/candles", url.Values{
		"instId": {inst},
		"bar":    {bar},
		"limit":  {strconv.Itoa(limit)},
	})
	if err != nil {
		return nil, err
	}
	rows := gjson.GetBytes(body, "data")
	if !rows.Exists() || !rows.IsArray() {
		return nil, fmt.Errorf("%w: okx candles %s: missing data", market.ErrInvalidResponse, inst)
	}
	list := rows.Array()
	// rows arrive newest first: [ts, o, h, l, c, vol, ...]
	out := make([]market.Candle, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		row := list[i].Array()
		if len(row) < 6 {
			return nil, fmt.Errorf("%w: okx candles %s: short row", market.ErrInvalidResponse, inst)
		}
		ts, err := strconv.ParseInt(row[0].String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: okx candles %s: ts %q", market.ErrInvalidResponse, inst, row[0].String())
		}
		out = append(out, market.Candle{
			OpenTime:  ts,
			CloseTime: ts + dur.Milliseconds(),
			Open:      row[1].Float(),
			High:      row[2].Float(),
			Low:       row[3].Float(),
			Close:     row[4].Float(),
			Volume:    row[5].Float(),
		})
	}
	return out, nil
}

func (s *Source) Stats24h(ctx context.Context, symbol string) (market.Stats24h, error) {
	inst, err := symbols.Translate(market.Crypto, symbol, symbols.ProviderOKX)
	if err != nil {
		return market.Stats24h{}, err
	}
	body, err := s.get(ctx, "/api/v5/market/ticker", url.Values{"instId": {inst}})
	if err != nil {
		return market.Stats24h{}, err
	}
	row := gjson.GetBytes(body, "data.0")
	if !row.Exists() {
		return market.Stats24h{}, fmt.Errorf("%w: okx ticker %s: missing data.0", market.ErrInvalidResponse, inst)
	}
	last := row.Get("last").Float()
	open := row.Get("open24h").Float()
	if last <= 0 || open <= 0 {
		return market.Stats24h{}, fmt.Errorf("%w: okx ticker %s: last/open24h", market.ErrInvalidResponse, inst)
	}
	return market.Stats24h{
		PriceChange:        last - open,
		PriceChangePercent: (last - open) / open * 100,
		LastPrice:          last,
		HighPrice:          row.Get("high24h").Float(),
		LowPrice:           row.Get("low24h").Float(),
		Volume:             row.Get("vol24h").Float(),
	}, nil
}

func (s *Source) Snapshot(ctx context.Context) ([]market.Ticker, error) {
	body, err := s.get(ctx, "/api/v5/market/tickers", url.Values{"instType": {"SPOT"}})
	if err != nil {
		return nil, err
	}
	rows := gjson.GetBytes(body, "data")
	if !rows.Exists() || !rows.IsArray() {
		return nil, fmt.Errorf("%w: okx snapshot: missing data", market.ErrInvalidResponse)
	}
	list := rows.Array()
	out := make([]market.Ticker, 0, len(list))
	for _, row := range list {
		last := row.Get("last").Float()
		open := row.Get("open24h").Float()
		if last <= 0 || open <= 0 {
			continue
		}
		out = append(out, market.Ticker{
			// BTC-USDT -> BTCUSDT, back to the canonical compact form
			Symbol:        strings.ReplaceAll(row.Get("instId").String(), "-", ""),
			LastPrice:     last,
			ChangePercent: (last - open) / open * 100,
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: okx snapshot: no parsable rows", market.ErrInvalidResponse)
	}
	return out, nil
}

func (s *Source) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u := s.cfg.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: okx: %v", market.ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: okx: %v", market.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: okx: GET %s -> %d", market.ErrProviderUnavailable, path, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: okx: read body: %v", market.ErrProviderUnavailable, err)
	}
	if code := gjson.GetBytes(body, "code"); code.Exists() && code.String() != "0" {
		return nil, fmt.Errorf("%w: okx: code=%s msg=%q", market.ErrInvalidResponse, code.String(), gjson.GetBytes(body, "msg").String())
	}
	return body, nil
}
