// Package yahoo adapts a quote-chart REST endpoint serving equities,
// commodities and indices. The payload keys parallel arrays by timestamp
// index; rows with null quote entries are skipped.
package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"marketfeed/internal/httpx"
	"marketfeed/internal/interval"
	"marketfeed/internal/market"
	"marketfeed/internal/symbols"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// rangeFor picks a range token wide enough for typical limits per interval.
var rangeFor = map[string]string{
	"1m":  "1d",
	"5m":  "5d",
	"15m": "5d",
	"30m": "1mo",
	"1h":  "1mo",
	"1d":  "1y",
	"1wk": "5y",
}

type Config struct {
	Name    string
	BaseURL string
	// Class decides which symbol table translates the canonical identifier.
	Class market.AssetClass
}

type Source struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Source {
	if cfg.Name == "" {
		cfg.Name = symbols.ProviderYahoo
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Class == "" {
		cfg.Class = market.Stocks
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) Price(ctx context.Context, symbol string) (string, error) {
	ticker, err := symbols.Translate(s.cfg.Class, symbol, symbols.ProviderYahoo)
	if err != nil {
		return "", err
	}
	body, err := s.chart(ctx, ticker, "1d", "1d")
	if err != nil {
		return "", err
	}
	price := gjson.GetBytes(body, "chart.result.0.meta.regularMarketPrice")
	if !price.Exists() {
		return "", fmt.Errorf("%w: yahoo %s: missing meta.regularMarketPrice", market.ErrInvalidResponse, ticker)
	}
	return price.Raw, nil
}

func (s *Source) Candles(ctx context.Context, symbol, canonicalInterval string, limit int) ([]market.Candle, error) {
	ticker, err := symbols.Translate(s.cfg.Class, symbol, symbols.ProviderYahoo)
	if err != nil {
		return nil, err
	}
	tok, ok := interval.ToProvider(symbols.ProviderYahoo, canonicalInterval)
	if !ok {
		return nil, fmt.Errorf("%w: yahoo interval %s", market.ErrInvalidResponse, canonicalInterval)
	}
	dur, _ := interval.Duration(canonicalInterval)
	if limit <= 0 {
		limit = 100
	}
	body, err := s.chart(ctx, ticker, tok, rangeFor[tok])
	if err != nil {
		return nil, err
	}
	result := gjson.GetBytes(body, "chart.result.0")
	if !result.Exists() {
		return nil, fmt.Errorf("%w: yahoo %s: missing chart.result.0", market.ErrInvalidResponse, ticker)
	}
	stamps := result.Get("timestamp").Array()
	quote := result.Get("indicators.quote.0")
	if len(stamps) == 0 || !quote.Exists() {
		return nil, fmt.Errorf("%w: yahoo %s: missing timestamp/quote arrays", market.ErrInvalidResponse, ticker)
	}
	opens := quote.Get("open").Array()
	highs := quote.Get("high").Array()
	lows := quote.Get("low").Array()
	closes := quote.Get("close").Array()
	volumes := quote.Get("volume").Array()
	if len(opens) != len(stamps) || len(highs) != len(stamps) || len(lows) != len(stamps) || len(closes) != len(stamps) {
		return nil, fmt.Errorf("%w: yahoo %s: quote arrays misaligned with timestamps", market.ErrInvalidResponse, ticker)
	}
	out := make([]market.Candle, 0, len(stamps))
	for i, ts := range stamps {
		// null rows mark halts/holidays in the parallel arrays
		if opens[i].Type == gjson.Null || highs[i].Type == gjson.Null ||
			lows[i].Type == gjson.Null || closes[i].Type == gjson.Null {
			continue
		}
		openMs := ts.Int() * 1000
		c := market.Candle{
			OpenTime:  openMs,
			CloseTime: openMs + dur.Milliseconds(),
			Open:      opens[i].Float(),
			High:      highs[i].Float(),
			Low:       lows[i].Float(),
			Close:     closes[i].Float(),
		}
		if i < len(volumes) && volumes[i].Type != gjson.Null {
			c.Volume = volumes[i].Float()
		}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: yahoo %s: all rows null", market.ErrInvalidResponse, ticker)
	}
	return interval.Tail(out, limit), nil
}

func (s *Source) chart(ctx context.Context, ticker, intervalTok, rangeTok string) ([]byte, error) {
	q := url.Values{}
	q.Set("interval", intervalTok)
	if rangeTok != "" {
		q.Set("range", rangeTok)
	}
	u := s.cfg.BaseURL + "/v8/finance/chart/" + url.PathEscape(ticker) + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo: %v", market.ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo: %v", market.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: yahoo: GET chart/%s -> %d", market.ErrProviderUnavailable, ticker, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo: read body: %v", market.ErrProviderUnavailable, err)
	}
	if chartErr := gjson.GetBytes(body, "chart.error"); chartErr.Exists() && chartErr.Type != gjson.Null {
		return nil, fmt.Errorf("%w: yahoo %s: %s", market.ErrInvalidResponse, ticker, chartErr.Get("description").String())
	}
	return body, nil
}
