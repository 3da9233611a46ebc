// Package erapi adapts the open.er-api.com free exchange-rate endpoint. It
// only answers latest rates, so it sits behind frankfurter purely as a price
// fallback.
package erapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/tidwall/gjson"

	"marketfeed/internal/httpx"
	"marketfeed/internal/market"
	"marketfeed/internal/symbols"
)

const defaultBaseURL = "https://open.er-api.com/v6"

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
		cfg.Name = symbols.ProviderERAPI
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	return &Source{cfg: cfg, client: hc}
}

func (s *Source) Name() string { return s.cfg.Name }

func (s *Source) Price(ctx context.Context, symbol string) (string, error) {
	base, quote, err := symbols.ForexPair(symbol)
	if err != nil {
		return "", err
	}
	u := s.cfg.BaseURL + "/latest/" + base
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("%w: erapi: %v", market.ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := s.client.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: erapi: %v", market.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: erapi: GET /latest/%s -> %d", market.ErrProviderUnavailable, base, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: erapi: read body: %v", market.ErrProviderUnavailable, err)
	}
	if res := gjson.GetBytes(body, "result"); res.Exists() && res.String() != "success" {
		return "", fmt.Errorf("%w: erapi: result=%q", market.ErrInvalidResponse, res.String())
	}
	rate := gjson.GetBytes(body, "rates."+quote)
	if !rate.Exists() || rate.Float() <= 0 {
		return "", fmt.Errorf("%w: erapi %s: missing rates.%s", market.ErrInvalidResponse, symbol, quote)
	}
	return strconv.FormatFloat(rate.Float(), 'f', -1, 64), nil
}
