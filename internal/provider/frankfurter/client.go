package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"marketfeed/internal/market"
)

const defaultBaseURL = "https://api.frankfurter.app"

// HTTPClient describes an HTTP client.
//
//go:generate mockgen -package=frankfurter_test -destination=mock_http_client_test.go -source=client.go HTTPClient
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a client for the free-tier daily reference-rate API.
type Client struct {
	// baseURL is the base URL for the API.
	baseURL string
	// httpClient is the HTTP httpClient.
	httpClient HTTPClient
	// header contains additional headers to be sent with each request.
	header http.Header
}

// ClientOption is a configuration option for the rates client.
type ClientOption func(*Client)

// WithBaseURL sets the base URL for the API.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient sets the HTTP client for the API.
func WithHTTPClient(httpClient HTTPClient) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader sets additional headers to be sent with each request.
func WithHeader(header http.Header) ClientOption {
	return func(c *Client) {
		for key, values := range header {
			for _, value := range values {
				c.header.Add(key, value)
			}
		}
	}
}

// NewClient creates a new rates client. The API is keyless.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
		header:     http.Header{},
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// RatesResponse is the single-date payload: base, date, and quote rates.
type RatesResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}

// SeriesResponse is the date-range payload: rates keyed by ISO date.
type SeriesResponse struct {
	Amount    float64                       `json:"amount"`
	Base      string                        `json:"base"`
	StartDate string                        `json:"start_date"`
	EndDate   string                        `json:"end_date"`
	Rates     map[string]map[string]float64 `json:"rates"`
}

// Latest fetches today's reference rates for base against the quote symbols.
func (c *Client) Latest(ctx context.Context, base string, quoteSymbols []string) (RatesResponse, error) {
	var out RatesResponse
	if err := c.getJSON(ctx, "/latest", base, quoteSymbols, &out); err != nil {
		return RatesResponse{}, err
	}
	return out, nil
}

// On fetches the reference rates published on one ISO date (YYYY-MM-DD).
// Weekends and holidays resolve to the closest preceding business day.
func (c *Client) On(ctx context.Context, date, base string, quoteSymbols []string) (RatesResponse, error) {
	var out RatesResponse
	if err := c.getJSON(ctx, "/"+date, base, quoteSymbols, &out); err != nil {
		return RatesResponse{}, err
	}
	return out, nil
}

// Range fetches the daily rate series between two ISO dates inclusive.
func (c *Client) Range(ctx context.Context, start, end, base string, quoteSymbols []string) (SeriesResponse, error) {
	var out SeriesResponse
	if err := c.getJSON(ctx, "/"+start+".."+end, base, quoteSymbols, &out); err != nil {
		return SeriesResponse{}, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path, base string, quoteSymbols []string, dst any) error {
	q := url.Values{}
	q.Set("base", base)
	if len(quoteSymbols) > 0 {
		q.Set("symbols", strings.Join(quoteSymbols, ","))
	}
	u := c.baseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: frankfurter: %v", market.ErrProviderUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: frankfurter: %v", market.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: frankfurter: GET %s -> %d", market.ErrProviderUnavailable, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: frankfurter: decode: %v", market.ErrInvalidResponse, err)
	}
	return nil
}
