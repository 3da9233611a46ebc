package bybit_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/httpx"
	"marketfeed/internal/market"
	"marketfeed/internal/provider/bybit"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *bybit.Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return bybit.New(bybit.Config{BaseURL: srv.URL}, httpx.New(5*time.Second))
}

func TestPrice(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v5/market/tickers", r.URL.Path)
		require.Equal(t, "spot", r.URL.Query().Get("category"))
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","lastPrice":"64123.5"}]}}`))
	})

	price, err := src.Price(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, "64123.5", price)
}

func TestPrice_APIError(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10001,"retMsg":"params error","result":{}}`))
	})

	_, err := src.Price(context.Background(), "BTCUSDT")
	require.ErrorIs(t, err, market.ErrInvalidResponse)
}

func TestPrice_UnsupportedSymbol(t *testing.T) {
	t.Parallel()

	// the request must be rejected before any HTTP traffic
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for unsupported symbol")
	})

	_, err := src.Price(context.Background(), "NOPEUSDT")
	require.ErrorIs(t, err, market.ErrUnsupportedSymbol)
}

func TestCandles_ReversesNewestFirstRows(t *testing.T) {
	t.Parallel()

	// two hourly rows, newest first as the API delivers them
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v5/market/kline", r.URL.Path)
		require.Equal(t, "60", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[
			["1706799600000","42100","42200","42000","42150","12.5","526875"],
			["1706796000000","42000","42120","41900","42100","10.1","424210"]
		]}}`))
	})

	candles, err := src.Candles(context.Background(), "BTCUSDT", "1h", 10)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	// ascending after the reversal
	require.Equal(t, int64(1706796000000), candles[0].OpenTime)
	require.Equal(t, int64(1706799600000), candles[1].OpenTime)
	require.Equal(t, 42000.0, candles[0].Open)
	require.Equal(t, 42150.0, candles[1].Close)
	// close time derives from the canonical interval span
	require.Equal(t, time.Hour.Milliseconds(), candles[0].CloseTime-candles[0].OpenTime)
}

func TestStats24h(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{
			"symbol":"BTCUSDT","lastPrice":"64000","prevPrice24h":"62000",
			"price24hPcnt":"0.0323","highPrice24h":"64500","lowPrice24h":"61800","volume24h":"1234.5"
		}]}}`))
	})

	stats, err := src.Stats24h(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 64000.0, stats.LastPrice)
	require.Equal(t, 2000.0, stats.PriceChange)
	require.InDelta(t, 3.23, stats.PriceChangePercent, 1e-9)
	require.Equal(t, 64500.0, stats.HighPrice)
	require.Equal(t, 1234.5, stats.Volume)
}

func TestStats24h_MissingFieldIsInvalidResponse(t *testing.T) {
	t.Parallel()

	// prevPrice24h is absent; decaying it to zero would fabricate a
	// PriceChange equal to the last price.
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{
			"symbol":"BTCUSDT","lastPrice":"64000",
			"price24hPcnt":"0.0323","highPrice24h":"64500","lowPrice24h":"61800","volume24h":"1234.5"
		}]}}`))
	})

	_, err := src.Stats24h(context.Background(), "BTCUSDT")
	require.ErrorIs(t, err, market.ErrInvalidResponse)
	require.ErrorContains(t, err, "prevPrice24h")
}

func TestSnapshot_SkipsZeroPriceRows(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Empty(t, r.URL.Query().Get("symbol"), "snapshot must query the whole market")
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[
			{"symbol":"BTCUSDT","lastPrice":"64000","price24hPcnt":"0.01"},
			{"symbol":"DEADUSDT","lastPrice":"0","price24hPcnt":"0"},
			{"symbol":"ETHUSDT","lastPrice":"3200","price24hPcnt":"-0.02"}
		]}}`))
	})

	tickers, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	require.Len(t, tickers, 2)
	require.Equal(t, "BTCUSDT", tickers[0].Symbol)
	require.InDelta(t, 1.0, tickers[0].ChangePercent, 1e-9)
	require.InDelta(t, -2.0, tickers[1].ChangePercent, 1e-9)
}

func TestHTTPErrorIsProviderUnavailable(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})

	_, err := src.Price(context.Background(), "BTCUSDT")
	require.ErrorIs(t, err, market.ErrProviderUnavailable)
}
