package yahoo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/httpx"
	"marketfeed/internal/market"
	"marketfeed/internal/provider/yahoo"
)

func newTestSource(t *testing.T, class market.AssetClass, handler http.HandlerFunc) *yahoo.Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return yahoo.New(yahoo.Config{BaseURL: srv.URL, Class: class}, httpx.New(5*time.Second))
}

func TestPrice_FromChartMeta(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, market.Stocks, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/AAPL", r.URL.Path)
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":189.84}}],"error":null}}`))
	})

	price, err := src.Price(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Equal(t, "189.84", price)
}

func TestPrice_CommodityTranslation(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, market.Commodities, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/GC=F", r.URL.Path)
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{"regularMarketPrice":2045.3}}],"error":null}}`))
	})

	price, err := src.Price(context.Background(), "GOLD")
	require.NoError(t, err)
	require.Equal(t, "2045.3", price)
}

func TestPrice_ChartError(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, market.Stocks, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})

	_, err := src.Price(context.Background(), "ZZZZ")
	require.ErrorIs(t, err, market.ErrInvalidResponse)
}

func TestCandles_SkipsNullRows(t *testing.T) {
	t.Parallel()

	// the middle row is a trading halt: null quote entries, present timestamp
	src := newTestSource(t, market.Stocks, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1d", r.URL.Query().Get("interval"))
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1706745600,1706832000,1706918400],
			"indicators":{"quote":[{
				"open":[189.1,null,190.2],
				"high":[190.5,null,191.8],
				"low":[188.2,null,189.9],
				"close":[189.9,null,191.5],
				"volume":[52000000,null,48000000]
			}]}
		}],"error":null}}`))
	})

	candles, err := src.Candles(context.Background(), "AAPL", "1d", 10)
	require.NoError(t, err)
	require.Len(t, candles, 2)
	require.Equal(t, int64(1706745600000), candles[0].OpenTime)
	require.Equal(t, 189.1, candles[0].Open)
	require.Equal(t, int64(1706918400000), candles[1].OpenTime)
	require.Equal(t, 191.5, candles[1].Close)
	require.Equal(t, 48000000.0, candles[1].Volume)
	require.Equal(t, (24 * time.Hour).Milliseconds(), candles[0].CloseTime-candles[0].OpenTime)
}

func TestCandles_AllRowsNull(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, market.Indices, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v8/finance/chart/%5EGSPC", r.URL.EscapedPath())
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1706745600],
			"indicators":{"quote":[{"open":[null],"high":[null],"low":[null],"close":[null],"volume":[null]}]}
		}],"error":null}}`))
	})

	_, err := src.Candles(context.Background(), "SP500", "1d", 10)
	require.ErrorIs(t, err, market.ErrInvalidResponse)
}

func TestCandles_MisalignedArrays(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, market.Stocks, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":[{
			"timestamp":[1706745600,1706832000],
			"indicators":{"quote":[{"open":[189.1],"high":[190.5],"low":[188.2],"close":[189.9],"volume":[1]}]}
		}],"error":null}}`))
	})

	_, err := src.Candles(context.Background(), "AAPL", "1d", 10)
	require.ErrorIs(t, err, market.ErrInvalidResponse)
}
