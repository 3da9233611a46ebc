package erapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/httpx"
	"marketfeed/internal/market"
	"marketfeed/internal/provider/erapi"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *erapi.Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return erapi.New(erapi.Config{BaseURL: srv.URL}, httpx.New(5*time.Second))
}

func TestPrice(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/latest/EUR", r.URL.Path)
		_, _ = w.Write([]byte(`{"result":"success","base_code":"EUR","rates":{"USD":1.0856,"JPY":161.2}}`))
	})

	price, err := src.Price(context.Background(), "EURUSD")
	require.NoError(t, err)
	require.Equal(t, "1.0856", price)
}

func TestPrice_MissingQuote(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"success","base_code":"EUR","rates":{"JPY":161.2}}`))
	})

	_, err := src.Price(context.Background(), "EURUSD")
	require.ErrorIs(t, err, market.ErrInvalidResponse)
}

func TestPrice_APIFailure(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":"error","error-type":"invalid-key"}`))
	})

	_, err := src.Price(context.Background(), "EURUSD")
	require.ErrorIs(t, err, market.ErrInvalidResponse)
}

func TestPrice_UnknownPair(t *testing.T) {
	t.Parallel()

	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request for unsupported pair")
	})

	_, err := src.Price(context.Background(), "ABCXYZ")
	require.ErrorIs(t, err, market.ErrUnsupportedSymbol)
}
