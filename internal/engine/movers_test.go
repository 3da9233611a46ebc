package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"marketfeed/internal/market"
)

func cryptoSnapshot() []market.Ticker {
	return []market.Ticker{
		{Symbol: "BTCUSDT", LastPrice: 64000, ChangePercent: 10},
		{Symbol: "ETHUSDT", LastPrice: 3200, ChangePercent: -2},
		{Symbol: "SOLUSDT", LastPrice: 150, ChangePercent: 7},
		{Symbol: "XRPUSDT", LastPrice: 0.52, ChangePercent: 15},
		{Symbol: "ADAUSDT", LastPrice: 0.45, ChangePercent: 3},
		// quoted in something else entirely, must be filtered out
		{Symbol: "ETHBTC", LastPrice: 0.05, ChangePercent: 99},
	}
}

func TestGetTopMovers_CryptoGainers(t *testing.T) {
	t.Parallel()

	e := New(Registry{}, Options{ProviderTimeout: time.Second})
	e.reg.Snapshots = append(e.reg.Snapshots, &fakeSnapshotSource{name: "binance", tickers: cryptoSnapshot()})

	movers, err := e.GetTopMovers(context.Background(), market.Gainers, market.Crypto, 3)
	require.NoError(t, err)
	require.Len(t, movers, 3)
	require.Equal(t, []float64{15, 10, 7}, []float64{movers[0].Change, movers[1].Change, movers[2].Change})
	require.Equal(t, "XRPUSDT", movers[0].Symbol)
}

func TestGetTopMovers_CryptoLosers(t *testing.T) {
	t.Parallel()

	e := New(Registry{}, Options{ProviderTimeout: time.Second})
	e.reg.Snapshots = append(e.reg.Snapshots, &fakeSnapshotSource{name: "okx", tickers: cryptoSnapshot()})

	movers, err := e.GetTopMovers(context.Background(), market.Losers, market.Crypto, 2)
	require.NoError(t, err)
	require.Len(t, movers, 2)
	require.Equal(t, "ETHUSDT", movers[0].Symbol)
	require.Equal(t, -2.0, movers[0].Change)
	require.Equal(t, 3.0, movers[1].Change)
}

func TestGetTopMovers_CryptoRacesSnapshots(t *testing.T) {
	t.Parallel()

	// One snapshot source is down; the other carries the ranking alone.
	e := New(Registry{}, Options{ProviderTimeout: time.Second})
	e.reg.Snapshots = append(e.reg.Snapshots,
		&fakeSnapshotSource{name: "binance", err: market.ErrProviderUnavailable},
		&fakeSnapshotSource{name: "bybit", tickers: cryptoSnapshot()},
	)

	movers, err := e.GetTopMovers(context.Background(), market.Gainers, market.Crypto, 1)
	require.NoError(t, err)
	require.Equal(t, "XRPUSDT", movers[0].Symbol)
}

func TestGetTopMovers_ForexComparesReferenceDate(t *testing.T) {
	t.Parallel()

	// Arrange: EURUSD rallied, GBPUSD slid since the reference date.
	rates := &fakeForexRates{
		name:       "frankfurter",
		rates:      map[string]string{"EURUSD": "1.0856", "GBPUSD": "1.2500"},
		references: map[string]string{"EURUSD": "1.0700", "GBPUSD": "1.3000"},
	}
	e := New(Registry{ForexRates: rates}, Options{
		ProviderTimeout:   time.Second,
		ForexPairs:        []string{"EURUSD", "GBPUSD"},
		ForexLookbackDays: 7,
	})
	fixed := time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	// Act
	movers, err := e.GetTopMovers(context.Background(), market.Gainers, market.Forex, 10)

	// Assert: reference lookups target today minus the lookback window.
	require.NoError(t, err)
	require.Equal(t, "2026-02-03", rates.gotDate.Load())
	require.Len(t, movers, 2)
	require.Equal(t, "EURUSD", movers[0].Symbol)
	require.InDelta(t, 1.4579, movers[0].Change, 1e-3)
	require.Equal(t, "GBPUSD", movers[1].Symbol)
	require.InDelta(t, -3.8462, movers[1].Change, 1e-3)
}

func TestGetTopMovers_ForexSkipsFailedPairs(t *testing.T) {
	t.Parallel()

	rates := &fakeForexRates{
		name:       "frankfurter",
		rates:      map[string]string{"EURUSD": "1.10"}, // GBPUSD missing -> unparsable
		references: map[string]string{"EURUSD": "1.00"},
	}
	e := New(Registry{ForexRates: rates}, Options{
		ProviderTimeout: time.Second,
		ForexPairs:      []string{"GBPUSD", "EURUSD"},
	})

	movers, err := e.GetTopMovers(context.Background(), market.Gainers, market.Forex, 10)
	require.NoError(t, err)
	require.Len(t, movers, 1)
	require.Equal(t, "EURUSD", movers[0].Symbol)
	require.InDelta(t, 10.0, movers[0].Change, 1e-9)
}

func TestGetTopMovers_UnknownDirection(t *testing.T) {
	t.Parallel()

	e := New(Registry{}, Options{})
	_, err := e.GetTopMovers(context.Background(), market.Direction("sideways"), market.Crypto, 5)
	require.ErrorIs(t, err, market.ErrNoDataAvailable)
}

func TestGetTopMovers_UnrankedClass(t *testing.T) {
	t.Parallel()

	e := New(Registry{}, Options{})
	_, err := e.GetTopMovers(context.Background(), market.Gainers, market.Stocks, 5)
	require.ErrorIs(t, err, market.ErrNoDataAvailable)
}
