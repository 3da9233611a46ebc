// Package symbols maps canonical instrument identifiers to the vocabulary of
// each upstream provider. Tables are explicit pairs; an identifier missing
// from a table is an unsupported symbol, never silently substituted.
package symbols

import (
	"fmt"
	"sort"
	"strings"

	"marketfeed/internal/market"
)

// Provider ids used as table keys. Adapters register under these names.
const (
	ProviderBinance     = "binance"
	ProviderBybit       = "bybit"
	ProviderOKX         = "okx"
	ProviderFrankfurter = "frankfurter"
	ProviderERAPI       = "erapi"
	ProviderYahoo       = "yahoo"
)

// Canonical crypto symbols use the compact form (BTCUSDT). Binance and Bybit
// consume that form directly; OKX wants a dashed instId.
var cryptoOKX = map[string]string{
	"BTCUSDT":  "BTC-USDT",
	"ETHUSDT":  "ETH-USDT",
	"BNBUSDT":  "BNB-USDT",
	"SOLUSDT":  "SOL-USDT",
	"XRPUSDT":  "XRP-USDT",
	"ADAUSDT":  "ADA-USDT",
	"DOGEUSDT": "DOGE-USDT",
	"DOTUSDT":  "DOT-USDT",
	"LTCUSDT":  "LTC-USDT",
	"AVAXUSDT": "AVAX-USDT",
	"LINKUSDT": "LINK-USDT",
	"TRXUSDT":  "TRX-USDT",
	"TONUSDT":  "TON-USDT",
	"SHIBUSDT": "SHIB-USDT",
	"UNIUSDT":  "UNI-USDT",
	"ATOMUSDT": "ATOM-USDT",
}

// forexPairs splits a canonical six-letter pair into base and quote.
var forexPairs = map[string][2]string{
	"EURUSD": {"EUR", "USD"},
	"GBPUSD": {"GBP", "USD"},
	"USDJPY": {"USD", "JPY"},
	"USDCHF": {"USD", "CHF"},
	"AUDUSD": {"AUD", "USD"},
	"USDCAD": {"USD", "CAD"},
	"NZDUSD": {"NZD", "USD"},
	"EURGBP": {"EUR", "GBP"},
	"EURJPY": {"EUR", "JPY"},
	"GBPJPY": {"GBP", "JPY"},
}

var commodityYahoo = map[string]string{
	"GOLD":     "GC=F",
	"SILVER":   "SI=F",
	"PLATINUM": "PL=F",
	"OIL":      "CL=F",
	"BRENT":    "BZ=F",
	"NATGAS":   "NG=F",
	"COPPER":   "HG=F",
	"WHEAT":    "ZW=F",
	"CORN":     "ZC=F",
}

var indexYahoo = map[string]string{
	"SP500":    "^GSPC",
	"DOW":      "^DJI",
	"NASDAQ":   "^IXIC",
	"RUSSELL":  "^RUT",
	"FTSE100":  "^FTSE",
	"DAX":      "^GDAXI",
	"CAC40":    "^FCHI",
	"NIKKEI":   "^N225",
	"HANGSENG": "^HSI",
}

// Translate resolves providerID's code for a canonical symbol within an asset
// class. Unknown identifiers fail with market.ErrUnsupportedSymbol.
func Translate(class market.AssetClass, symbol, providerID string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return "", fmt.Errorf("%w: empty symbol", market.ErrUnsupportedSymbol)
	}
	switch class {
	case market.Crypto:
		switch providerID {
		case ProviderBinance, ProviderBybit:
			// compact form is the canonical form; validity is anchored on the
			// OKX table so all three providers support the same universe
			if _, ok := cryptoOKX[sym]; !ok {
				return "", fmt.Errorf("%w: %s (%s)", market.ErrUnsupportedSymbol, sym, class)
			}
			return sym, nil
		case ProviderOKX:
			if inst, ok := cryptoOKX[sym]; ok {
				return inst, nil
			}
			return "", fmt.Errorf("%w: %s (%s)", market.ErrUnsupportedSymbol, sym, class)
		}
	case market.Forex:
		if _, ok := forexPairs[sym]; ok {
			return sym, nil
		}
		return "", fmt.Errorf("%w: %s (%s)", market.ErrUnsupportedSymbol, sym, class)
	case market.Commodities:
		if t, ok := commodityYahoo[sym]; ok {
			return t, nil
		}
		return "", fmt.Errorf("%w: %s (%s)", market.ErrUnsupportedSymbol, sym, class)
	case market.Indices:
		if t, ok := indexYahoo[sym]; ok {
			return t, nil
		}
		return "", fmt.Errorf("%w: %s (%s)", market.ErrUnsupportedSymbol, sym, class)
	case market.Stocks:
		// Equities are an open universe: the ticker is passed to the chart
		// service verbatim, so a typo yields no data rather than a wrong
		// instrument. Only the shape is validated here.
		if isPlainTicker(sym) {
			return sym, nil
		}
		return "", fmt.Errorf("%w: %s (%s)", market.ErrUnsupportedSymbol, sym, class)
	}
	return "", fmt.Errorf("%w: %s (%s/%s)", market.ErrUnsupportedSymbol, sym, class, providerID)
}

// ForexPair splits a canonical forex symbol into its base and quote currencies.
func ForexPair(symbol string) (base, quote string, err error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if p, ok := forexPairs[sym]; ok {
		return p[0], p[1], nil
	}
	return "", "", fmt.Errorf("%w: %s (forex)", market.ErrUnsupportedSymbol, sym)
}

// ForexSymbols lists the configured forex universe in stable order.
func ForexSymbols() []string {
	out := make([]string, 0, len(forexPairs))
	for s := range forexPairs {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func isPlainTicker(s string) bool {
	if len(s) == 0 || len(s) > 10 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') && r != '.' && r != '-' {
			return false
		}
	}
	return true
}
