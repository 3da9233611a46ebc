package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"marketfeed/internal/logger"
	"marketfeed/internal/market"
)

// GetPrice resolves the instantaneous price of one instrument by walking the
// asset class's provider chain in priority order. A provider's answer is
// accepted only when it parses to a finite number greater than zero;
// anything else advances the chain. The failure detail of a rejected
// provider is logged and discarded.
func (e *Engine) GetPrice(ctx context.Context, class market.AssetClass, symbol string) (float64, error) {
	key := cacheKey{Op: "price", Class: class, Symbol: symbol}
	if v, ok := e.cache.get(key); ok {
		return v.(float64), nil
	}

	chain := e.reg.Prices[class]
	if len(chain) == 0 {
		return 0, fmt.Errorf("%w: no providers for %s", market.ErrNoPriceAvailable, class)
	}

	unsupported := 0
	for _, src := range chain {
		callCtx, cancel := context.WithTimeout(ctx, e.opt.ProviderTimeout)
		raw, err := src.Price(callCtx, symbol)
		cancel()
		if err != nil {
			if errors.Is(err, market.ErrUnsupportedSymbol) {
				unsupported++
			}
			logger.Warnf("price: %s rejected %s/%s: %v", src.Name(), class, symbol, err)
			continue
		}
		price, ok := acceptPrice(raw)
		if !ok {
			logger.Warnf("price: %s returned unusable value %q for %s/%s", src.Name(), raw, class, symbol)
			continue
		}
		e.cache.put(key, price)
		return price, nil
	}

	if unsupported == len(chain) {
		return 0, fmt.Errorf("%w: %s (%s)", market.ErrUnsupportedSymbol, symbol, class)
	}
	return 0, fmt.Errorf("%w: %s (%s)", market.ErrNoPriceAvailable, symbol, class)
}

// acceptPrice parses a provider's decimal string and applies the acceptance
// rule: finite and strictly positive.
func acceptPrice(raw string) (float64, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, false
	}
	if !d.IsPositive() {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
