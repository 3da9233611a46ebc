package market

import "errors"

// Adapter-level failures. These are always converted to the aggregate kinds
// at the engine boundary and never reach callers.
var (
	// ErrProviderUnavailable: transport or HTTP-status failure at one adapter.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidResponse: the provider answered but the expected fields were
	// missing or malformed.
	ErrInvalidResponse = errors.New("invalid provider response")
)

// Caller-visible failures.
var (
	// ErrUnsupportedSymbol: no translation exists for the requested instrument.
	ErrUnsupportedSymbol = errors.New("unsupported symbol")
	// ErrNoPriceAvailable: every configured price source was exhausted.
	ErrNoPriceAvailable = errors.New("no price available")
	// ErrNoDataAvailable: every configured data source failed or returned
	// nothing usable.
	ErrNoDataAvailable = errors.New("no data available")
)
