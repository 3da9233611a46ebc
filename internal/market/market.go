package market

// AssetClass qualifies a canonical symbol. The same string (e.g. "GOLD" vs a
// crypto pair) can mean different instruments in different classes, so the
// class always travels alongside the symbol.
type AssetClass string

const (
	Crypto      AssetClass = "crypto"
	Forex       AssetClass = "forex"
	Stocks      AssetClass = "stocks"
	Commodities AssetClass = "commodities"
	Indices     AssetClass = "indices"
)

func (c AssetClass) Valid() bool {
	switch c {
	case Crypto, Forex, Stocks, Commodities, Indices:
		return true
	}
	return false
}

// Candle is one OHLCV sample. Times are unix milliseconds.
type Candle struct {
	OpenTime  int64   `json:"open_time"`
	CloseTime int64   `json:"close_time"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// Mover is one row of a top gainers/losers ranking. Change is a percentage.
type Mover struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Change float64 `json:"change"`
}

// Direction orders a movers ranking.
type Direction string

const (
	Gainers Direction = "gainers"
	Losers  Direction = "losers"
)

// Stats24h mirrors the 24-hour rolling ticker statistics shape shared by the
// crypto exchanges.
type Stats24h struct {
	PriceChange        float64 `json:"priceChange"`
	PriceChangePercent float64 `json:"priceChangePercent"`
	LastPrice          float64 `json:"lastPrice"`
	HighPrice          float64 `json:"highPrice"`
	LowPrice           float64 `json:"lowPrice"`
	Volume             float64 `json:"volume"`
}

// Ticker is one row of a full-market 24h snapshot used for movers ranking.
type Ticker struct {
	Symbol        string
	LastPrice     float64
	ChangePercent float64
}
