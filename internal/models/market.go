package models

import "time"

// ExchangeTicker is a single 24h ticker row as returned by the exchange
// client, keyed by trading pair (e.g. "BTCUSDT").
type ExchangeTicker struct {
	Pair         string  `json:"symbol"`
	LastPrice    float64 `json:"last_price"`
	ChangePct24h float64 `json:"change_pct_24h"`
	High24h      float64 `json:"high_24h"`
	Low24h       float64 `json:"low_24h"`
	Volume       float64 `json:"volume"`
}

// CryptoPrice is the cached price snapshot for one tracked asset.
// One price_cache row per symbol; FetchedAt drives revalidation.
type CryptoPrice struct {
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Change24h float64   `json:"change24h"`
	Volume    float64   `json:"volume"`
	High24h   float64   `json:"high24h"`
	Low24h    float64   `json:"low24h"`
	FetchedAt time.Time `json:"fetched_at"`
}
