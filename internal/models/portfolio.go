package models

import "time"

// Holding is one asset position in a user's portfolio.
// Uniqueness: one holding per (user, symbol).
type Holding struct {
	UserID    string    `json:"user_id"`
	Symbol    string    `json:"symbol"`
	Quantity  float64   `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HoldingValue is a holding joined with the current price snapshot.
type HoldingValue struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity"`
	Price     float64 `json:"price"`
	Value     float64 `json:"value"`
	Change24h float64 `json:"change24h"`
}
