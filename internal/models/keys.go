package models

import "time"

// ExchangeKey is a user's exchange API credential pair. Key and secret are
// sealed (ChaCha20-Poly1305) before storage; plaintext never persists.
type ExchangeKey struct {
	UserID       string    `json:"user_id"`
	Exchange     string    `json:"exchange"`
	Label        string    `json:"label,omitempty"`
	APIKeySealed string    `json:"api_key_sealed"`
	SecretSealed string    `json:"secret_sealed"`
	CreatedAt    time.Time `json:"created_at"`
}
