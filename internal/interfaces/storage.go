// Package interfaces defines service contracts for Koru
package interfaces

import (
	"context"

	"github.com/bobmcallan/koru/internal/models"
)

// StorageManager coordinates all storage backends.
type StorageManager interface {
	UserStore() UserStore
	SessionStore() SessionStore
	ChatStore() ChatStore
	MarketStore() MarketStore
	PortfolioStore() PortfolioStore
	ExchangeKeyStore() ExchangeKeyStore

	Close() error
}

// UserStore manages user accounts and onboarding profiles.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, userID string) error
	ListUsers(ctx context.Context) ([]string, error)

	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SaveProfile(ctx context.Context, profile *models.Profile) error
	DeleteProfile(ctx context.Context, userID string) error

	Close() error
}

// SessionStore manages issued-token records for revocation.
type SessionStore interface {
	Save(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Revoke(ctx context.Context, id string) error
	RevokeByUser(ctx context.Context, userID string) (int, error)
}

// ChatStore persists chat messages per user.
type ChatStore interface {
	SaveMessage(ctx context.Context, msg *models.ChatMessage) error
	// ListRecent returns up to limit messages for the user, newest first.
	ListRecent(ctx context.Context, userID string, limit int) ([]*models.ChatMessage, error)
	DeleteByUser(ctx context.Context, userID string) (int, error)
}

// MarketStore persists the per-symbol price cache rows.
type MarketStore interface {
	GetPrices(ctx context.Context) ([]*models.CryptoPrice, error)
	SavePrice(ctx context.Context, price *models.CryptoPrice) error
}

// PortfolioStore manages portfolio holdings.
type PortfolioStore interface {
	ListHoldings(ctx context.Context, userID string) ([]*models.Holding, error)
	SaveHolding(ctx context.Context, holding *models.Holding) error
	DeleteHolding(ctx context.Context, userID, symbol string) error
}

// ExchangeKeyStore manages sealed exchange API credentials.
type ExchangeKeyStore interface {
	List(ctx context.Context, userID string) ([]*models.ExchangeKey, error)
	Save(ctx context.Context, key *models.ExchangeKey) error
	Delete(ctx context.Context, userID, exchange string) error
}
