package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/models"
)

// ExchangeKeyStore manages sealed exchange API credentials, keyed
// userID_exchange. One credential pair per exchange per user.
type ExchangeKeyStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewExchangeKeyStore(db *surrealdb.DB, logger *common.Logger) *ExchangeKeyStore {
	return &ExchangeKeyStore{
		db:     db,
		logger: logger,
	}
}

func exchangeKeyRecordID(userID, exchange string) string {
	return fmt.Sprintf("%s_%s", userID, strings.ToLower(exchange))
}

func (s *ExchangeKeyStore) List(ctx context.Context, userID string) ([]*models.ExchangeKey, error) {
	sql := "SELECT * FROM exchange_key WHERE user_id = $user_id ORDER BY exchange ASC"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.ExchangeKey](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchange keys: %w", err)
	}

	var keys []*models.ExchangeKey
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			keys = append(keys, &(*results)[0].Result[i])
		}
	}
	return keys, nil
}

func (s *ExchangeKeyStore) Save(ctx context.Context, key *models.ExchangeKey) error {
	sql := "UPSERT type::record('exchange_key', $id) CONTENT $key"
	vars := map[string]any{"id": exchangeKeyRecordID(key.UserID, key.Exchange), "key": key}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.ExchangeKey](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save exchange key after retries: %w", err)
		}
	}
	return nil
}

func (s *ExchangeKeyStore) Delete(ctx context.Context, userID, exchange string) error {
	_, err := surrealdb.Delete[models.ExchangeKey](ctx, s.db, surrealmodels.NewRecordID("exchange_key", exchangeKeyRecordID(userID, exchange)))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete exchange key: %w", err)
	}
	return nil
}
