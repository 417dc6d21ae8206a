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

// PortfolioStore manages per-user holdings, keyed userID_symbol.
type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{
		db:     db,
		logger: logger,
	}
}

func holdingRecordID(userID, symbol string) string {
	return fmt.Sprintf("%s_%s", userID, strings.ToUpper(symbol))
}

func (s *PortfolioStore) ListHoldings(ctx context.Context, userID string) ([]*models.Holding, error) {
	sql := "SELECT * FROM holding WHERE user_id = $user_id ORDER BY symbol ASC"
	vars := map[string]any{"user_id": userID}

	results, err := surrealdb.Query[[]models.Holding](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}

	var holdings []*models.Holding
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			holdings = append(holdings, &(*results)[0].Result[i])
		}
	}
	return holdings, nil
}

func (s *PortfolioStore) SaveHolding(ctx context.Context, holding *models.Holding) error {
	sql := "UPSERT type::record('holding', $id) CONTENT $holding"
	vars := map[string]any{"id": holdingRecordID(holding.UserID, holding.Symbol), "holding": holding}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.Holding](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save holding after retries: %w", err)
		}
	}
	return nil
}

func (s *PortfolioStore) DeleteHolding(ctx context.Context, userID, symbol string) error {
	_, err := surrealdb.Delete[models.Holding](ctx, s.db, surrealmodels.NewRecordID("holding", holdingRecordID(userID, symbol)))
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("failed to delete holding: %w", err)
	}
	return nil
}
