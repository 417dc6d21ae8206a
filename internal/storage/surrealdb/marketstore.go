package surrealdb

import (
	"context"
	"fmt"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/models"
)

// MarketStore caches the latest fetched price per symbol.
type MarketStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewMarketStore(db *surrealdb.DB, logger *common.Logger) *MarketStore {
	return &MarketStore{
		db:     db,
		logger: logger,
	}
}

func (s *MarketStore) GetPrices(ctx context.Context) ([]*models.CryptoPrice, error) {
	sql := "SELECT * FROM price_cache ORDER BY symbol ASC"

	results, err := surrealdb.Query[[]models.CryptoPrice](ctx, s.db, sql, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query price cache: %w", err)
	}

	var prices []*models.CryptoPrice
	if results != nil && len(*results) > 0 {
		for i := range (*results)[0].Result {
			prices = append(prices, &(*results)[0].Result[i])
		}
	}
	return prices, nil
}

func (s *MarketStore) SavePrice(ctx context.Context, price *models.CryptoPrice) error {
	sql := "UPSERT type::record('price_cache', $id) CONTENT $price"
	vars := map[string]any{"id": price.Symbol, "price": price}

	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]models.CryptoPrice](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		if attempt == 3 {
			return fmt.Errorf("failed to save price after retries: %w", err)
		}
	}
	return nil
}
