// Package prices serves the public crypto price feed with short-lived
// caching over the exchange ticker API.
package prices

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/models"
)

const DefaultRefreshInterval = 10 * time.Second

// trackedSymbol maps a display symbol to its exchange trading pair.
type trackedSymbol struct {
	Symbol string
	Name   string
	Pair   string
}

// defaultSymbols is the feed served by the prices endpoint.
var defaultSymbols = []trackedSymbol{
	{Symbol: "BTC", Name: "Bitcoin", Pair: "BTCUSDT"},
	{Symbol: "ETH", Name: "Ethereum", Pair: "ETHUSDT"},
	{Symbol: "SOL", Name: "Solana", Pair: "SOLUSDT"},
	{Symbol: "ADA", Name: "Cardano", Pair: "ADAUSDT"},
	{Symbol: "XRP", Name: "XRP", Pair: "XRPUSDT"},
	{Symbol: "DOGE", Name: "Dogecoin", Pair: "DOGEUSDT"},
}

// Service caches exchange ticker data and revalidates it on read once the
// refresh interval has elapsed. Stale data is served when a refresh fails.
type Service struct {
	ticker  interfaces.TickerClient
	storage interfaces.StorageManager
	logger  *common.Logger

	refreshInterval time.Duration
	symbols         []trackedSymbol
	now             func() time.Time

	mu        sync.Mutex
	cached    []*models.CryptoPrice
	fetchedAt time.Time
}

// ServiceOption configures the service
type ServiceOption func(*Service)

// WithRefreshInterval sets how long fetched prices stay fresh.
func WithRefreshInterval(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the time source for cache-age checks.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a new prices service.
func NewService(ticker interfaces.TickerClient, storage interfaces.StorageManager, opts ...ServiceOption) *Service {
	s := &Service{
		ticker:          ticker,
		storage:         storage,
		logger:          common.NewSilentLogger(),
		refreshInterval: DefaultRefreshInterval,
		symbols:         defaultSymbols,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// GetPrices returns the tracked price list, refreshing from the exchange
// when the cache is older than the refresh interval. Concurrent callers
// share one refresh.
func (s *Service) GetPrices(ctx context.Context) ([]*models.CryptoPrice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.cached) > 0 && s.now().Sub(s.fetchedAt) < s.refreshInterval {
		return clonePrices(s.cached), nil
	}

	fresh, err := s.refresh(ctx)
	if err != nil {
		if len(s.cached) > 0 {
			s.logger.Warn().Err(err).Msg("Price refresh failed, serving stale data")
			return clonePrices(s.cached), nil
		}
		if stored, storeErr := s.storage.MarketStore().GetPrices(ctx); storeErr == nil && len(stored) > 0 {
			s.logger.Warn().Err(err).Msg("Price refresh failed, serving persisted cache")
			s.cached = stored
			return clonePrices(stored), nil
		}
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}

	s.cached = fresh
	s.fetchedAt = s.now()
	return clonePrices(fresh), nil
}

func (s *Service) refresh(ctx context.Context) ([]*models.CryptoPrice, error) {
	pairs := make([]string, len(s.symbols))
	for i, sym := range s.symbols {
		pairs[i] = sym.Pair
	}

	tickers, err := s.ticker.Get24hTickers(ctx, pairs)
	if err != nil {
		return nil, err
	}

	byPair := make(map[string]*models.ExchangeTicker, len(tickers))
	for _, t := range tickers {
		byPair[strings.ToUpper(t.Pair)] = t
	}

	fetched := s.now()
	prices := make([]*models.CryptoPrice, 0, len(s.symbols))
	for _, sym := range s.symbols {
		t, ok := byPair[sym.Pair]
		if !ok {
			s.logger.Warn().Str("pair", sym.Pair).Msg("Ticker missing from exchange response")
			continue
		}
		price := &models.CryptoPrice{
			Symbol:    sym.Symbol,
			Name:      sym.Name,
			Price:     t.LastPrice,
			Change24h: t.ChangePct24h,
			Volume:    t.Volume,
			High24h:   t.High24h,
			Low24h:    t.Low24h,
			FetchedAt: fetched,
		}
		prices = append(prices, price)

		// Cache rows back the feed across restarts; a write failure
		// does not fail the request.
		if err := s.storage.MarketStore().SavePrice(ctx, price); err != nil {
			s.logger.Warn().Err(err).Str("symbol", sym.Symbol).Msg("Price cache write failed")
		}
	}

	if len(prices) == 0 {
		return nil, fmt.Errorf("exchange returned no tracked pairs")
	}
	return prices, nil
}

func clonePrices(prices []*models.CryptoPrice) []*models.CryptoPrice {
	out := make([]*models.CryptoPrice, len(prices))
	copy(out, prices)
	return out
}
