package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bobmcallan/koru/internal/models"
)

// --- Exchange API keys ---

// exchangeKeyRow is the public shape of a stored credential. The API key
// is masked; the secret is never returned.
type exchangeKeyRow struct {
	Exchange  string    `json:"exchange"`
	Label     string    `json:"label,omitempty"`
	APIKey    string    `json:"apiKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// handleExchangeKeys handles GET and POST on /api/settings/keys.
func (s *Server) handleExchangeKeys(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodGet {
		keys, err := s.storage.ExchangeKeyStore().List(ctx, sc.UserID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Failed to list exchange keys")
			WriteError(w, http.StatusInternalServerError, "Failed to load API keys")
			return
		}

		rows := make([]exchangeKeyRow, 0, len(keys))
		for _, key := range keys {
			apiKey, err := s.sealer.Open(key.APIKeySealed)
			if err != nil {
				s.logger.Error().Err(err).Str("user_id", sc.UserID).Str("exchange", key.Exchange).Msg("Failed to unseal API key")
				continue
			}
			rows = append(rows, exchangeKeyRow{
				Exchange:  key.Exchange,
				Label:     key.Label,
				APIKey:    maskSecret(apiKey),
				CreatedAt: key.CreatedAt,
			})
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"keys": rows})
		return
	}

	var req struct {
		Exchange string `json:"exchange"`
		Label    string `json:"label"`
		APIKey   string `json:"apiKey"`
		Secret   string `json:"secret"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Exchange = strings.ToLower(strings.TrimSpace(req.Exchange))
	if req.Exchange == "" || req.APIKey == "" || req.Secret == "" {
		WriteError(w, http.StatusBadRequest, "exchange, apiKey, and secret are required")
		return
	}

	keySealed, err := s.sealer.Seal(req.APIKey)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to seal API key")
		WriteError(w, http.StatusInternalServerError, "Failed to save API key")
		return
	}
	secretSealed, err := s.sealer.Seal(req.Secret)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to seal API secret")
		WriteError(w, http.StatusInternalServerError, "Failed to save API key")
		return
	}

	key := &models.ExchangeKey{
		UserID:       sc.UserID,
		Exchange:     req.Exchange,
		Label:        strings.TrimSpace(req.Label),
		APIKeySealed: keySealed,
		SecretSealed: secretSealed,
		CreatedAt:    time.Now(),
	}
	if err := s.storage.ExchangeKeyStore().Save(ctx, key); err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Str("exchange", req.Exchange).Msg("Failed to save exchange key")
		WriteError(w, http.StatusInternalServerError, "Failed to save API key")
		return
	}

	WriteJSON(w, http.StatusCreated, exchangeKeyRow{
		Exchange:  key.Exchange,
		Label:     key.Label,
		APIKey:    maskSecret(req.APIKey),
		CreatedAt: key.CreatedAt,
	})
}

// handleExchangeKeyDelete handles DELETE /api/settings/keys/{exchange}.
func (s *Server) handleExchangeKeyDelete(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}

	exchange := strings.TrimPrefix(r.URL.Path, "/api/settings/keys/")
	if exchange == "" || strings.Contains(exchange, "/") {
		WriteError(w, http.StatusBadRequest, "exchange is required in path")
		return
	}

	if err := s.storage.ExchangeKeyStore().Delete(r.Context(), sc.UserID, exchange); err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Str("exchange", exchange).Msg("Failed to delete exchange key")
		WriteError(w, http.StatusInternalServerError, "Failed to delete API key")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Holdings ---

// handleHoldings handles GET and POST on /api/settings/holdings.
func (s *Server) handleHoldings(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodPost) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}
	ctx := r.Context()

	if r.Method == http.MethodGet {
		holdings, err := s.storage.PortfolioStore().ListHoldings(ctx, sc.UserID)
		if err != nil {
			s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Failed to list holdings")
			WriteError(w, http.StatusInternalServerError, "Failed to load holdings")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"holdings": holdings})
		return
	}

	var req struct {
		Symbol   string  `json:"symbol"`
		Quantity float64 `json:"quantity"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if req.Symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}
	if req.Quantity <= 0 {
		WriteError(w, http.StatusBadRequest, "quantity must be positive")
		return
	}

	now := time.Now()
	holding := &models.Holding{
		UserID:    sc.UserID,
		Symbol:    req.Symbol,
		Quantity:  req.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.PortfolioStore().SaveHolding(ctx, holding); err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Str("symbol", req.Symbol).Msg("Failed to save holding")
		WriteError(w, http.StatusInternalServerError, "Failed to save holding")
		return
	}
	WriteJSON(w, http.StatusOK, holding)
}

// handleHoldingDelete handles DELETE /api/settings/holdings/{symbol}.
func (s *Server) handleHoldingDelete(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}

	symbol := strings.TrimPrefix(r.URL.Path, "/api/settings/holdings/")
	if symbol == "" || strings.Contains(symbol, "/") {
		WriteError(w, http.StatusBadRequest, "symbol is required in path")
		return
	}

	if err := s.storage.PortfolioStore().DeleteHolding(r.Context(), sc.UserID, symbol); err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Str("symbol", symbol).Msg("Failed to delete holding")
		WriteError(w, http.StatusInternalServerError, "Failed to delete holding")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// --- Portfolio valuation ---

// handlePortfolio handles GET /api/portfolio: holdings joined with the
// current price feed.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	sc := requireSession(w, r)
	if sc == nil {
		return
	}
	ctx := r.Context()

	holdings, err := s.storage.PortfolioStore().ListHoldings(ctx, sc.UserID)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", sc.UserID).Msg("Failed to list holdings")
		WriteError(w, http.StatusInternalServerError, "Failed to load portfolio")
		return
	}

	// Prices are best-effort here: an unavailable feed still returns
	// the positions, just without valuations.
	priceBySymbol := map[string]*models.CryptoPrice{}
	if prices, err := s.prices.GetPrices(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("Price feed unavailable for portfolio valuation")
	} else {
		for _, p := range prices {
			priceBySymbol[p.Symbol] = p
		}
	}

	values := make([]models.HoldingValue, 0, len(holdings))
	total := 0.0
	for _, h := range holdings {
		hv := models.HoldingValue{
			Symbol:   h.Symbol,
			Quantity: h.Quantity,
		}
		if p, ok := priceBySymbol[h.Symbol]; ok {
			hv.Name = p.Name
			hv.Price = p.Price
			hv.Value = h.Quantity * p.Price
			hv.Change24h = p.Change24h
			total += hv.Value
		}
		values = append(values, hv)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"holdings":   values,
		"totalValue": total,
	})
}
