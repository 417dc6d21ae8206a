package server

import (
	"net/http"
)

// priceRow is the public shape of one crypto-prices entry.
type priceRow struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	Volume    float64 `json:"volume"`
	High24h   float64 `json:"high24h"`
	Low24h    float64 `json:"low24h"`
}

// handleCryptoPrices handles GET /api/crypto-prices. Public, no session.
func (s *Server) handleCryptoPrices(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	prices, err := s.prices.GetPrices(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Price feed unavailable")
		WriteError(w, http.StatusInternalServerError, "Price data is temporarily unavailable")
		return
	}

	rows := make([]priceRow, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, priceRow{
			Symbol:    p.Symbol,
			Name:      p.Name,
			Price:     p.Price,
			Change24h: p.Change24h,
			Volume:    p.Volume,
			High24h:   p.High24h,
			Low24h:    p.Low24h,
		})
	}
	WriteJSON(w, http.StatusOK, rows)
}
