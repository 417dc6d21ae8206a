package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCryptoPrices_ReturnsTrackedFeed(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest(http.MethodGet, "/api/crypto-prices", nil)
	rec := httptest.NewRecorder()
	env.Server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var rows []priceRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(rows) != 6 {
		t.Fatalf("expected 6 tracked symbols, got %d", len(rows))
	}
	if rows[0].Symbol != "BTC" || rows[0].Name != "Bitcoin" {
		t.Errorf("expected BTC/Bitcoin first, got %s/%s", rows[0].Symbol, rows[0].Name)
	}
	if rows[0].Price != 64000 {
		t.Errorf("expected BTC price 64000, got %v", rows[0].Price)
	}
	if rows[0].Change24h != 2.5 {
		t.Errorf("expected BTC change 2.5, got %v", rows[0].Change24h)
	}
}

func TestCryptoPrices_SecondRequestServedFromCache(t *testing.T) {
	env := newTestEnv()

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/crypto-prices", nil)
		rec := httptest.NewRecorder()
		env.Server.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}

	if env.Ticker.Calls != 1 {
		t.Errorf("expected one upstream fetch within the refresh interval, got %d", env.Ticker.Calls)
	}
}

func TestCryptoPrices_UpstreamFailureWithEmptyCache(t *testing.T) {
	env := newTestEnv()
	env.Ticker.Err = errors.New("exchange down")

	req := httptest.NewRequest(http.MethodGet, "/api/crypto-prices", nil)
	rec := httptest.NewRecorder()
	env.Server.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 with no cached data, got %d", rec.Code)
	}
	if rec.Body.String() == "" || rec.Body.String() == "exchange down" {
		t.Errorf("expected sanitized error body, got %q", rec.Body.String())
	}
}
