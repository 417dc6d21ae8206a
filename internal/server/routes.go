package server

import (
	"net/http"
	"time"

	"github.com/bobmcallan/koru/internal/common"
)

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Auth
	mux.HandleFunc("/api/auth/signup", s.handleAuthSignup)
	mux.HandleFunc("/api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("/api/auth/logout", s.handleAuthLogout)
	mux.HandleFunc("/api/auth/oauth", s.handleAuthOAuth)
	mux.HandleFunc("/api/auth/validate", s.handleAuthValidate)
	mux.HandleFunc("/api/auth/onboarding-status", s.handleOnboardingStatus)

	// Chat
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/chat/history", s.handleChatHistory)

	// Market data
	mux.HandleFunc("/api/crypto-prices", s.handleCryptoPrices)

	// Account
	mux.HandleFunc("/api/profile", s.handleProfile)
	mux.HandleFunc("/api/onboarding", s.handleOnboarding)
	mux.HandleFunc("/api/account", s.handleAccount)

	// Settings
	mux.HandleFunc("/api/settings/keys", s.handleExchangeKeys)
	mux.HandleFunc("/api/settings/keys/", s.handleExchangeKeyDelete)
	mux.HandleFunc("/api/settings/holdings", s.handleHoldings)
	mux.HandleFunc("/api/settings/holdings/", s.handleHoldingDelete)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)

	// Pages (everything else), with route guards
	mux.Handle("/", s.pageHandler())
}

// --- System handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// handleConfig handles GET /api/config. Secrets are masked.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"environment":         s.config.Environment,
		"storage_address":     s.config.Storage.Address,
		"storage_namespace":   s.config.Storage.Namespace,
		"storage_database":    s.config.Storage.Database,
		"logging_level":       s.config.Logging.Level,
		"gemini_model":        s.config.Clients.Gemini.Model,
		"gemini_api_key":      maskSecret(s.config.Clients.Gemini.APIKey),
		"gemini_configured":   s.chat != nil,
		"binance_base_url":    s.config.Clients.Binance.BaseURL,
		"prices_refresh":      s.config.Prices.RefreshInterval,
		"chat_history_window": s.config.Chat.HistoryWindow,
		"pages_dir":           s.config.Pages.Dir,
	})
}

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}
