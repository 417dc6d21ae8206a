// Package server implements the Koru HTTP API and page serving.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bobmcallan/koru/internal/app"
	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/services/chat"
	"github.com/bobmcallan/koru/internal/services/prices"
)

// Server wraps the HTTP server and its service dependencies.
type Server struct {
	config  *common.Config
	logger  *common.Logger
	storage interfaces.StorageManager
	chat    *chat.Service
	prices  *prices.Service
	sealer  *common.Sealer

	server       *http.Server
	shutdownChan chan struct{}
}

// SetShutdownChannel sets the channel that will be signaled when HTTP shutdown is requested.
func (s *Server) SetShutdownChannel(ch chan struct{}) {
	s.shutdownChan = ch
}

// NewServer creates a new HTTP server from the initialized app.
func NewServer(a *app.App) *Server {
	s := &Server{
		config:  a.Config,
		logger:  a.Logger,
		storage: a.Storage,
		chat:    a.ChatService,
		prices:  a.PricesService,
		sealer:  a.Sealer,
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, a.Logger, a.Config, a.Storage)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.Config.Server.Host, a.Config.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server (blocking).
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.server.Addr).
		Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
