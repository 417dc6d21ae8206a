// Package app wires configuration, storage, clients, and services.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bobmcallan/koru/internal/clients/binance"
	"github.com/bobmcallan/koru/internal/clients/gemini"
	"github.com/bobmcallan/koru/internal/common"
	"github.com/bobmcallan/koru/internal/interfaces"
	"github.com/bobmcallan/koru/internal/services/chat"
	"github.com/bobmcallan/koru/internal/services/prices"
	"github.com/bobmcallan/koru/internal/storage/surrealdb"
)

// App holds all initialized application dependencies.
type App struct {
	Config  *common.Config
	Logger  *common.Logger
	Storage interfaces.StorageManager
	Sealer  *common.Sealer

	GeminiClient  interfaces.GenerationClient
	BinanceClient interfaces.TickerClient

	ChatService   *chat.Service
	PricesService *prices.Service

	StartupTime time.Time
}

// NewApp initializes the application from config files and environment.
func NewApp(configPath string) (*App, error) {
	config, err := common.LoadConfig(configPath, "koru.toml")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storage, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	sealer, err := common.NewSealer(config.Auth.SealSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sealer: %w", err)
	}

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storage,
		Sealer:      sealer,
		StartupTime: time.Now(),
	}

	// The assistant is optional: without an API key the rest of the app
	// still serves pages, auth, and prices.
	if config.Clients.Gemini.APIKey != "" {
		geminiClient, err := gemini.NewClient(context.Background(), config.Clients.Gemini.APIKey,
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithTemperature(float32(config.Chat.Temperature)),
			gemini.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		a.GeminiClient = geminiClient
		a.ChatService = chat.NewService(storage, geminiClient,
			chat.WithHistoryWindow(config.Chat.HistoryWindow),
			chat.WithLogger(logger),
		)
	} else {
		logger.Warn().Msg("Gemini API key not configured, chat assistant disabled")
	}

	a.BinanceClient = binance.NewClient(
		binance.WithBaseURL(config.Clients.Binance.BaseURL),
		binance.WithRateLimit(config.Clients.Binance.RateLimit),
		binance.WithTimeout(config.Clients.Binance.GetTimeout()),
		binance.WithLogger(logger),
	)
	a.PricesService = prices.NewService(a.BinanceClient, storage,
		prices.WithRefreshInterval(config.Prices.GetRefreshInterval()),
		prices.WithLogger(logger),
	)

	return a, nil
}

// Close releases application resources.
func (a *App) Close() {
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Storage close failed")
		}
	}
}
