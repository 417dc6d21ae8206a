// Package common provides shared utilities for Koru
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Koru
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Chat        ChatConfig    `toml:"chat"`
	Prices      PricesConfig  `toml:"prices"`
	Auth        AuthConfig    `toml:"auth"`
	Pages       PagesConfig   `toml:"pages"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds SurrealDB connection configuration.
type StorageConfig struct {
	Address   string `toml:"address"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Gemini  GeminiConfig  `toml:"gemini"`
	Binance BinanceConfig `toml:"binance"`
}

// GeminiConfig holds Gemini API configuration
type GeminiConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// BinanceConfig holds Binance public API configuration
type BinanceConfig struct {
	BaseURL   string `toml:"base_url"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *BinanceConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ChatConfig holds chat pipeline tuning.
type ChatConfig struct {
	HistoryWindow int     `toml:"history_window"` // prior messages per generation call
	Temperature   float64 `toml:"temperature"`
}

// PricesConfig holds price feed configuration.
type PricesConfig struct {
	RefreshInterval string `toml:"refresh_interval"` // duration string, default "10s"
}

// GetRefreshInterval parses and returns the revalidation interval.
func (c *PricesConfig) GetRefreshInterval() time.Duration {
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// AuthConfig holds authentication configuration for sessions and OAuth.
type AuthConfig struct {
	JWTSecret   string        `toml:"jwt_secret"`
	SealSecret  string        `toml:"seal_secret"`  // key material for sealing stored credentials
	TokenExpiry string        `toml:"token_expiry"` // duration string, default "24h"
	Google      OAuthProvider `toml:"google"`
	GitHub      OAuthProvider `toml:"github"`
}

// OAuthProvider holds OAuth client credentials for an external provider.
type OAuthProvider struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// PagesConfig holds static page serving configuration.
type PagesConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `toml:"level"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Address:   "ws://localhost:8000/rpc",
			Namespace: "koru",
			Database:  "koru",
			Username:  "root",
			Password:  "root",
		},
		Clients: ClientsConfig{
			Gemini: GeminiConfig{
				Model: "gemini-2.0-flash",
			},
			Binance: BinanceConfig{
				BaseURL:   "https://api.binance.com",
				RateLimit: 10,
				Timeout:   "10s",
			},
		},
		Chat: ChatConfig{
			HistoryWindow: 20,
			Temperature:   0.7,
		},
		Prices: PricesConfig{
			RefreshInterval: "10s",
		},
		Auth: AuthConfig{
			JWTSecret:   "dev-jwt-secret-change-in-production",
			SealSecret:  "dev-seal-secret-change-in-production",
			TokenExpiry: "24h",
		},
		Pages: PagesConfig{
			Dir: "web",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("KORU_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("KORU_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("KORU_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("KORU_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if addr := os.Getenv("KORU_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if ns := os.Getenv("KORU_STORAGE_NAMESPACE"); ns != "" {
		config.Storage.Namespace = ns
	}
	if db := os.Getenv("KORU_STORAGE_DATABASE"); db != "" {
		config.Storage.Database = db
	}
	if user := os.Getenv("KORU_STORAGE_USERNAME"); user != "" {
		config.Storage.Username = user
	}
	if pass := os.Getenv("KORU_STORAGE_PASSWORD"); pass != "" {
		config.Storage.Password = pass
	}

	// Client keys
	for _, name := range []string{"GEMINI_API_KEY", "KORU_GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if v := os.Getenv(name); v != "" {
			config.Clients.Gemini.APIKey = v
			break
		}
	}
	if v := os.Getenv("KORU_GEMINI_MODEL"); v != "" {
		config.Clients.Gemini.Model = v
	}

	// Auth overrides
	if v := os.Getenv("KORU_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("KORU_AUTH_SEAL_SECRET"); v != "" {
		config.Auth.SealSecret = v
	}
	if v := os.Getenv("KORU_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
	if v := os.Getenv("KORU_AUTH_GOOGLE_CLIENT_ID"); v != "" {
		config.Auth.Google.ClientID = v
	}
	if v := os.Getenv("KORU_AUTH_GOOGLE_CLIENT_SECRET"); v != "" {
		config.Auth.Google.ClientSecret = v
	}
	if v := os.Getenv("KORU_AUTH_GITHUB_CLIENT_ID"); v != "" {
		config.Auth.GitHub.ClientID = v
	}
	if v := os.Getenv("KORU_AUTH_GITHUB_CLIENT_SECRET"); v != "" {
		config.Auth.GitHub.ClientSecret = v
	}

	if v := os.Getenv("KORU_PAGES_DIR"); v != "" {
		config.Pages.Dir = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
