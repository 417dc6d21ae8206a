package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	if config.Environment != "development" {
		t.Errorf("expected development environment, got %q", config.Environment)
	}
	if config.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", config.Server.Port)
	}
	if config.Storage.Namespace != "koru" || config.Storage.Database != "koru" {
		t.Errorf("unexpected storage defaults: %+v", config.Storage)
	}
	if config.Chat.HistoryWindow != 20 {
		t.Errorf("expected history window 20, got %d", config.Chat.HistoryWindow)
	}
	if config.Prices.GetRefreshInterval() != 10*time.Second {
		t.Errorf("expected 10s refresh interval, got %v", config.Prices.GetRefreshInterval())
	}
	if config.Auth.GetTokenExpiry() != 24*time.Hour {
		t.Errorf("expected 24h token expiry, got %v", config.Auth.GetTokenExpiry())
	}
	if config.IsProduction() {
		t.Error("default config must not be production")
	}
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "koru.toml")
	content := `
environment = "production"

[server]
port = 9090

[chat]
history_window = 5

[prices]
refresh_interval = "30s"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !config.IsProduction() {
		t.Error("expected production environment from file")
	}
	if config.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", config.Server.Port)
	}
	if config.Chat.HistoryWindow != 5 {
		t.Errorf("expected history window 5, got %d", config.Chat.HistoryWindow)
	}
	if config.Prices.GetRefreshInterval() != 30*time.Second {
		t.Errorf("expected 30s refresh interval, got %v", config.Prices.GetRefreshInterval())
	}
	// Unset file keys keep their defaults.
	if config.Server.Host != "0.0.0.0" {
		t.Errorf("expected default host preserved, got %q", config.Server.Host)
	}
}

func TestLoadConfig_MissingFileIsSkipped(t *testing.T) {
	config, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("missing config file must not fail: %v", err)
	}
	if config.Server.Port != 8080 {
		t.Errorf("expected defaults, got port %d", config.Server.Port)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("KORU_ENV", "production")
	t.Setenv("KORU_PORT", "3000")
	t.Setenv("KORU_STORAGE_ADDRESS", "ws://db:8000/rpc")
	t.Setenv("KORU_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("KORU_GEMINI_API_KEY", "env-api-key")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !config.IsProduction() {
		t.Error("expected KORU_ENV to set production")
	}
	if config.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", config.Server.Port)
	}
	if config.Storage.Address != "ws://db:8000/rpc" {
		t.Errorf("expected storage address override, got %q", config.Storage.Address)
	}
	if config.Auth.JWTSecret != "env-secret" {
		t.Errorf("expected JWT secret override, got %q", config.Auth.JWTSecret)
	}
	if config.Clients.Gemini.APIKey != "env-api-key" {
		t.Errorf("expected Gemini key override, got %q", config.Clients.Gemini.APIKey)
	}
}

func TestLoadConfig_GeminiKeyPrecedence(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "first-choice")
	t.Setenv("GOOGLE_API_KEY", "last-choice")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Clients.Gemini.APIKey != "first-choice" {
		t.Errorf("expected GEMINI_API_KEY to win, got %q", config.Clients.Gemini.APIKey)
	}
}

func TestDurationParsers_InvalidFallsBack(t *testing.T) {
	p := PricesConfig{RefreshInterval: "not-a-duration"}
	if p.GetRefreshInterval() != 10*time.Second {
		t.Errorf("expected 10s fallback, got %v", p.GetRefreshInterval())
	}

	a := AuthConfig{TokenExpiry: ""}
	if a.GetTokenExpiry() != 24*time.Hour {
		t.Errorf("expected 24h fallback, got %v", a.GetTokenExpiry())
	}

	b := BinanceConfig{Timeout: "garbage"}
	if b.GetTimeout() != 30*time.Second {
		t.Errorf("expected 30s fallback, got %v", b.GetTimeout())
	}
}

func TestIsProduction(t *testing.T) {
	cases := []struct {
		env  string
		want bool
	}{
		{"production", true},
		{"prod", true},
		{"  PRODUCTION  ", true},
		{"development", false},
		{"", false},
		{"staging", false},
	}
	for _, tc := range cases {
		c := Config{Environment: tc.env}
		if c.IsProduction() != tc.want {
			t.Errorf("IsProduction(%q) = %v, want %v", tc.env, c.IsProduction(), tc.want)
		}
	}
}
