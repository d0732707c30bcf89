package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ADDR", "PORT", "BASE_URL", "ADMIN_TOKEN", "LOG_LEVEL", "STORE_URL",
		"RESPONSE_WINDOW", "CACHE_TTL", "WHATSAPP_ENABLED", "WHATSAPP_DATA_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.ResponseWindow != 14*24*time.Hour {
		t.Errorf("expected 14 day window, got %s", cfg.ResponseWindow)
	}
	if cfg.BaseURL != "http://localhost:4321" {
		t.Errorf("unexpected base url %q", cfg.BaseURL)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("expected one day cache ttl, got %s", cfg.CacheTTL)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "base_url: https://boda.example\nresponse_window: 720h\nadmin_token: from-file\nstore_url: sqlite://guests.db\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ADMIN_TOKEN", "from-env")
	t.Setenv("PORT", "8080")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseURL != "https://boda.example" {
		t.Errorf("expected file base url, got %q", cfg.BaseURL)
	}
	if cfg.ResponseWindow != 30*24*time.Hour {
		t.Errorf("expected 30 day window from file, got %s", cfg.ResponseWindow)
	}
	if cfg.AdminToken != "from-env" {
		t.Errorf("expected env to win, got %q", cfg.AdminToken)
	}
	if cfg.StoreURL != "sqlite://guests.db" {
		t.Errorf("unexpected store url %q", cfg.StoreURL)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("expected PORT to set addr, got %q", cfg.Addr)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("RESPONSE_WINDOW", "two weeks")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected an error for an unparsable window")
	}

	t.Setenv("RESPONSE_WINDOW", "-1h")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected an error for a negative window")
	}

	t.Setenv("RESPONSE_WINDOW", "")
	t.Setenv("WHATSAPP_ENABLED", "sometimes")
	if _, err := LoadConfig(); err == nil {
		t.Error("expected an error for a bad boolean")
	}
}
