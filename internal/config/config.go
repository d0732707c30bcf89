package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Addr           string        `yaml:"addr"`
	BaseURL        string        `yaml:"base_url"`
	AdminToken     string        `yaml:"admin_token"`
	ResponseWindow time.Duration `yaml:"response_window"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
	LogLevel       string        `yaml:"log_level"`

	// StoreURL selects the backend: file://path, sqlite://path,
	// firestore://project or memory://
	StoreURL                 string `yaml:"store_url"`
	FirestoreCredentialsFile string `yaml:"firestore_credentials_file"`
	FirestoreCollection      string `yaml:"firestore_collection"`

	WhatsAppEnabled bool   `yaml:"whatsapp_enabled"`
	WhatsAppDataDir string `yaml:"whatsapp_data_dir"`
	WeddingDate     string `yaml:"wedding_date"`
	WeddingLocation string `yaml:"wedding_location"`
	BrideName       string `yaml:"bride_name"`
	GroomName       string `yaml:"groom_name"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Addr:                ":3000",
		BaseURL:             "http://localhost:4321",
		ResponseWindow:      14 * 24 * time.Hour,
		CacheTTL:            24 * time.Hour,
		LogLevel:            "info",
		StoreURL:            "file://data/guests.json",
		FirestoreCollection: "wedding-guests",
		WhatsAppDataDir:     "data",
		WeddingDate:         "Saturday, January 1, 2025",
		WeddingLocation:     "Venue TBD",
		BrideName:           "Bride",
		GroomName:           "Groom",
	}
}

// LoadConfig loads configuration from environment variables or defaults
func LoadConfig() (*Config, error) {
	return Load("")
}

// Load reads the optional YAML file at path on top of the defaults, then
// applies environment variables, which win over the file
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Addr = getEnv("ADDR", cfg.Addr)
	if port := os.Getenv("PORT"); port != "" && os.Getenv("ADDR") == "" {
		cfg.Addr = ":" + port
	}
	cfg.BaseURL = getEnv("BASE_URL", cfg.BaseURL)
	cfg.AdminToken = getEnv("ADMIN_TOKEN", cfg.AdminToken)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.StoreURL = getEnv("STORE_URL", cfg.StoreURL)
	cfg.FirestoreCredentialsFile = getEnv("FIRESTORE_CREDENTIALS_FILE", cfg.FirestoreCredentialsFile)
	cfg.FirestoreCollection = getEnv("FIRESTORE_COLLECTION", cfg.FirestoreCollection)
	cfg.WhatsAppDataDir = getEnv("WHATSAPP_DATA_DIR", cfg.WhatsAppDataDir)
	cfg.WeddingDate = getEnv("WEDDING_DATE", cfg.WeddingDate)
	cfg.WeddingLocation = getEnv("WEDDING_LOCATION", cfg.WeddingLocation)
	cfg.BrideName = getEnv("BRIDE_NAME", cfg.BrideName)
	cfg.GroomName = getEnv("GROOM_NAME", cfg.GroomName)

	var err error
	if cfg.ResponseWindow, err = getDuration("RESPONSE_WINDOW", cfg.ResponseWindow); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getDuration("CACHE_TTL", cfg.CacheTTL); err != nil {
		return nil, err
	}
	if v := os.Getenv("WHATSAPP_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid WHATSAPP_ENABLED %q: %w", v, err)
		}
		cfg.WhatsAppEnabled = enabled
	}

	if cfg.ResponseWindow <= 0 {
		return nil, fmt.Errorf("response window must be positive, got %s", cfg.ResponseWindow)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
