// Package config provides application configuration from environment
// variables, with an optional .env file loaded at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider backend selection.
const (
	ProviderSheets = "sheets"
	ProviderSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	TelegramToken string

	// Provider selects the tabular store backend: "sheets" (default)
	// or "sqlite" for local development.
	Provider string

	SheetID             string
	GoogleKeyFile       string
	GoogleClientEmail   string
	GooglePrivateKeyB64 string
	SharedDriveID       string
	InvoicesFolderID    string

	DataDir string

	PollInterval time.Duration

	// SessionTTL and IntakeTTL control expiry sweeps for authenticated
	// sessions and abandoned intake forms. Zero disables expiry.
	SessionTTL time.Duration
	IntakeTTL  time.Duration

	HealthPort int
	LogLevel   string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first when present; real environment
// variables win over it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TelegramToken:       getEnv("TELEGRAM_BOT_TOKEN", ""),
		Provider:            getEnv("PROVIDER", ProviderSheets),
		SheetID:             getEnv("GSHEETS_SHEET_ID", ""),
		GoogleKeyFile:       getEnv("GSHEETS_KEY_FILE", ""),
		GoogleClientEmail:   getEnv("GOOGLE_CLIENT_EMAIL", ""),
		GooglePrivateKeyB64: getEnv("GOOGLE_PRIVATE_KEY_B64", ""),
		SharedDriveID:       getEnv("DRIVE_SHARED_DRIVE_ID", ""),
		InvoicesFolderID:    getEnv("DRIVE_INVOICES_FOLDER_ID", ""),
		DataDir:             getEnv("DATA_DIR", "./data"),
		PollInterval:        getEnvDuration("POLL_INTERVAL", 5*time.Minute),
		SessionTTL:          getEnvDuration("SESSION_TTL", 0),
		IntakeTTL:           getEnvDuration("INTAKE_TTL", 0),
		HealthPort:          getEnvInt("HEALTH_PORT", 8090),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that required fields are present for the selected
// provider. Missing startup configuration is the only fatal error
// path in the application.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}

	switch c.Provider {
	case ProviderSheets:
		if c.SheetID == "" {
			return fmt.Errorf("GSHEETS_SHEET_ID is required with the sheets provider")
		}
		if c.GoogleKeyFile == "" && (c.GoogleClientEmail == "" || c.GooglePrivateKeyB64 == "") {
			return fmt.Errorf("either GSHEETS_KEY_FILE or GOOGLE_CLIENT_EMAIL + GOOGLE_PRIVATE_KEY_B64 is required with the sheets provider")
		}
	case ProviderSQLite:
		if c.DataDir == "" {
			return fmt.Errorf("DATA_DIR cannot be empty with the sqlite provider")
		}
	default:
		return fmt.Errorf("unknown PROVIDER %q (want %q or %q)", c.Provider, ProviderSheets, ProviderSQLite)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
