package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays cfg with SEJONG_* environment variables. A .env file in
// the working directory is loaded first when present; real environment
// variables win over it. A malformed SEJONG_REQUEST_TIMEOUT is ignored.
func parseEnv(cfg *Config) {
	_ = godotenv.Load()

	if v, ok := os.LookupEnv("SEJONG_BASE_URL"); ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := os.LookupEnv("SEJONG_DATABASE_PATH"); ok && v != "" {
		cfg.DatabasePath = v
	}
	if v, ok := os.LookupEnv("SEJONG_VAULT_PASSPHRASE"); ok && v != "" {
		cfg.VaultPassphrase = v
	}
	if v, ok := os.LookupEnv("SEJONG_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("SEJONG_REQUEST_TIMEOUT"); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		}
	}
}
