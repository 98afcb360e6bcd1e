package config

import "time"

// Config holds runtime settings for the Sejong CLI.
//
// Fields:
//   - BaseURL: scheme://host:port of the backend REST endpoint.
//   - DatabasePath: path of the local sqlite account database.
//   - VaultPassphrase: passphrase the at-rest token cipher key is derived
//     from. Empty disables custom passphrases and uses the built-in default.
//   - LogLevel: debug, info, warn or error.
//   - RequestTimeout: per-request deadline for backend calls.
//
// Units: RequestTimeout is a time.Duration (e.g., 15*time.Second).
type Config struct {
	BaseURL         string
	DatabasePath    string
	VaultPassphrase string
	LogLevel        string
	RequestTimeout  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.BaseURL = "http://127.0.0.1:8080"
	c.DatabasePath = "sejong.db"
	c.VaultPassphrase = ""
	c.LogLevel = "info"
	c.RequestTimeout = 15 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present), environment variables and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
