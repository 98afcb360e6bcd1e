// Package config loads runtime configuration for the Sejong CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Environment variables prefixed SEJONG_, optionally sourced from a
//     .env file via godotenv (see parseEnv).
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the backend REST endpoint
//	-d string   path of the local sqlite account database
//	-l string   log level (debug, info, warn, error)
//	-t int      request timeout (seconds)
//
// # JSON schema
//
// The JSON loader uses timex.Duration for the timeout, so values can be
// either strings like "15s" or integer nanoseconds:
//
//	{
//	  "base_url": "https://api.sejong.example.com",
//	  "database_path": "/home/mina/.sejong/accounts.db",
//	  "log_level": "debug",
//	  "request_timeout": "15s"
//	}
//
// Environment variables
//
//	SEJONG_BASE_URL, SEJONG_DATABASE_PATH, SEJONG_VAULT_PASSPHRASE,
//	SEJONG_LOG_LEVEL, SEJONG_REQUEST_TIMEOUT
//
// The vault passphrase has no flag on purpose: process listings leak flag
// values, so it travels via JSON file or environment only.
package config
