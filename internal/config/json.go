package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/sejonglabs/sejong/internal/flagx"
	"github.com/sejonglabs/sejong/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify the timeout either as a string like
// "15s" or as integer nanoseconds.
type JsonConfig struct {
	BaseURL         string         `json:"base_url"`
	DatabasePath    string         `json:"database_path"`
	VaultPassphrase string         `json:"vault_passphrase"`
	LogLevel        string         `json:"log_level"`
	RequestTimeout  timex.Duration `json:"request_timeout"`
}

// parseJson overlays cfg with values loaded from the JSON file named by the
// -c/-config flags. Absent flags mean no JSON is loaded. Unset JSON fields
// keep the value cfg already holds. Read and unmarshal errors panic; the
// process cannot run on a config it cannot parse.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.BaseURL != "" {
		cfg.BaseURL = jc.BaseURL
	}
	if jc.DatabasePath != "" {
		cfg.DatabasePath = jc.DatabasePath
	}
	if jc.VaultPassphrase != "" {
		cfg.VaultPassphrase = jc.VaultPassphrase
	}
	if jc.LogLevel != "" {
		cfg.LogLevel = jc.LogLevel
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = time.Duration(jc.RequestTimeout.Duration)
	}
}
