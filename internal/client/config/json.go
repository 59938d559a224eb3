package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/nextshape/internal/flagx"
	"github.com/dmitrijs2005/nextshape/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer fields
// tell an absent key apart from an explicit zero.
type JsonConfig struct {
	APIBaseURL           string          `json:"api_base_url"`
	RequestTimeout       *timex.Duration `json:"request_timeout"`
	AuthMode             string          `json:"auth_mode"`
	DatabasePath         string          `json:"database_path"`
	LogLevel             string          `json:"log_level"`
	LogFormat            string          `json:"log_format"`
	SessionProbeInterval *timex.Duration `json:"session_probe_interval"`
}

// parseJson overlays cfg with the file named by -c/-config. Keys missing from
// the file leave cfg untouched.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.AuthMode, jc.AuthMode)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)
	if jc.RequestTimeout != nil {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.SessionProbeInterval != nil {
		cfg.SessionProbeInterval = jc.SessionProbeInterval.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
