// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"smiactl/internal/api"
	apperrors "smiactl/internal/errors"
	"smiactl/internal/grammar"
	"smiactl/internal/paths"
	"smiactl/internal/script"
	"smiactl/internal/stream"
)

// DefaultPath is the config file read when -config is not given.
const DefaultPath = "config.json"

// EnvPrefix prefixes every environment override, e.g. SMIA_API_URL.
const EnvPrefix = "SMIA_"

// Config represents the application configuration
type Config struct {
	APIURL                string `json:"api_url,omitempty" env:"API_URL"`
	WSURL                 string `json:"ws_url,omitempty" env:"WS_URL"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds,omitempty" env:"REQUEST_TIMEOUT_SECONDS"`
	MaxLogs               int    `json:"max_logs,omitempty" env:"MAX_LOGS"`
	ReconnectIntervalMS   int    `json:"reconnect_interval_ms,omitempty" env:"RECONNECT_INTERVAL_MS"`
	MaxReconnectAttempts  int    `json:"max_reconnect_attempts" env:"MAX_RECONNECT_ATTEMPTS"`
	AutoConnect           bool   `json:"auto_connect" env:"AUTO_CONNECT"`
	ScriptDelayMS         int    `json:"script_delay_ms" env:"SCRIPT_DELAY_MS"`
	Quoting               string `json:"quoting,omitempty" env:"QUOTING"`
	CommandHistoryFile    string `json:"command_history_file,omitempty" env:"COMMAND_HISTORY_FILE"`
	ShowStream            bool   `json:"show_stream" env:"SHOW_STREAM"`
	MetricsAddr           string `json:"metrics_addr,omitempty" env:"METRICS_ADDR"`
}

// ValidationWarning represents a configuration validation warning
type ValidationWarning struct {
	Field   string
	Message string
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		APIURL:                api.DefaultBaseURL,
		WSURL:                 stream.DefaultURL,
		RequestTimeoutSeconds: int(api.DefaultTimeout / time.Second),
		MaxLogs:               stream.DefaultMaxLogs,
		ReconnectIntervalMS:   int(stream.DefaultReconnectInterval / time.Millisecond),
		MaxReconnectAttempts:  stream.DefaultMaxReconnectAttempts,
		AutoConnect:           true,
		ScriptDelayMS:         int(script.DefaultDelay / time.Millisecond),
		Quoting:               "quote",
		CommandHistoryFile:    "~/.smiactl_history",
		ShowStream:            true,
	}
}

// LoadConfig loads configuration from a JSON file and applies SMIA_* env
// overrides. A missing file yields the defaults.
func LoadConfig(filepath string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(filepath); err == nil {
		data, err := os.ReadFile(filepath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "read config", err)
		}
		normalized, err := normalizeConfigJSON(data)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid config "+filepath, err)
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, "decode config", err)
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "environment override", err)
	}

	return config, nil
}

// RequestTimeout is the HTTP timeout for execute and health calls.
func (c *Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return api.DefaultTimeout
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// ReconnectInterval is the fixed delay before each stream reconnect attempt.
func (c *Config) ReconnectInterval() time.Duration {
	if c.ReconnectIntervalMS <= 0 {
		return stream.DefaultReconnectInterval
	}
	return time.Duration(c.ReconnectIntervalMS) * time.Millisecond
}

// ReconnectAttempts is the stream retry budget in the form stream.Options
// expects: zero or less disables reconnection.
func (c *Config) ReconnectAttempts() int {
	if c.MaxReconnectAttempts <= 0 {
		return -1
	}
	return c.MaxReconnectAttempts
}

// ScriptDelay is the pause between two dispatched script commands.
func (c *Config) ScriptDelay() time.Duration {
	if c.ScriptDelayMS < 0 {
		return script.DefaultDelay
	}
	return time.Duration(c.ScriptDelayMS) * time.Millisecond
}

// Encoder returns the value encoder selected by quoting, falling back to
// whitespace quoting for unknown names.
func (c *Config) Encoder() grammar.ValueEncoder {
	enc, err := grammar.EncoderByName(c.Quoting)
	if err != nil {
		return grammar.QuoteWhitespace
	}
	return enc
}

// HistoryPath returns the command history file with "~" expanded. An empty
// result disables history.
func (c *Config) HistoryPath() string {
	if c.CommandHistoryFile == "" {
		return ""
	}
	expanded, err := paths.ExpandHome(c.CommandHistoryFile)
	if err != nil {
		return ""
	}
	return expanded
}

// Validate checks configuration values and returns warnings for problematic
// settings. Accessors fall back to defaults for every value warned about here.
func (c *Config) Validate() []ValidationWarning {
	var warnings []ValidationWarning
	warn := func(field, format string, args ...any) {
		warnings = append(warnings, ValidationWarning{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if msg := checkURL(c.APIURL, "http", "https"); msg != "" {
		warn("api_url", "%s", msg)
	}
	if msg := checkURL(c.WSURL, "ws", "wss"); msg != "" {
		warn("ws_url", "%s", msg)
	}
	if c.RequestTimeoutSeconds <= 0 {
		warn("request_timeout_seconds", "request_timeout_seconds %d must be positive, using %s", c.RequestTimeoutSeconds, api.DefaultTimeout)
	}
	if c.MaxLogs <= 0 {
		warn("max_logs", "max_logs %d must be positive, using %d", c.MaxLogs, stream.DefaultMaxLogs)
	}
	if c.ReconnectIntervalMS <= 0 {
		warn("reconnect_interval_ms", "reconnect_interval_ms %d must be positive, using %s", c.ReconnectIntervalMS, stream.DefaultReconnectInterval)
	}
	if c.ScriptDelayMS < 0 {
		warn("script_delay_ms", "script_delay_ms %d must not be negative, using %s", c.ScriptDelayMS, script.DefaultDelay)
	}
	if _, err := grammar.EncoderByName(c.Quoting); err != nil {
		warn("quoting", "%v, using quote", err)
	}

	return warnings
}

func checkURL(raw string, schemes ...string) string {
	if raw == "" {
		return "url is empty"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Sprintf("invalid url %q: %v", raw, err)
	}
	for _, s := range schemes {
		if u.Scheme == s {
			if u.Host == "" {
				return fmt.Sprintf("url %q has no host", raw)
			}
			return ""
		}
	}
	return fmt.Sprintf("url %q must use one of the schemes %v", raw, schemes)
}
