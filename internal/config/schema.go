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
	"math"
	"sort"
	"strings"
)

// SchemaJSON returns the JSON schema for config.json.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns an example config with every key at its default.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

func normalizeConfigJSON(data []byte) ([]byte, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return normalized, nil
}

// migrateLegacyConfig maps the key names used by the web client's .env files.
func migrateLegacyConfig(raw map[string]interface{}) {
	legacy := map[string]string{
		"api_base_url":  "api_url",
		"websocket_url": "ws_url",
	}
	for old, current := range legacy {
		value, ok := raw[old]
		if !ok {
			continue
		}
		if _, exists := raw[current]; !exists {
			raw[current] = value
		}
		delete(raw, old)
	}
}

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]func(interface{}) error{
		"api_url": func(v interface{}) error { return validateString(v, prefix+"api_url") },
		"ws_url":  func(v interface{}) error { return validateString(v, prefix+"ws_url") },
		"request_timeout_seconds": func(v interface{}) error {
			return validateInteger(v, prefix+"request_timeout_seconds")
		},
		"max_logs": func(v interface{}) error { return validateInteger(v, prefix+"max_logs") },
		"reconnect_interval_ms": func(v interface{}) error {
			return validateInteger(v, prefix+"reconnect_interval_ms")
		},
		"max_reconnect_attempts": func(v interface{}) error {
			return validateInteger(v, prefix+"max_reconnect_attempts")
		},
		"auto_connect":    func(v interface{}) error { return validateBool(v, prefix+"auto_connect") },
		"script_delay_ms": func(v interface{}) error { return validateInteger(v, prefix+"script_delay_ms") },
		"quoting": func(v interface{}) error {
			return validateEnum(v, prefix+"quoting", "quote", "percent20")
		},
		"command_history_file": func(v interface{}) error {
			return validateString(v, prefix+"command_history_file")
		},
		"show_stream":  func(v interface{}) error { return validateBool(v, prefix+"show_stream") },
		"metrics_addr": func(v interface{}) error { return validateString(v, prefix+"metrics_addr") },
	}
	return validateSection(raw, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]func(interface{}) error, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func validateInteger(value interface{}, name string) error {
	n, ok := value.(float64)
	if !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	if n != math.Trunc(n) {
		return fmt.Errorf("%s must be a whole number", name)
	}
	return nil
}

func validateBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

func validateEnum(value interface{}, name string, options ...string) error {
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	for _, opt := range options {
		if strings.EqualFold(s, opt) {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s", name, strings.Join(options, ", "))
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "smiactl Config",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "api_url": { "type": "string" },
    "ws_url": { "type": "string" },
    "request_timeout_seconds": { "type": "integer" },
    "max_logs": { "type": "integer" },
    "reconnect_interval_ms": { "type": "integer" },
    "max_reconnect_attempts": { "type": "integer" },
    "auto_connect": { "type": "boolean" },
    "script_delay_ms": { "type": "integer" },
    "quoting": { "type": "string", "enum": ["quote", "percent20"] },
    "command_history_file": { "type": "string" },
    "show_stream": { "type": "boolean" },
    "metrics_addr": { "type": "string" }
  }
}`

const exampleConfigJSON = `{
  "api_url": "http://localhost:8080",
  "ws_url": "ws://localhost:8080/api/ws",
  "request_timeout_seconds": 10,
  "max_logs": 1000,
  "reconnect_interval_ms": 3000,
  "max_reconnect_attempts": 5,
  "auto_connect": true,
  "script_delay_ms": 500,
  "quoting": "quote",
  "command_history_file": "~/.smiactl_history",
  "show_stream": true,
  "metrics_addr": ""
}`
