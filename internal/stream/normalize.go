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

package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	apperrors "smiactl/internal/errors"
)

var textPattern = regexp.MustCompile(`\[(\d+)\] \[(\w+)\] ([^:]+): (.+)`)

// Normalizer converts stream payloads into log entries.
type Normalizer struct {
	now   func() time.Time
	newID func() string
}

// NewNormalizer creates a normalizer stamping entries with the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now, newID: newID}
}

// decodeStrategy returns ok=false to hand the payload to the next strategy.
// A non-nil error stops the pipeline.
type decodeStrategy func(n *Normalizer, raw []byte) (entry LogEntry, ok bool, err error)

var pipeline = []decodeStrategy{
	decodeJSON,
	decodeText,
	wrapRaw,
}

// Normalize runs the payload through the JSON, text and raw strategies in
// order. Exactly one entry is produced unless a recognised format carries an
// unusable field.
func (n *Normalizer) Normalize(raw []byte) (LogEntry, error) {
	for _, strategy := range pipeline {
		entry, ok, err := strategy(n, raw)
		if err != nil {
			return LogEntry{}, apperrors.Wrap(apperrors.CodeStream, "decode stream message", err)
		}
		if ok {
			return entry, nil
		}
	}
	// wrapRaw always accepts
	return LogEntry{}, apperrors.New(apperrors.CodeStream, "no decoder accepted message")
}

func (n *Normalizer) entry(t time.Time, severity Severity, source, message string, payload any) LogEntry {
	return LogEntry{
		ID:        n.newID(),
		Timestamp: formatTimestamp(t),
		Severity:  severity,
		Source:    source,
		Message:   message,
		Payload:   payload,
	}
}

type wireMessage struct {
	Time    json.RawMessage `json:"time"`
	Type    string          `json:"type"`
	Command string          `json:"command"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decodeJSON(n *Normalizer, raw []byte) (LogEntry, bool, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return LogEntry{}, false, nil
	}
	var msg wireMessage
	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return LogEntry{}, false, nil
	}

	at, err := n.parseWireTime(msg.Time)
	if err != nil {
		return LogEntry{}, false, err
	}

	source := msg.Command
	if source == "" {
		source = SourceSystem
	}
	message := msg.Message
	if message == "" {
		message = string(raw)
	}
	var payload any
	if len(msg.Data) > 0 && !bytes.Equal(msg.Data, []byte("null")) {
		payload = msg.Data
	}
	return n.entry(at, ParseSeverity(msg.Type), source, message, payload), true, nil
}

// parseWireTime accepts unix seconds as a JSON number or numeric string.
func (n *Normalizer) parseWireTime(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return n.now(), nil
	}
	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return time.Time{}, fmt.Errorf("invalid time %s: %w", raw, err)
		}
		if strings.TrimSpace(text) == "" {
			return n.now(), nil
		}
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return time.Time{}, fmt.Errorf("invalid time %s", raw)
	}
	whole, frac := math.Modf(seconds)
	return time.Unix(int64(whole), int64(frac*float64(time.Second))), nil
}

func decodeText(n *Normalizer, raw []byte) (LogEntry, bool, error) {
	match := textPattern.FindStringSubmatch(string(raw))
	if match == nil {
		return LogEntry{}, false, nil
	}
	seconds, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return LogEntry{}, false, fmt.Errorf("invalid time %s: %w", match[1], err)
	}
	return n.entry(time.Unix(seconds, 0), ParseSeverity(match[2]), match[3], match[4], nil), true, nil
}

func wrapRaw(n *Normalizer, raw []byte) (LogEntry, bool, error) {
	return n.entry(n.now(), SeverityInfo, SourceSystem, string(raw), nil), true, nil
}
