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
	"strings"
	"time"

	"github.com/google/uuid"
)

// Severity classifies a log entry.
type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
	SeveritySuccess Severity = "SUCCESS"
	SeveritySystem  Severity = "SYSTEM"
)

// ParseSeverity maps a wire severity onto a Severity. Unknown values are INFO.
func ParseSeverity(s string) Severity {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WARNING", "WARN":
		return SeverityWarning
	case "ERROR":
		return SeverityError
	case "SUCCESS":
		return SeveritySuccess
	case "SYSTEM":
		return SeveritySystem
	default:
		return SeverityInfo
	}
}

// Sources used for locally synthesized entries.
const (
	SourceSystem    = "SYSTEM"
	SourceWebsocket = "WEBSOCKET"
)

// TimestampLayout is ISO-8601 with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// LogEntry is one normalized record of the activity stream.
type LogEntry struct {
	ID        string   `json:"id"`
	Timestamp string   `json:"timestamp"`
	Severity  Severity `json:"type"`
	Source    string   `json:"command"`
	Message   string   `json:"message"`
	Payload   any      `json:"data,omitempty"`
}

// Time parses the entry timestamp. The zero time is returned when it is malformed.
func (e LogEntry) Time() time.Time {
	t, err := time.Parse(TimestampLayout, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// newID returns a time-ordered identifier.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return "log_" + uuid.NewString()
	}
	return "log_" + id.String()
}
