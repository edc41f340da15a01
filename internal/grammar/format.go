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

package grammar

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ValueEncoder renders a parameter value for the canonical command text.
type ValueEncoder func(value string) string

// QuoteWhitespace quotes values containing whitespace or a quote character so
// Tokenize reads them back unchanged. Double quotes are used unless the value
// itself contains one.
func QuoteWhitespace(value string) string {
	if !strings.ContainsFunc(value, unicode.IsSpace) && !strings.ContainsAny(value, `"'`) {
		return value
	}
	return quote(value)
}

// PercentEncodeSpaces replaces spaces with %20 instead of quoting. Some
// backends split on whitespace before honouring quotes. Values holding a
// quote character are still quoted.
func PercentEncodeSpaces(value string) string {
	value = strings.ReplaceAll(value, " ", "%20")
	if !strings.ContainsAny(value, `"'`) {
		return value
	}
	return quote(value)
}

// quote wraps value in the quote kind it does not contain. A value holding
// both kinds is split into adjacent quoted segments, e.g. 'a"b'"'"'c', which
// Tokenize joins into one token.
func quote(value string) string {
	hasDouble := strings.ContainsRune(value, '"')
	hasSingle := strings.ContainsRune(value, '\'')
	switch {
	case !hasDouble:
		return `"` + value + `"`
	case !hasSingle:
		return "'" + value + "'"
	}

	var b strings.Builder
	open := '"'
	b.WriteRune(open)
	for _, r := range value {
		if r == open {
			b.WriteRune(open)
			if open == '"' {
				open = '\''
			} else {
				open = '"'
			}
			b.WriteRune(open)
		}
		b.WriteRune(r)
	}
	b.WriteRune(open)
	return b.String()
}

// EncoderByName resolves a quoting mode name ("quote" or "percent20").
func EncoderByName(name string) (ValueEncoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "quote":
		return QuoteWhitespace, nil
	case "percent20":
		return PercentEncodeSpaces, nil
	default:
		return nil, fmt.Errorf("unknown quoting mode %q", name)
	}
}

// Formatter serializes parsed commands back to canonical text.
type Formatter struct {
	Encode ValueEncoder
}

// DefaultFormatter quotes values that contain whitespace.
func DefaultFormatter() Formatter {
	return Formatter{Encode: QuoteWhitespace}
}

// Format renders cmd as "command -name=value ...". Parameters keep the order
// they were parsed in; maps built by hand are rendered sorted by name.
func (f Formatter) Format(cmd ParsedCommand) string {
	encode := f.Encode
	if encode == nil {
		encode = QuoteWhitespace
	}

	var b strings.Builder
	b.WriteString(cmd.Command)
	for _, name := range orderedNames(cmd) {
		value := cmd.Parameters[name]
		b.WriteString(" -")
		b.WriteString(name)
		if value == FlagValue {
			continue
		}
		b.WriteByte('=')
		b.WriteString(encode(value))
	}
	return b.String()
}

func orderedNames(cmd ParsedCommand) []string {
	names := make([]string, 0, len(cmd.Parameters))
	seen := make(map[string]bool, len(cmd.Parameters))
	for _, name := range cmd.order {
		if _, ok := cmd.Parameters[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range cmd.Parameters {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// Canonical parses line and formats it. The canonical text is empty when the
// parse has errors.
func (p *Parser) Canonical(line string, f Formatter) (string, ParsedCommand) {
	parsed := p.Parse(line)
	if !parsed.Valid() {
		return "", parsed
	}
	return f.Format(parsed), parsed
}
