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
	"math"
	"strconv"
	"strings"
)

// FlagValue is the value recorded for a parameter given without "=".
const FlagValue = "true"

// ParsedCommand is the structured form of one command line. A command with
// errors must not be forwarded to execution.
type ParsedCommand struct {
	Command    string
	Parameters map[string]string
	Errors     []string

	// insertion order of Parameters, used by the formatter
	order []string
}

// Valid reports whether the parse produced no errors.
func (p ParsedCommand) Valid() bool {
	return len(p.Errors) == 0
}

func (p *ParsedCommand) set(name, value string) {
	if p.Parameters == nil {
		p.Parameters = make(map[string]string)
	}
	if _, exists := p.Parameters[name]; !exists {
		p.order = append(p.order, name)
	}
	p.Parameters[name] = value
}

// Parser validates command lines against a registry.
type Parser struct {
	registry *Registry
}

// NewParser creates a parser bound to a registry.
func NewParser(registry *Registry) *Parser {
	return &Parser{registry: registry}
}

// Registry returns the registry the parser validates against.
func (p *Parser) Registry() *Registry {
	return p.registry
}

// Parse tokenizes and validates a line. It never fails: every problem is
// reported in the returned Errors.
func (p *Parser) Parse(line string) ParsedCommand {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return ParsedCommand{Parameters: map[string]string{}, Errors: []string{"empty command"}}
	}

	tokens, err := Tokenize(trimmed)
	if err != nil {
		return ParsedCommand{Parameters: map[string]string{}, Errors: []string{fmt.Sprintf("syntax error: %v", err)}}
	}
	if len(tokens) == 0 {
		return ParsedCommand{Parameters: map[string]string{}, Errors: []string{"invalid command"}}
	}

	name := strings.ToLower(tokens[0])
	spec, ok := p.registry.Lookup(name)
	if !ok {
		return ParsedCommand{Command: name, Parameters: map[string]string{}, Errors: []string{fmt.Sprintf("unknown command: %s", name)}}
	}

	parsed := ParsedCommand{Command: name, Parameters: map[string]string{}}
	parsed.Errors = append(parsed.Errors, parseParameters(tokens[1:], &parsed)...)
	parsed.Errors = append(parsed.Errors, validateParameters(&parsed, spec)...)
	applyDefaults(&parsed, spec)
	return parsed
}

func parseParameters(tokens []string, parsed *ParsedCommand) []string {
	var errs []string
	for _, token := range tokens {
		if !strings.HasPrefix(token, "-") {
			errs = append(errs, fmt.Sprintf("invalid token (must start with -): %s", token))
			continue
		}

		body := token[1:]
		name, value, hasValue := strings.Cut(body, "=")
		if !hasValue {
			value = FlagValue
		}
		name = strings.ToLower(name)
		if name == "" {
			errs = append(errs, fmt.Sprintf("empty parameter name in: %s", token))
			continue
		}
		parsed.set(name, value)
	}
	return errs
}

func validateParameters(parsed *ParsedCommand, spec *CommandSpec) []string {
	var errs []string

	for _, param := range spec.Parameters {
		if !param.Required {
			continue
		}
		if _, ok := parsed.Parameters[param.Name]; !ok {
			errs = append(errs, fmt.Sprintf("missing required parameter: -%s", param.Name))
		}
	}

	for _, name := range parsed.order {
		value := parsed.Parameters[name]
		param, ok := spec.Lookup(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("unknown parameter: -%s", name))
			continue
		}

		switch param.Kind {
		case KindNumber:
			if !isPositiveNumber(value) {
				errs = append(errs, fmt.Sprintf("parameter -%s must be a positive number greater than zero", name))
			}
		case KindEnum:
			if !containsFold(param.Values, value) {
				errs = append(errs, fmt.Sprintf("invalid value for -%s. Allowed values: %s", name, strings.Join(param.Values, ", ")))
			}
		}
	}

	return errs
}

func isPositiveNumber(value string) bool {
	n, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return false
	}
	return n > 0
}

func applyDefaults(parsed *ParsedCommand, spec *CommandSpec) {
	for _, param := range spec.Parameters {
		if !param.HasDefault {
			continue
		}
		if _, ok := parsed.Parameters[param.Name]; !ok {
			parsed.set(param.Name, param.Default)
		}
	}
}
