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
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	apperrors "smiactl/internal/errors"
)

// Kind is the value type accepted by a parameter.
type Kind string

const (
	KindString Kind = "string"
	KindNumber Kind = "number"
	KindEnum   Kind = "enum"
)

// ParseKind converts a schema kind name into a Kind.
func ParseKind(name string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(name))) {
	case KindString, "":
		return KindString, nil
	case KindNumber:
		return KindNumber, nil
	case KindEnum:
		return KindEnum, nil
	default:
		return "", fmt.Errorf("unknown parameter kind %q", name)
	}
}

// ParameterSpec describes one accepted parameter of a command.
type ParameterSpec struct {
	Name        string
	Required    bool
	Kind        Kind
	Values      []string
	Default     string
	HasDefault  bool
	Description string
}

// CommandSpec is the declarative schema of a command. Parameters keep their
// declared order; names are lower-cased.
type CommandSpec struct {
	Name        string
	Description string
	Parameters  []ParameterSpec
	index       map[string]int
}

// Lookup returns the parameter spec with the given (lower-cased) name.
func (c *CommandSpec) Lookup(name string) (ParameterSpec, bool) {
	i, ok := c.index[name]
	if !ok {
		return ParameterSpec{}, false
	}
	return c.Parameters[i], true
}

// Registry maps command names to their schema. It is immutable once built.
type Registry struct {
	commands map[string]*CommandSpec
}

// NewRegistry builds a registry from command specs.
func NewRegistry(specs ...CommandSpec) (*Registry, error) {
	r := &Registry{commands: make(map[string]*CommandSpec, len(specs))}
	for _, spec := range specs {
		normalized, err := normalizeCommandSpec(spec)
		if err != nil {
			return nil, err
		}
		if _, exists := r.commands[normalized.Name]; exists {
			return nil, fmt.Errorf("duplicate command %q", normalized.Name)
		}
		r.commands[normalized.Name] = normalized
	}
	return r, nil
}

func normalizeCommandSpec(spec CommandSpec) (*CommandSpec, error) {
	name := strings.ToLower(strings.TrimSpace(spec.Name))
	if name == "" {
		return nil, fmt.Errorf("command name cannot be empty")
	}
	out := &CommandSpec{
		Name:        name,
		Description: spec.Description,
		Parameters:  make([]ParameterSpec, 0, len(spec.Parameters)),
		index:       make(map[string]int, len(spec.Parameters)),
	}
	for _, param := range spec.Parameters {
		param.Name = strings.ToLower(strings.TrimSpace(param.Name))
		if param.Name == "" {
			return nil, fmt.Errorf("command %s: parameter name cannot be empty", name)
		}
		if _, exists := out.index[param.Name]; exists {
			return nil, fmt.Errorf("command %s: duplicate parameter -%s", name, param.Name)
		}
		if param.Kind == "" {
			param.Kind = KindString
		}
		if param.Kind == KindEnum {
			if len(param.Values) == 0 {
				return nil, fmt.Errorf("command %s: enum parameter -%s has no values", name, param.Name)
			}
			if param.HasDefault && !containsFold(param.Values, param.Default) {
				return nil, fmt.Errorf("command %s: default %q for -%s is not an allowed value", name, param.Default, param.Name)
			}
		}
		param.Values = append([]string(nil), param.Values...)
		out.index[param.Name] = len(out.Parameters)
		out.Parameters = append(out.Parameters, param)
	}
	return out, nil
}

// Lookup returns the command spec for a case-insensitive name.
func (r *Registry) Lookup(name string) (*CommandSpec, bool) {
	spec, ok := r.commands[strings.ToLower(name)]
	return spec, ok
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type registryFile struct {
	Commands []commandEntry `yaml:"commands"`
}

type commandEntry struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Parameters  []parameterEntry `yaml:"parameters"`
}

type parameterEntry struct {
	Name        string   `yaml:"name"`
	Required    bool     `yaml:"required"`
	Kind        string   `yaml:"kind"`
	Values      []string `yaml:"values"`
	Default     *string  `yaml:"default"`
	Description string   `yaml:"description"`
}

// LoadRegistry decodes a YAML command schema document.
func LoadRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "decode command schema", err)
	}

	specs := make([]CommandSpec, 0, len(file.Commands))
	for _, cmd := range file.Commands {
		spec := CommandSpec{Name: cmd.Name, Description: cmd.Description}
		for _, p := range cmd.Parameters {
			kind, err := ParseKind(p.Kind)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("command %s parameter %s", cmd.Name, p.Name), err)
			}
			param := ParameterSpec{
				Name:        p.Name,
				Required:    p.Required,
				Kind:        kind,
				Values:      p.Values,
				Description: p.Description,
			}
			if p.Default != nil {
				param.Default = *p.Default
				param.HasDefault = true
			}
			spec.Parameters = append(spec.Parameters, param)
		}
		specs = append(specs, spec)
	}

	registry, err := NewRegistry(specs...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfig, "invalid command schema", err)
	}
	return registry, nil
}

//go:embed commands.yaml
var builtinSchema []byte

var (
	builtinOnce     sync.Once
	builtinRegistry *Registry
)

// Builtin returns the registry of the filesystem-simulation commands. It is
// decoded once and shared read-only.
func Builtin() *Registry {
	builtinOnce.Do(func() {
		registry, err := LoadRegistry(builtinSchema)
		if err != nil {
			panic(fmt.Sprintf("failed to load builtin command schema: %v", err))
		}
		builtinRegistry = registry
	})
	return builtinRegistry
}

func containsFold(values []string, candidate string) bool {
	for _, v := range values {
		if strings.EqualFold(v, candidate) {
			return true
		}
	}
	return false
}
