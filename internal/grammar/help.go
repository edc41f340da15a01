package grammar

import (
	"fmt"
	"strings"
)

// Help renders usage text for a command.
func (r *Registry) Help(name string) (string, error) {
	spec, ok := r.Lookup(name)
	if !ok {
		return "", fmt.Errorf("unknown command: %s", name)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s - %s\n", spec.Name, spec.Description)
	if len(spec.Parameters) == 0 {
		b.WriteString("  (no parameters)\n")
		return b.String(), nil
	}

	b.WriteString("Parameters:\n")
	for _, param := range spec.Parameters {
		required := "optional"
		if param.Required {
			required = "required"
		}
		fmt.Fprintf(&b, "  -%s (%s, %s)", param.Name, param.Kind, required)
		if param.HasDefault {
			fmt.Fprintf(&b, " [default: %s]", param.Default)
		}
		if len(param.Values) > 0 {
			fmt.Fprintf(&b, " [values: %s]", strings.Join(param.Values, ", "))
		}
		b.WriteByte('\n')
		if param.Description != "" {
			fmt.Fprintf(&b, "      %s\n", param.Description)
		}
	}
	return b.String(), nil
}

// Usage returns a one-line synopsis such as "mount -path=<string> -name=<string>".
func (s *CommandSpec) Usage() string {
	parts := []string{s.Name}
	for _, param := range s.Parameters {
		var placeholder string
		switch param.Kind {
		case KindEnum:
			placeholder = fmt.Sprintf("-%s=%s", param.Name, strings.Join(param.Values, "|"))
		default:
			placeholder = fmt.Sprintf("-%s=<%s>", param.Name, param.Kind)
		}
		if !param.Required {
			placeholder = "[" + placeholder + "]"
		}
		parts = append(parts, placeholder)
	}
	return strings.Join(parts, " ")
}
