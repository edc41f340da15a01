package theme

import (
	"errors"
	"fmt"
	"regexp"
)

// Common validation errors
var (
	ErrInvalidColor = errors.New("invalid color format")
	ErrEmptyColor   = errors.New("color cannot be empty")
)

// hexColorRegex matches valid hex color codes (#RGB or #RRGGBB)
var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidateTheme validates all theme color values.
func ValidateTheme(t *Theme) error {
	if t == nil {
		return fmt.Errorf("theme is nil")
	}

	fields := map[string]string{
		"header_text_color": t.HeaderTextColor,
		"prompt_color":      t.PromptColor,
		"info_color":        t.InfoColor,
		"warning_color":     t.WarningColor,
		"error_color":       t.ErrorColor,
		"success_color":     t.SuccessColor,
		"system_color":      t.SystemColor,
		"muted_color":       t.MutedColor,
	}

	for name, value := range fields {
		if err := ValidateColor(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil
}

// ValidateColor validates a single color value (hex format).
func ValidateColor(color string) error {
	if color == "" {
		return ErrEmptyColor
	}

	if !hexColorRegex.MatchString(color) {
		return fmt.Errorf("%w: %q (expected #RGB or #RRGGBB)", ErrInvalidColor, color)
	}

	return nil
}
