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

package theme

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"smiactl/internal/stream"
)

// Theme represents the color theme of the console, one hex color per role.
type Theme struct {
	HeaderTextColor string `json:"header_text_color"`
	PromptColor     string `json:"prompt_color"`
	InfoColor       string `json:"info_color"`
	WarningColor    string `json:"warning_color"`
	ErrorColor      string `json:"error_color"`
	SuccessColor    string `json:"success_color"`
	SystemColor     string `json:"system_color"`
	MutedColor      string `json:"muted_color"`
}

// ColorScheme provides pterm and color styles based on theme
type ColorScheme struct {
	Header  *pterm.Style
	Prompt  *color.Color
	Info    *color.Color
	Warning *color.Color
	Error   *color.Color
	Success *color.Color
	System  *color.Color
	Muted   *color.Color
}

// DefaultTheme returns a theme with default values
func DefaultTheme() *Theme {
	return &Theme{
		HeaderTextColor: "#cba6f7",
		PromptColor:     "#89b4fa",
		InfoColor:       "#89dceb",
		WarningColor:    "#f9e2af",
		ErrorColor:      "#f38ba8",
		SuccessColor:    "#a6e3a1",
		SystemColor:     "#cba6f7",
		MutedColor:      "#6c7086",
	}
}

// LoadTheme loads theme configuration from a JSON file
func LoadTheme(filepath string) (*Theme, error) {
	theme := DefaultTheme()

	// If theme file doesn't exist, return default theme
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return theme, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(data, theme); err != nil {
		return nil, err
	}

	return theme, nil
}

// ToColorScheme converts theme to pterm/color styles. Colors must have been
// validated with ValidateTheme.
func (t *Theme) ToColorScheme() *ColorScheme {
	return &ColorScheme{
		Header:  pterm.NewStyle(pterm.FgLightMagenta, pterm.Bold),
		Prompt:  hexColor(t.PromptColor, color.FgBlue),
		Info:    hexColor(t.InfoColor, color.FgCyan),
		Warning: hexColor(t.WarningColor, color.FgYellow),
		Error:   hexColor(t.ErrorColor, color.FgRed),
		Success: hexColor(t.SuccessColor, color.FgGreen),
		System:  hexColor(t.SystemColor, color.FgMagenta),
		Muted:   hexColor(t.MutedColor, color.FgHiBlack),
	}
}

// DefaultColorScheme returns a simple color scheme using the basic ANSI palette
func DefaultColorScheme() *ColorScheme {
	return &ColorScheme{
		Header:  pterm.NewStyle(pterm.FgCyan, pterm.Bold),
		Prompt:  color.New(color.FgBlue),
		Info:    color.New(color.FgCyan),
		Warning: color.New(color.FgYellow),
		Error:   color.New(color.FgRed, color.Bold),
		Success: color.New(color.FgGreen),
		System:  color.New(color.FgMagenta),
		Muted:   color.New(color.FgHiBlack),
	}
}

// DisabledColorScheme returns a color scheme with all colors disabled (for NO_COLOR).
func DisabledColorScheme() *ColorScheme {
	// Disable color output for fatih/color and pterm
	color.NoColor = true
	pterm.DisableColor()

	return &ColorScheme{
		Header:  pterm.NewStyle(),
		Prompt:  color.New(),
		Info:    color.New(),
		Warning: color.New(),
		Error:   color.New(),
		Success: color.New(),
		System:  color.New(),
		Muted:   color.New(),
	}
}

// Severity returns the color used for log entries of the given severity.
func (c *ColorScheme) Severity(sev stream.Severity) *color.Color {
	switch sev {
	case stream.SeverityWarning:
		return c.Warning
	case stream.SeverityError:
		return c.Error
	case stream.SeveritySuccess:
		return c.Success
	case stream.SeveritySystem:
		return c.System
	default:
		return c.Info
	}
}

func hexColor(hex string, fallback color.Attribute) *color.Color {
	r, g, b, ok := parseHex(hex)
	if !ok {
		return color.New(fallback)
	}
	return color.RGB(r, g, b)
}

// parseHex expands #RGB and #RRGGBB into components.
func parseHex(hex string) (int, int, int, bool) {
	if !hexColorRegex.MatchString(hex) {
		return 0, 0, 0, false
	}
	digits := hex[1:]
	if len(digits) == 3 {
		digits = string([]byte{digits[0], digits[0], digits[1], digits[1], digits[2], digits[2]})
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff), true
}
