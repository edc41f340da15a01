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

package main

import (
	"context"
	"io"

	"smiactl/internal/script"
)

// Exit codes of the batch modes.
const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

// loadScript reads the script at path, or stdin when path is empty.
func loadScript(path string, stdin io.Reader) (string, string, error) {
	if path == "" {
		content, err := script.Read(stdin)
		return "stdin", content, err
	}
	return script.LoadFile(path)
}

// runBatch executes a script and prints a report. It exits non-zero when
// any line failed.
func runBatch(ctx context.Context, a *app, path string, stdin io.Reader) int {
	name, content, err := loadScript(path, stdin)
	if err != nil {
		a.logger.Error().Err(err).Str("path", path).Msg("Failed to load script")
		a.printer.Failure("%v", err)
		return exitUsage
	}

	a.logger.Info().Str("script", name).Int("lines", len(script.Lines(content))).Msg("Running script")
	a.printer.Header("Running " + name)
	report := a.runScript(ctx, content)
	if err := a.printer.Report(report); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to render report")
	}
	if report.Failed > 0 {
		return exitFailed
	}
	return exitOK
}

// checkBatch validates a script offline.
func checkBatch(a *app, path string, stdin io.Reader) int {
	name, content, err := loadScript(path, stdin)
	if err != nil {
		a.printer.Failure("%v", err)
		return exitUsage
	}

	invalid := a.checkScript(content)
	lines := len(script.Lines(content))
	a.logger.Info().Str("script", name).Int("lines", lines).Int("invalid", invalid).Msg("Script checked")
	if invalid > 0 {
		a.printer.Failure("%d of %d lines are invalid", invalid, lines)
		return exitFailed
	}
	a.printer.Success("%d lines valid, %d comments", lines, script.CountComments(content))
	return exitOK
}
