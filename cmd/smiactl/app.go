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
	"errors"
	"time"

	"github.com/rs/zerolog"

	"smiactl/internal/api"
	"smiactl/internal/config"
	apperrors "smiactl/internal/errors"
	"smiactl/internal/grammar"
	"smiactl/internal/script"
	"smiactl/internal/stream"
	"smiactl/internal/theme"
)

// backend is the part of the API client the console uses.
type backend interface {
	script.Executor
	Health(ctx context.Context) (api.Health, string, error)
	FileSystems(ctx context.Context) ([]api.FileSystem, error)
	BaseURL() string
}

// logStream is the part of the stream client the console uses.
type logStream interface {
	Connect()
	Disconnect()
	Reconnect()
	Close()
	State() stream.ConnectionState
	Attempts() int
	RetryPending() bool
	Logs() []stream.LogEntry
	RecentLogs(n int) []stream.LogEntry
	ClearLogs()
	LastError() string
	LastMessage() (stream.LogEntry, bool)
	URL() string
}

// app bundles everything a console session needs.
type app struct {
	cfg       *config.Config
	parser    *grammar.Parser
	formatter grammar.Formatter
	backend   backend
	stream    logStream
	printer   *theme.Printer
	logger    zerolog.Logger
	canceler  *operationCanceler

	// wait replaces the script delay in tests.
	wait func(ctx context.Context, d time.Duration) error
}

func newApp(cfg *config.Config, b backend, s logStream, printer *theme.Printer, logger zerolog.Logger) *app {
	return &app{
		cfg:       cfg,
		parser:    grammar.NewParser(grammar.Builtin()),
		formatter: grammar.Formatter{Encode: cfg.Encoder()},
		backend:   b,
		stream:    s,
		printer:   printer,
		logger:    logger,
		canceler:  &operationCanceler{},
	}
}

func (a *app) registry() *grammar.Registry {
	return a.parser.Registry()
}

// executeLine validates one command line and, if valid, sends its canonical
// form to the server. It reports whether the command succeeded.
func (a *app) executeLine(ctx context.Context, line string) bool {
	canonical, parsed := a.parser.Canonical(line, a.formatter)
	if !parsed.Valid() {
		a.logger.Debug().Str("command", line).Strs("errors", parsed.Errors).Msg("Command rejected")
		a.printer.APIError(api.ValidationError(line, parsed.Errors))
		return false
	}

	ctx, cancel := context.WithCancel(ctx)
	a.canceler.Set(cancel)
	defer func() {
		a.canceler.Clear()
		cancel()
	}()

	start := time.Now()
	resp, err := a.backend.Execute(ctx, canonical)
	duration := time.Since(start)
	if err != nil {
		a.logger.Error().Err(err).Str("command", canonical).Dur("duration_ms", duration).Msg("Command failed")
		a.printError(err)
		return false
	}

	a.logger.Info().Str("command", canonical).Dur("duration_ms", duration).Msg("Command executed")
	message := resp.Message
	if message == "" {
		message = "command executed"
	}
	a.printer.Success("%s", message)
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		a.printer.Muted("%s", resp.Data)
	}
	return true
}

func (a *app) printError(err error) {
	if errors.Is(err, context.Canceled) {
		a.printer.Failure("cancelled")
		return
	}
	var apiErr api.Error
	if errors.As(err, &apiErr) {
		a.printer.APIError(apiErr)
		return
	}
	if apperrors.HasCode(err, apperrors.CodeTransport) {
		a.printer.Failure("server response could not be read: %v", err)
		a.printer.Muted("  • Check that api_url points at the server (%s)", a.backend.BaseURL())
		return
	}
	if code := apperrors.CodeOf(err); code != "" {
		a.printer.Failure("%s error: %v", code, err)
		return
	}
	a.printer.Failure("%v", err)
}

// runScript executes a whole script, printing every line as it finishes.
func (a *app) runScript(ctx context.Context, content string) script.Report {
	ctx, cancel := context.WithCancel(ctx)
	a.canceler.Set(cancel)
	defer func() {
		a.canceler.Clear()
		cancel()
	}()

	runner := script.NewRunner(a.parser, a.backend, script.Options{
		Formatter: a.formatter,
		Delay:     a.cfg.ScriptDelay(),
		Logger:    a.logger,
		OnResult:  a.printer.Result,
		Wait:      a.wait,
	})
	return runner.Run(ctx, content)
}

// checkScript validates a script without contacting the server and prints
// the canonical form of every line. It returns the number of invalid lines.
func (a *app) checkScript(content string) int {
	invalid := 0
	for _, line := range script.Lines(content) {
		canonical, parsed := a.parser.Canonical(line.Text, a.formatter)
		if !parsed.Valid() {
			invalid++
			a.printer.Failure("[%d] %s: %s", line.Number, line.Text, api.ValidationError(line.Text, parsed.Errors).Message)
			continue
		}
		a.printer.Success("[%d] %s", line.Number, canonical)
	}
	return invalid
}
