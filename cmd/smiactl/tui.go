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
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"

	"smiactl/internal/api"
	"smiactl/internal/config"
	"smiactl/internal/grammar"
	"smiactl/internal/paths"
	"smiactl/internal/stream"
	"smiactl/internal/theme"
)

func runInteractive(cfg *config.Config, client *api.Client, themes *theme.Manager, metrics *stream.Metrics, logger zerolog.Logger) int {
	logger.Debug().Msg("Running in interactive console mode")

	registry := grammar.Builtin()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:              themes.ColorScheme().Prompt.Sprint("smia❯ "),
		HistoryFile:         cfg.HistoryPath(),
		AutoComplete:        getCommandCompleter(registry),
		InterruptPrompt:     "^C",
		EOFPrompt:           "exit",
		FuncFilterInputRune: filterInterruptRune,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize readline")
		return exitUsage
	}
	defer rl.Close()

	// Stream entries are written through readline so the prompt is redrawn.
	printer := themes.Printer(rl.Stdout())
	logs := newStreamClient(cfg, metrics, printer, logger)
	defer logs.Close()
	a := newApp(cfg, client, logs, printer, logger)

	// Ctrl-C outside the prompt cancels the running command or script.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	defer signal.Stop(sigs)
	go func() {
		for range sigs {
			if a.canceler.Cancel() {
				logger.Debug().Msg("Operation cancelled by user")
			}
		}
	}()

	printer.Header("smiactl " + Version)
	printer.Plain("API:    %s", client.BaseURL())
	printer.Plain("Stream: %s", logs.URL())
	printer.Muted("Type /help for commands, Ctrl+D or /quit to exit")
	printer.Plain("")

	if cfg.AutoConnect {
		logs.Connect()
	}

	a.loop(context.Background(), rl)

	logger.Info().Msg("Session ended")
	return exitOK
}

// lineReader is the subset of readline used by the loop.
type lineReader interface {
	Readline() (string, error)
}

func (a *app) loop(ctx context.Context, rl lineReader) {
	for {
		line, err := rl.Readline()
		switch classifyReadlineError(line, err) {
		case readlineContinue:
			continue
		case readlineExit:
			return
		}
		if err != nil {
			a.logger.Debug().Err(err).Msg("Readline interrupted")
			return
		}

		line = strings.TrimSpace(sanitizeInputLine(line))
		if line == "" {
			continue
		}

		a.logger.Info().Str("user_input", line).Msg("User input received")

		if strings.HasPrefix(line, "/") {
			if a.handleCommand(ctx, line) {
				return
			}
			continue
		}

		a.executeLine(ctx, line)
	}
}

// getCommandCompleter builds a readline completer from the slash commands
// and the command registry, completing parameter names after each command.
func getCommandCompleter(registry *grammar.Registry) *readline.PrefixCompleter {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range getAvailableCommands() {
		switch cmd.Name {
		case "help":
			names := make([]readline.PrefixCompleterInterface, 0, len(registry.Names()))
			for _, name := range registry.Names() {
				names = append(names, readline.PcItem(name))
			}
			items = append(items, readline.PcItem("/help", names...))
		case "script":
			items = append(items, readline.PcItem("/script", readline.PcItemDynamic(listScripts)))
		default:
			items = append(items, readline.PcItem("/"+cmd.Name))
		}
	}

	for _, name := range registry.Names() {
		spec, _ := registry.Lookup(name)
		params := make([]readline.PrefixCompleterInterface, 0, len(spec.Parameters))
		for _, p := range spec.Parameters {
			params = append(params, readline.PcItem("-"+p.Name))
		}
		items = append(items, readline.PcItem(name, params...))
	}
	return readline.NewPrefixCompleter(items...)
}

// listScripts offers the scripts of the current directory.
func listScripts(string) []string {
	matches, err := filepath.Glob("*" + paths.ScriptExtension)
	if err != nil {
		return nil
	}
	return matches
}
