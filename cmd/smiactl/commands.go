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
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"smiactl/internal/script"
	"smiactl/internal/theme"
)

const defaultLogCount = 20

// Command represents a slash command
type Command struct {
	Name        string
	Args        string
	Description string
}

// getAvailableCommands returns the list of all slash commands
func getAvailableCommands() []Command {
	return []Command{
		{Name: "help", Args: "[command]", Description: "Show available commands or the usage of one command"},
		{Name: "commands", Description: "List the disk commands the server accepts"},
		{Name: "logs", Args: "[n]", Description: "Show the last n stream log entries"},
		{Name: "clear", Description: "Clear the stream log history"},
		{Name: "status", Description: "Show server and stream connection status"},
		{Name: "connect", Description: "Open the stream connection"},
		{Name: "disconnect", Description: "Close the stream connection"},
		{Name: "reconnect", Description: "Reopen the stream connection with a fresh retry budget"},
		{Name: "script", Args: "<file.smia>", Description: "Run a script file"},
		{Name: "sample", Description: "Print an example script"},
		{Name: "health", Description: "Check that the server is up"},
		{Name: "filesystems", Description: "List the file systems known to the server"},
		{Name: "quit", Description: "Exit the application"},
		{Name: "exit", Description: "Exit the application"},
	}
}

// handleCommand processes slash commands, returns true if should quit
func (a *app) handleCommand(ctx context.Context, input string) bool {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(input), "/"))
	if len(fields) == 0 {
		a.showHelp()
		return false
	}
	cmdName := strings.ToLower(fields[0])
	args := fields[1:]

	a.logger.Debug().Str("command", cmdName).Strs("args", args).Msg("Executing slash command")

	switch cmdName {
	case "help":
		if len(args) > 0 {
			a.showCommandHelp(args[0])
		} else {
			a.showHelp()
		}

	case "commands":
		a.showCommands()

	case "logs":
		a.showLogs(args)

	case "clear":
		a.stream.ClearLogs()
		a.printer.Success("Log history cleared")

	case "status":
		a.showStatus()

	case "connect":
		a.stream.Connect()
		a.printer.Success("Connecting to %s", a.stream.URL())

	case "disconnect":
		a.stream.Disconnect()
		a.printer.Success("Disconnected from %s", a.stream.URL())

	case "reconnect":
		a.stream.Reconnect()
		a.printer.Success("Reconnecting to %s", a.stream.URL())

	case "script":
		a.runScriptFile(ctx, strings.Join(args, " "))

	case "sample":
		a.printer.Plain("%s", script.Sample())

	case "health":
		a.checkHealth(ctx)

	case "filesystems", "fs":
		a.showFileSystems(ctx)

	case "quit", "exit":
		return true

	default:
		a.printer.Failure("Unknown command: /%s (type /help for available commands)", cmdName)
	}
	return false
}

func (a *app) showHelp() {
	var b strings.Builder
	for _, cmd := range getAvailableCommands() {
		usage := "/" + cmd.Name
		if cmd.Args != "" {
			usage += " " + cmd.Args
		}
		fmt.Fprintf(&b, "  %-22s - %s\n", usage, cmd.Description)
	}
	b.WriteString("\nKeyboard Shortcuts:\n")
	b.WriteString("  Tab          - Auto-complete commands and parameters\n")
	b.WriteString("  Ctrl+C       - Cancel the running command or script\n")
	b.WriteString("  Ctrl+D       - Exit\n")

	a.printer.Header("\nAvailable Commands:")
	a.printer.Plain("%s", b.String())
	a.printer.Muted("Anything else is sent to the server as a command, e.g. mkdisk -size=10 -path=/home/disk1.mia")
}

func (a *app) showCommandHelp(name string) {
	help, err := a.registry().Help(name)
	if err != nil {
		a.printer.Failure("%v (type /commands for the list)", err)
		return
	}
	a.printer.Plain("%s", strings.TrimRight(help, "\n"))
}

func (a *app) showCommands() {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "Command\tUsage")
	fmt.Fprintln(w, "───────\t─────")
	for _, name := range a.registry().Names() {
		spec, _ := a.registry().Lookup(name)
		fmt.Fprintf(w, "%s\t%s\n", name, spec.Usage())
	}
	w.Flush()

	a.printer.Header("\nCommands:")
	a.printer.Plain("%s", b.String())
}

func (a *app) showLogs(args []string) {
	n := defaultLogCount
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed <= 0 {
			a.printer.Failure("Invalid count: %s", args[0])
			return
		}
		n = parsed
	}

	entries := a.stream.RecentLogs(n)
	if len(entries) == 0 {
		a.printer.Muted("No log entries")
		return
	}
	a.printer.Entries(entries)
}

func (a *app) showStatus() {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintf(w, "API\t%s\n", a.backend.BaseURL())
	fmt.Fprintf(w, "Stream\t%s\n", a.stream.URL())
	fmt.Fprintf(w, "State\t%s\n", a.stream.State())
	fmt.Fprintf(w, "Reconnect attempts\t%d\n", a.stream.Attempts())
	if a.stream.RetryPending() {
		fmt.Fprintf(w, "Retry\tpending\n")
	}
	if last := a.stream.LastError(); last != "" {
		fmt.Fprintf(w, "Last error\t%s\n", last)
	}
	if last, ok := a.stream.LastMessage(); ok {
		fmt.Fprintf(w, "Last message\t%s\n", theme.FormatEntry(last))
	}
	fmt.Fprintf(w, "Log entries\t%d\n", len(a.stream.Logs()))
	w.Flush()

	a.printer.Header("\nStatus:")
	a.printer.Plain("%s", b.String())
}

func (a *app) runScriptFile(ctx context.Context, path string) {
	path = strings.Trim(path, `"'`)
	if path == "" {
		a.printer.Failure("Usage: /script <file.smia>")
		return
	}
	resolved, content, err := script.LoadFile(path)
	if err != nil {
		a.printer.Failure("%v", err)
		return
	}

	a.printer.Header("\nRunning " + resolved)
	report := a.runScript(ctx, content)
	if err := a.printer.Report(report); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to render report")
	}
}

func (a *app) checkHealth(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	start := time.Now()
	health, message, err := a.backend.Health(ctx)
	if err != nil {
		a.printError(err)
		return
	}
	if message == "" {
		message = "server is up"
	}
	a.printer.Success("%s (%s, %s)", message, health.Status, time.Since(start).Round(time.Millisecond))
	if health.Version != "" {
		a.printer.Muted("version %s", health.Version)
	}
}

func (a *app) showFileSystems(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.RequestTimeout())
	defer cancel()

	fileSystems, err := a.backend.FileSystems(ctx)
	if err != nil {
		a.printError(err)
		return
	}
	if len(fileSystems) == 0 {
		a.printer.Muted("No file systems")
		return
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "Name\tType\tSize\tMount point")
	for _, fs := range fileSystems {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", fs.Name, fs.Type, fs.Size, fs.MountPoint)
	}
	w.Flush()
	a.printer.Plain("%s", b.String())
}
