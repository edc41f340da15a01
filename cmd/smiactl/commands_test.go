package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"smiactl/internal/api"
	"smiactl/internal/stream"
)

func TestGetAvailableCommands(t *testing.T) {
	commands := getAvailableCommands()
	seen := map[string]bool{}
	for _, cmd := range commands {
		if cmd.Name == "" || cmd.Description == "" {
			t.Errorf("command %+v is incomplete", cmd)
		}
		if seen[cmd.Name] {
			t.Errorf("duplicate command %s", cmd.Name)
		}
		seen[cmd.Name] = true
	}
	for _, want := range []string{"help", "commands", "logs", "clear", "status", "connect", "disconnect", "reconnect", "script", "sample", "health", "quit", "exit"} {
		if !seen[want] {
			t.Errorf("missing /%s", want)
		}
	}
}

func TestHandleCommandQuit(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	for _, input := range []string{"/quit", "/exit", "/QUIT", "  /exit  "} {
		if !a.handleCommand(context.Background(), input) {
			t.Errorf("%q should quit", input)
		}
	}
	if a.handleCommand(context.Background(), "/help") {
		t.Error("/help should not quit")
	}
}

func TestHandleCommandUnknown(t *testing.T) {
	a, buf, _, _ := newTestApp(t)
	a.handleCommand(context.Background(), "/format")
	if !strings.Contains(buf.String(), "Unknown command: /format") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestHandleCommandHelp(t *testing.T) {
	a, buf, _, _ := newTestApp(t)

	a.handleCommand(context.Background(), "/help")
	if !strings.Contains(buf.String(), "/logs [n]") || !strings.Contains(buf.String(), "/script <file.smia>") {
		t.Errorf("expected slash command list, got %q", buf.String())
	}

	buf.Reset()
	a.handleCommand(context.Background(), "/help MKDISK")
	out := buf.String()
	if !strings.Contains(out, "mkdisk - ") || !strings.Contains(out, "-size (number, required)") {
		t.Errorf("expected mkdisk usage, got %q", out)
	}

	buf.Reset()
	a.handleCommand(context.Background(), "/help format")
	if !strings.Contains(buf.String(), "unknown command: format") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestHandleCommandCommands(t *testing.T) {
	a, buf, _, _ := newTestApp(t)
	a.handleCommand(context.Background(), "/commands")
	out := buf.String()
	if !strings.Contains(out, "mount -path=<string> -name=<string>") {
		t.Errorf("expected mount usage, got %q", out)
	}
	if !strings.Contains(out, "mounted") || !strings.Contains(out, "rep") {
		t.Errorf("expected every command, got %q", out)
	}
}

func TestHandleCommandLogs(t *testing.T) {
	a, buf, _, logs := newTestApp(t)

	a.handleCommand(context.Background(), "/logs")
	if !strings.Contains(buf.String(), "No log entries") {
		t.Errorf("unexpected output %q", buf.String())
	}

	for _, msg := range []string{"first", "second", "third"} {
		logs.logs = append(logs.logs, stream.LogEntry{Severity: stream.SeverityInfo, Source: "MKDISK", Message: msg})
	}
	buf.Reset()
	a.handleCommand(context.Background(), "/logs 2")
	out := buf.String()
	if strings.Contains(out, "first") || !strings.Contains(out, "MKDISK: second") || !strings.Contains(out, "MKDISK: third") {
		t.Errorf("expected the last two entries, got %q", out)
	}

	buf.Reset()
	a.handleCommand(context.Background(), "/logs zero")
	if !strings.Contains(buf.String(), "Invalid count: zero") {
		t.Errorf("unexpected output %q", buf.String())
	}

	a.handleCommand(context.Background(), "/clear")
	if len(logs.logs) != 0 {
		t.Error("expected /clear to empty the history")
	}
}

func TestHandleCommandConnection(t *testing.T) {
	a, buf, _, logs := newTestApp(t)

	a.handleCommand(context.Background(), "/connect")
	a.handleCommand(context.Background(), "/disconnect")
	a.handleCommand(context.Background(), "/reconnect")
	if logs.connects != 1 || logs.disconnect != 1 || logs.reconnects != 1 {
		t.Errorf("unexpected calls %+v", logs)
	}

	buf.Reset()
	a.handleCommand(context.Background(), "/status")
	if strings.Contains(buf.String(), "Last message") {
		t.Errorf("no last message expected before any stream message, got %q", buf.String())
	}

	logs.lastError = "maximum reconnect attempts reached"
	logs.attempts = 5
	logs.lastMsg = &stream.LogEntry{Severity: stream.SeveritySuccess, Source: "MKDISK", Message: "disk created"}
	buf.Reset()
	a.handleCommand(context.Background(), "/status")
	out := buf.String()
	for _, want := range []string{"http://test/api", "ws://test/api/ws", "connecting", "maximum reconnect attempts reached", "Last message", "SUCCESS MKDISK: disk created"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in status %q", want, out)
		}
	}
}

func TestHandleCommandScript(t *testing.T) {
	a, buf, backend, _ := newTestApp(t)

	a.handleCommand(context.Background(), "/script")
	if !strings.Contains(buf.String(), "Usage: /script <file.smia>") {
		t.Errorf("unexpected output %q", buf.String())
	}

	path := writeScript(t, "logout\nrmdisk -path=/home/disk1.mia\n")
	buf.Reset()
	a.handleCommand(context.Background(), `/script "`+path+`"`)
	if strings.Join(backend.Calls(), ",") != "logout,rmdisk -path=/home/disk1.mia" {
		t.Errorf("unexpected calls %v", backend.Calls())
	}
	if !strings.Contains(buf.String(), "2 succeeded, 0 failed") {
		t.Errorf("expected report, got %q", buf.String())
	}

	buf.Reset()
	a.handleCommand(context.Background(), "/sample")
	if !strings.Contains(buf.String(), "mkdisk -size=3000") {
		t.Errorf("expected sample script, got %q", buf.String())
	}
}

func TestHandleCommandHealth(t *testing.T) {
	a, buf, backend, _ := newTestApp(t)
	backend.HealthFunc = func(ctx context.Context) (api.Health, string, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected a request deadline")
		}
		return api.Health{Status: "ok", Timestamp: time.Now(), Version: "1.2.0"}, "Server running", nil
	}

	a.handleCommand(context.Background(), "/health")
	out := buf.String()
	if !strings.Contains(out, "✓ Server running (ok") || !strings.Contains(out, "version 1.2.0") {
		t.Errorf("unexpected output %q", out)
	}

	backend.HealthFunc = func(ctx context.Context) (api.Health, string, error) {
		return api.Health{}, "", api.Error{Kind: api.KindConnection, Title: "Connection error", Message: "connection refused"}
	}
	buf.Reset()
	a.handleCommand(context.Background(), "/health")
	if !strings.Contains(buf.String(), "✗ Connection error: connection refused") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestHandleCommandFileSystems(t *testing.T) {
	a, buf, backend, _ := newTestApp(t)

	a.handleCommand(context.Background(), "/filesystems")
	if !strings.Contains(buf.String(), "No file systems") {
		t.Errorf("unexpected output %q", buf.String())
	}

	backend.FileSystemsFunc = func(ctx context.Context) ([]api.FileSystem, error) {
		return []api.FileSystem{{Name: "A1", Type: "EXT2", Size: 314572800, MountPoint: "/"}}, nil
	}
	buf.Reset()
	a.handleCommand(context.Background(), "/fs")
	out := buf.String()
	if !strings.Contains(out, "A1") || !strings.Contains(out, "EXT2") || !strings.Contains(out, "314572800") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestGetCommandCompleter(t *testing.T) {
	a, _, _, _ := newTestApp(t)
	completer := getCommandCompleter(a.registry())

	names := map[string]bool{}
	for _, child := range completer.GetChildren() {
		names[strings.TrimSpace(string(child.GetName()))] = true
	}
	for _, want := range []string{"/help", "/script", "/quit", "mkdisk", "mounted"} {
		if !names[want] {
			t.Errorf("completer is missing %s", want)
		}
	}
}
