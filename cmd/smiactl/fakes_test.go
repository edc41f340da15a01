package main

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"smiactl/internal/api"
	"smiactl/internal/config"
	"smiactl/internal/stream"
	"smiactl/internal/theme"
)

// mockBackend records executed commands and delegates to the Func fields.
type mockBackend struct {
	ExecuteFunc     func(ctx context.Context, command string) (*api.Response, error)
	HealthFunc      func(ctx context.Context) (api.Health, string, error)
	FileSystemsFunc func(ctx context.Context) ([]api.FileSystem, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockBackend) Execute(ctx context.Context, command string) (*api.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, command)
	m.mu.Unlock()
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(ctx, command)
	}
	return &api.Response{Message: "ok", Status: "success"}, nil
}

func (m *mockBackend) Health(ctx context.Context) (api.Health, string, error) {
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return api.Health{Status: "ok"}, "", nil
}

func (m *mockBackend) FileSystems(ctx context.Context) ([]api.FileSystem, error) {
	if m.FileSystemsFunc != nil {
		return m.FileSystemsFunc(ctx)
	}
	return nil, nil
}

func (m *mockBackend) BaseURL() string { return "http://test/api" }

func (m *mockBackend) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// mockStream is an in-memory logStream.
type mockStream struct {
	state      stream.ConnectionState
	logs       []stream.LogEntry
	attempts   int
	lastError  string
	lastMsg    *stream.LogEntry
	connects   int
	disconnect int
	reconnects int
	closed     bool
}

func (m *mockStream) Connect()    { m.connects++; m.state = stream.StateConnecting }
func (m *mockStream) Disconnect() { m.disconnect++; m.state = stream.StateDisconnected }
func (m *mockStream) Reconnect()  { m.reconnects++; m.state = stream.StateConnecting }
func (m *mockStream) Close()      { m.closed = true }

func (m *mockStream) State() stream.ConnectionState { return m.state }
func (m *mockStream) Attempts() int                 { return m.attempts }
func (m *mockStream) RetryPending() bool            { return false }
func (m *mockStream) Logs() []stream.LogEntry       { return m.logs }
func (m *mockStream) ClearLogs()                    { m.logs = nil }
func (m *mockStream) LastError() string             { return m.lastError }
func (m *mockStream) URL() string                   { return "ws://test/api/ws" }

func (m *mockStream) LastMessage() (stream.LogEntry, bool) {
	if m.lastMsg == nil {
		return stream.LogEntry{}, false
	}
	return *m.lastMsg, true
}

func (m *mockStream) RecentLogs(n int) []stream.LogEntry {
	if n >= len(m.logs) {
		return m.logs
	}
	return m.logs[len(m.logs)-n:]
}

// newTestApp wires an app to mocks and a colorless buffer. Script delays are
// recorded instead of slept.
func newTestApp(t *testing.T) (*app, *bytes.Buffer, *mockBackend, *mockStream) {
	t.Helper()
	var buf bytes.Buffer
	backend := &mockBackend{}
	logs := &mockStream{state: stream.StateDisconnected}
	a := newApp(config.DefaultConfig(), backend, logs, theme.NewPrinter(&buf, theme.DisabledColorScheme()), zerolog.Nop())
	a.wait = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return a, &buf, backend, logs
}
