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

package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ConnectionState is the lifecycle state of the stream connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateError        ConnectionState = "error"
)

const (
	DefaultURL                  = "ws://localhost:8080/api/ws"
	DefaultMaxLogs              = 1000
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second

	manualCloseReason = "Manual disconnect"
)

// Options configures a Client. Zero values take the defaults above; a
// negative MaxReconnectAttempts disables automatic reconnection.
type Options struct {
	URL                  string
	Header               http.Header
	MaxLogs              int
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int

	Dialer     Dialer
	AfterFunc  AfterFunc
	Normalizer *Normalizer
	Logger     zerolog.Logger
	Metrics    *Metrics

	// OnEntry is called for every entry appended to the history. It runs
	// while the client lock is held and must not call back into the client.
	OnEntry func(LogEntry)
}

// Client consumes the server log stream, keeps a bounded history and
// reconnects on abnormal closes until the retry budget is spent.
type Client struct {
	opts Options

	mu          sync.Mutex
	state       ConnectionState
	history     *History
	attempts    int
	manualClose bool
	closed      bool
	generation  uint64
	conn        Conn
	cancelDial  context.CancelFunc
	retryTimer  Timer
	lastMessage *LogEntry
	lastError   string

	wg sync.WaitGroup
}

// NewClient creates a disconnected client.
func NewClient(opts Options) *Client {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.MaxLogs <= 0 {
		opts.MaxLogs = DefaultMaxLogs
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = DefaultReconnectInterval
	}
	if opts.MaxReconnectAttempts < 0 {
		opts.MaxReconnectAttempts = 0
	} else if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer(DefaultHandshakeTimeout)
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = realAfterFunc
	}
	if opts.Normalizer == nil {
		opts.Normalizer = NewNormalizer()
	}
	return &Client{
		opts:    opts,
		state:   StateDisconnected,
		history: NewHistory(opts.MaxLogs),
	}
}

// URL returns the stream endpoint.
func (c *Client) URL() string {
	return c.opts.URL
}

// Connect opens the stream unless it is already connected or connecting.
func (c *Client) Connect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manualClose = false
	c.connectLocked()
}

func (c *Client) connectLocked() {
	if c.closed || c.state == StateConnected || c.state == StateConnecting {
		return
	}
	c.stopRetryLocked()
	c.generation++
	gen := c.generation

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.lastError = ""
	c.state = StateConnecting
	c.opts.Logger.Debug().Str("url", c.opts.URL).Uint64("generation", gen).Msg("connecting to log stream")

	c.wg.Add(1)
	go c.run(ctx, gen)
}

// Disconnect closes the stream and suppresses automatic reconnection.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manualClose = true
	c.teardownLocked()
}

// Reconnect drops the current connection, resets the retry budget and
// connects again.
func (c *Client) Reconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	c.manualClose = false
	c.attempts = 0
	c.connectLocked()
}

// Close disconnects and waits for the connection goroutine to exit. The
// client cannot be reused afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	c.closed = true
	c.manualClose = true
	c.teardownLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

// teardownLocked invalidates the current connection so its pending events
// are discarded.
func (c *Client) teardownLocked() {
	c.stopRetryLocked()
	c.generation++
	c.releaseDialLocked()
	if c.conn != nil {
		closeGracefully(c.conn, websocket.CloseNormalClosure, manualCloseReason)
		c.conn = nil
		c.opts.Metrics.disconnected()
		c.appendLocked(c.newEntry(SeverityWarning, SourceWebsocket,
			closeMessage(websocket.CloseNormalClosure, manualCloseReason), nil))
	}
	c.state = StateDisconnected
}

func (c *Client) releaseDialLocked() {
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
}

func (c *Client) stopRetryLocked() {
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
}

func (c *Client) run(ctx context.Context, gen uint64) {
	defer c.wg.Done()

	conn, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		c.handleError(gen, err)
		c.handleClose(gen, websocket.CloseAbnormalClosure, "")
		return
	}
	if !c.handleOpen(gen, conn) {
		_ = conn.Close()
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				c.handleClose(gen, closeErr.Code, closeErr.Text)
			} else {
				c.handleError(gen, err)
				c.handleClose(gen, websocket.CloseAbnormalClosure, "")
			}
			_ = conn.Close()
			return
		}
		c.handleMessage(gen, data)
	}
}

func (c *Client) handleOpen(gen uint64, conn Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.conn = conn
	c.releaseDialLocked()
	c.attempts = 0
	c.lastError = ""
	c.state = StateConnected
	c.stopRetryLocked()
	c.opts.Metrics.connected()
	c.opts.Logger.Info().Str("url", c.opts.URL).Msg("log stream connected")
	c.appendLocked(c.newEntry(SeveritySystem, SourceWebsocket, "stream connection established", nil))
	return true
}

func (c *Client) handleMessage(gen uint64, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}

	entry, err := c.opts.Normalizer.Normalize(data)
	if err != nil {
		c.opts.Metrics.decodeFailed()
		c.opts.Logger.Warn().Err(err).Msg("failed to decode stream message")
		c.appendLocked(c.newEntry(SeverityError, SourceWebsocket,
			fmt.Sprintf("error processing message: %v", err),
			map[string]string{"originalMessage": string(data), "error": err.Error()}))
		return
	}
	c.opts.Metrics.received(entry.Severity)
	c.lastMessage = &entry
	c.appendLocked(entry)
}

func (c *Client) handleError(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	c.state = StateError
	c.lastError = err.Error()
	c.opts.Logger.Warn().Err(err).Msg("log stream error")
	c.appendLocked(c.newEntry(SeverityError, SourceWebsocket, fmt.Sprintf("stream connection error: %v", err), nil))
}

func (c *Client) handleClose(gen uint64, code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return
	}
	if c.conn != nil {
		c.conn = nil
		c.opts.Metrics.disconnected()
	}
	c.releaseDialLocked()
	c.state = StateDisconnected
	c.appendLocked(c.newEntry(SeverityWarning, SourceWebsocket, closeMessage(code, reason), nil))

	if c.manualClose || c.closed {
		return
	}

	limit := c.opts.MaxReconnectAttempts
	if c.attempts < limit {
		c.attempts++
		c.opts.Metrics.reconnectScheduled()
		c.opts.Logger.Debug().Int("attempt", c.attempts).Int("max", limit).Msg("scheduling reconnect")
		c.appendLocked(c.newEntry(SeverityInfo, SourceWebsocket,
			fmt.Sprintf("reconnecting... (attempt %d/%d)", c.attempts, limit), nil))
		c.retryTimer = c.opts.AfterFunc(c.opts.ReconnectInterval, func() { c.retry(gen) })
		return
	}

	c.state = StateError
	c.lastError = "maximum reconnect attempts reached"
	c.opts.Logger.Error().Int("max", limit).Msg("giving up on log stream")
	c.appendLocked(c.newEntry(SeverityError, SourceWebsocket,
		fmt.Sprintf("maximum reconnect attempts reached (%d)", limit), nil))
}

func (c *Client) retry(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation || c.manualClose || c.closed {
		return
	}
	c.retryTimer = nil
	c.connectLocked()
}

func closeMessage(code int, reason string) string {
	if reason == "" {
		return fmt.Sprintf("stream connection closed (code %d)", code)
	}
	return fmt.Sprintf("stream connection closed (code %d, reason: %s)", code, reason)
}

// Send writes a message while connected. Strings and byte slices are sent as
// is, anything else as JSON. It reports whether the message was written.
func (c *Client) Send(msg any) bool {
	var data []byte
	switch v := msg.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return false
		}
		data = encoded
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateConnected || c.conn == nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.opts.Logger.Warn().Err(err).Msg("failed to send stream message")
		return false
	}
	return true
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts returns the number of reconnects scheduled since the last open.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// RetryPending reports whether a reconnect timer is scheduled.
func (c *Client) RetryPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryTimer != nil
}

// Logs returns a copy of the history, oldest first.
func (c *Client) Logs() []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Snapshot()
}

// RecentLogs returns a copy of the newest n entries, oldest first.
func (c *Client) RecentLogs(n int) []LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Last(n)
}

// LastMessage returns the most recent entry decoded from the stream.
func (c *Client) LastMessage() (LogEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastMessage == nil {
		return LogEntry{}, false
	}
	return *c.lastMessage, true
}

// LastError returns the last connection error, or "".
func (c *Client) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// ClearLogs empties the history.
func (c *Client) ClearLogs() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history.Clear()
}

// AddLog appends a locally produced entry to the history.
func (c *Client) AddLog(severity Severity, source, message string, payload any) LogEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.newEntry(severity, source, message, payload)
	c.appendLocked(entry)
	return entry
}

func (c *Client) newEntry(severity Severity, source, message string, payload any) LogEntry {
	n := c.opts.Normalizer
	return n.entry(n.now(), severity, source, message, payload)
}

func (c *Client) appendLocked(entry LogEntry) {
	if c.history.Append(entry) {
		c.opts.Metrics.evicted()
	}
	if c.opts.OnEntry != nil {
		c.opts.OnEntry(entry)
	}
}
