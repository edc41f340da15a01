package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeConn is an in-memory connection. Reads block until a message is pushed
// or the connection is closed.
type fakeConn struct {
	reads     chan readResult
	closed    chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	written  []string
	controls [][]byte
}

type readResult struct {
	data []byte
	err  error
}

func newFakeConn() *fakeConn {
	return &fakeConn{reads: make(chan readResult, 16), closed: make(chan struct{})}
}

func (c *fakeConn) push(msg string) { c.reads <- readResult{data: []byte(msg)} }
func (c *fakeConn) fail(err error)  { c.reads <- readResult{err: err} }

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case r := <-c.reads:
		return websocket.TextMessage, r.data, r.err
	case <-c.closed:
		return 0, nil, errors.New("use of closed network connection")
	}
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	if c.isClosed() {
		return errors.New("closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, string(data))
	return nil
}

func (c *fakeConn) WriteControl(_ int, data []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controls = append(c.controls, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) writes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.written...)
}

// mockDialer hands out connections from DialFunc and counts calls.
type mockDialer struct {
	DialFunc func(ctx context.Context) (Conn, error)
	calls    atomic.Int32
}

func (d *mockDialer) DialContext(ctx context.Context, _ string, _ http.Header) (Conn, *http.Response, error) {
	d.calls.Add(1)
	conn, err := d.DialFunc(ctx)
	return conn, nil, err
}

func dialConns(conns ...*fakeConn) *mockDialer {
	var mu sync.Mutex
	return &mockDialer{DialFunc: func(context.Context) (Conn, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(conns) == 0 {
			return nil, errors.New("connection refused")
		}
		next := conns[0]
		conns = conns[1:]
		return next, nil
	}}
}

func refusingDialer() *mockDialer {
	return &mockDialer{DialFunc: func(context.Context) (Conn, error) {
		return nil, errors.New("connection refused")
	}}
}

// fakeScheduler records timers instead of running them.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

type fakeTimer struct {
	sched   *fakeScheduler
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	timer := &fakeTimer{sched: s, delay: d, fn: f}
	s.timers = append(s.timers, timer)
	return timer
}

func (s *fakeScheduler) scheduled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// fireNext runs the oldest pending timer and reports whether one ran.
func (s *fakeScheduler) fireNext() bool {
	s.mu.Lock()
	var next *fakeTimer
	for _, timer := range s.timers {
		if !timer.stopped && !timer.fired {
			next = timer
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	s.mu.Unlock()

	if next == nil {
		return false
	}
	next.fn()
	return true
}

func newTestClient(dialer Dialer, sched *fakeScheduler, maxAttempts int) *Client {
	return NewClient(Options{
		URL:                  "ws://test/api/ws",
		MaxLogs:              50,
		ReconnectInterval:    time.Second,
		MaxReconnectAttempts: maxAttempts,
		Dialer:               dialer,
		AfterFunc:            sched.AfterFunc,
		Logger:               zerolog.Nop(),
	})
}

func lastEntry(c *Client) LogEntry {
	logs := c.Logs()
	if len(logs) == 0 {
		return LogEntry{}
	}
	return logs[len(logs)-1]
}

func TestClientInitialState(t *testing.T) {
	c := NewClient(Options{Logger: zerolog.Nop()})
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, DefaultURL, c.URL())
	assert.Empty(t, c.Logs())
	assert.False(t, c.Send("hello"))
	_, ok := c.LastMessage()
	assert.False(t, ok)
}

func TestClientConnectAndReceive(t *testing.T) {
	conn := newFakeConn()
	sched := &fakeScheduler{}
	c := newTestClient(dialConns(conn), sched, 5)
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)

	first := c.Logs()[0]
	assert.Equal(t, SeveritySystem, first.Severity)
	assert.Equal(t, SourceWebsocket, first.Source)

	conn.push(`{"type":"ERROR","command":"MOUNT","message":"boom"}`)
	require.Eventually(t, func() bool { return len(c.Logs()) == 2 }, waitFor, tick)

	entry := lastEntry(c)
	assert.Equal(t, SeverityError, entry.Severity)
	assert.Equal(t, "MOUNT", entry.Source)
	assert.Equal(t, "boom", entry.Message)

	last, ok := c.LastMessage()
	require.True(t, ok)
	assert.Equal(t, entry.ID, last.ID)
}

func TestClientConnectIsNoopWhileConnected(t *testing.T) {
	conn := newFakeConn()
	dialer := dialConns(conn, newFakeConn())
	c := newTestClient(dialer, &fakeScheduler{}, 5)
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)
	c.Connect()
	c.Connect()

	assert.Equal(t, int32(1), dialer.calls.Load())
}

func TestClientDecodeFailureKeepsConnection(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(dialConns(conn), &fakeScheduler{}, 5)
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)

	conn.push(`{"time":"not-a-time","message":"x"}`)
	require.Eventually(t, func() bool { return len(c.Logs()) == 2 }, waitFor, tick)

	entry := lastEntry(c)
	assert.Equal(t, SeverityError, entry.Severity)
	payload, ok := entry.Payload.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, `{"time":"not-a-time","message":"x"}`, payload["originalMessage"])
	assert.Equal(t, StateConnected, c.State())

	conn.push("still alive")
	require.Eventually(t, func() bool { return lastEntry(c).Message == "still alive" }, waitFor, tick)
}

func TestClientAbnormalCloseSchedulesRetry(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	sched := &fakeScheduler{}
	c := newTestClient(dialConns(first, second), sched, 5)
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)

	first.fail(&websocket.CloseError{Code: websocket.CloseGoingAway, Text: "server restart"})
	require.Eventually(t, c.RetryPending, waitFor, tick)

	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, c.Attempts())

	logs := c.Logs()
	require.Len(t, logs, 3)
	assert.Equal(t, SeverityWarning, logs[1].Severity)
	assert.Contains(t, logs[1].Message, "code 1001")
	assert.Contains(t, logs[1].Message, "server restart")
	assert.Equal(t, SeverityInfo, logs[2].Severity)
	assert.Contains(t, logs[2].Message, "attempt 1/5")

	sched.mu.Lock()
	assert.Equal(t, time.Second, sched.timers[0].delay)
	sched.mu.Unlock()

	require.True(t, sched.fireNext())
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)
	assert.Equal(t, 0, c.Attempts())
	assert.False(t, c.RetryPending())
}

func TestClientTransportErrorThenClose(t *testing.T) {
	conn := newFakeConn()
	sched := &fakeScheduler{}
	c := newTestClient(dialConns(conn), sched, 5)
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)

	conn.fail(errors.New("connection reset by peer"))
	require.Eventually(t, c.RetryPending, waitFor, tick)

	logs := c.Logs()
	require.Len(t, logs, 4)
	assert.Equal(t, SeverityError, logs[1].Severity)
	assert.Contains(t, logs[1].Message, "connection reset by peer")
	assert.Equal(t, SeverityWarning, logs[2].Severity)
	assert.Contains(t, logs[2].Message, "code 1006")
	assert.Equal(t, SeverityInfo, logs[3].Severity)
	assert.Equal(t, "connection reset by peer", c.LastError())
	assert.Equal(t, 1, sched.scheduled())
}

func TestClientRetryBudgetExhausted(t *testing.T) {
	const maxAttempts = 3
	dialer := refusingDialer()
	sched := &fakeScheduler{}
	c := newTestClient(dialer, sched, maxAttempts)
	defer c.Close()

	c.Connect()
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		require.Eventually(t, func() bool { return sched.scheduled() == attempt && c.RetryPending() }, waitFor, tick)
		assert.Equal(t, attempt, c.Attempts())
		require.True(t, sched.fireNext())
	}

	require.Eventually(t, func() bool {
		return strings.Contains(lastEntry(c).Message, "maximum reconnect attempts reached")
	}, waitFor, tick)
	assert.Equal(t, StateError, c.State())
	assert.False(t, c.RetryPending())
	assert.Equal(t, maxAttempts, sched.scheduled())
	assert.Equal(t, int32(maxAttempts+1), dialer.calls.Load())

	final := lastEntry(c)
	assert.Equal(t, SeverityError, final.Severity)
	assert.Contains(t, final.Message, "maximum reconnect attempts reached (3)")
	assert.False(t, sched.fireNext())
}

func TestClientReconnectRestoresBudget(t *testing.T) {
	conn := newFakeConn()
	var refuse atomic.Bool
	refuse.Store(true)
	dialer := &mockDialer{DialFunc: func(context.Context) (Conn, error) {
		if refuse.Load() {
			return nil, errors.New("connection refused")
		}
		return conn, nil
	}}
	sched := &fakeScheduler{}
	c := newTestClient(dialer, sched, 1)
	defer c.Close()

	c.Connect()
	require.Eventually(t, c.RetryPending, waitFor, tick)
	require.True(t, sched.fireNext())
	require.Eventually(t, func() bool {
		return strings.Contains(lastEntry(c).Message, "maximum reconnect attempts reached")
	}, waitFor, tick)
	require.Equal(t, StateError, c.State())

	refuse.Store(false)
	c.Reconnect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)
	assert.Equal(t, 0, c.Attempts())
	assert.Empty(t, c.LastError())
}

func TestClientManualDisconnectNeverRetries(t *testing.T) {
	conn := newFakeConn()
	sched := &fakeScheduler{}
	c := newTestClient(dialConns(conn), sched, 5)
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)

	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())
	assert.True(t, conn.isClosed())

	conn.mu.Lock()
	require.Len(t, conn.controls, 1)
	assert.Contains(t, string(conn.controls[0]), manualCloseReason)
	conn.mu.Unlock()

	entry := lastEntry(c)
	assert.Equal(t, SeverityWarning, entry.Severity)
	assert.Contains(t, entry.Message, "code 1000")

	assert.Never(t, func() bool {
		return sched.scheduled() > 0 || c.State() != StateDisconnected
	}, 100*time.Millisecond, tick)
}

func TestClientDisconnectCancelsPendingRetry(t *testing.T) {
	sched := &fakeScheduler{}
	c := newTestClient(refusingDialer(), sched, 5)
	defer c.Close()

	c.Connect()
	require.Eventually(t, c.RetryPending, waitFor, tick)

	c.Disconnect()
	assert.False(t, c.RetryPending())
	assert.False(t, sched.fireNext())
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClientStaleTimerIsIgnored(t *testing.T) {
	dialer := refusingDialer()
	sched := &fakeScheduler{}
	c := newTestClient(dialer, sched, 5)
	defer c.Close()

	c.Connect()
	require.Eventually(t, c.RetryPending, waitFor, tick)

	sched.mu.Lock()
	stale := sched.timers[0].fn
	sched.mu.Unlock()

	c.Disconnect()
	stale()

	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, int32(1), dialer.calls.Load())
}

func TestClientSend(t *testing.T) {
	conn := newFakeConn()
	c := newTestClient(dialConns(conn), &fakeScheduler{}, 5)
	defer c.Close()

	assert.False(t, c.Send("too early"))

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)

	assert.True(t, c.Send("ping"))
	assert.True(t, c.Send(map[string]string{"type": "subscribe"}))
	assert.False(t, c.Send(func() {}))

	writes := conn.writes()
	require.Len(t, writes, 2)
	assert.Equal(t, "ping", writes[0])
	assert.JSONEq(t, `{"type":"subscribe"}`, writes[1])
}

func TestClientAddLogAndClear(t *testing.T) {
	var seen []LogEntry
	c := NewClient(Options{
		MaxLogs: 2,
		Logger:  zerolog.Nop(),
		OnEntry: func(e LogEntry) { seen = append(seen, e) },
	})

	c.AddLog(SeveritySuccess, "MKDISK", "one", nil)
	c.AddLog(SeverityInfo, "MKDISK", "two", nil)
	c.AddLog(SeverityInfo, "MKDISK", "three", nil)

	assert.Equal(t, []string{"two", "three"}, messages(c.Logs()))
	assert.Equal(t, []string{"three"}, messages(c.RecentLogs(1)))
	assert.Len(t, seen, 3)

	c.ClearLogs()
	assert.Empty(t, c.Logs())
}

func TestClientMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	conn := newFakeConn()
	c := NewClient(Options{
		Dialer:    dialConns(conn),
		AfterFunc: (&fakeScheduler{}).AfterFunc,
		Logger:    zerolog.Nop(),
		Metrics:   metrics,
	})
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return c.State() == StateConnected }, waitFor, tick)
	conn.push("[1700000000] [SUCCESS] MKDISK: created")
	require.Eventually(t, func() bool { return len(c.Logs()) == 2 }, waitFor, tick)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.connectionsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.connectionActive))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.messagesReceived.WithLabelValues("SUCCESS")))

	_, err = NewMetrics(reg)
	assert.Error(t, err, "registering twice should fail")
}

func TestClientAgainstWebsocketServer(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	received := make(chan string, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"time":"1700000000","type":"SUCCESS","command":"MKDISK","message":"disk created"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte("[1700000001] [WARNING] FDISK: partition almost full"))

		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
	}))
	defer server.Close()

	sched := &fakeScheduler{}
	c := NewClient(Options{
		URL:       "ws" + strings.TrimPrefix(server.URL, "http"),
		AfterFunc: sched.AfterFunc,
		Logger:    zerolog.Nop(),
	})
	defer c.Close()

	c.Connect()
	require.Eventually(t, func() bool { return len(c.Logs()) >= 3 }, waitFor, tick)

	logs := c.Logs()
	assert.Equal(t, SeveritySystem, logs[0].Severity)
	assert.Equal(t, "disk created", logs[1].Message)
	assert.Equal(t, "2023-11-14T22:13:20.000Z", logs[1].Timestamp)
	assert.Equal(t, "FDISK", logs[2].Source)
	assert.Equal(t, SeverityWarning, logs[2].Severity)

	require.True(t, c.Send("ack"))
	select {
	case msg := <-received:
		assert.Equal(t, "ack", msg)
	case <-time.After(waitFor):
		t.Fatal("server never received the message")
	}

	require.Eventually(t, c.RetryPending, waitFor, tick)
	assert.Contains(t, c.Logs()[3].Message, "code 1001")
}
