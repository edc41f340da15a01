package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks stream client activity. A nil *Metrics records nothing.
type Metrics struct {
	connectionsTotal  prometheus.Counter
	connectionActive  prometheus.Gauge
	reconnectAttempts prometheus.Counter
	messagesReceived  *prometheus.CounterVec
	decodeErrors      prometheus.Counter
	historyEvictions  prometheus.Counter
}

// NewMetrics creates the stream metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smiactl",
			Subsystem: "stream",
			Name:      "connections_total",
			Help:      "Total number of established stream connections",
		}),
		connectionActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smiactl",
			Subsystem: "stream",
			Name:      "connection_active",
			Help:      "1 while the stream connection is open",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smiactl",
			Subsystem: "stream",
			Name:      "reconnect_attempts_total",
			Help:      "Total number of scheduled reconnection attempts",
		}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smiactl",
			Subsystem: "stream",
			Name:      "messages_received_total",
			Help:      "Total stream messages received, by normalized severity",
		}, []string{"severity"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smiactl",
			Subsystem: "stream",
			Name:      "decode_errors_total",
			Help:      "Total stream messages that could not be decoded",
		}),
		historyEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smiactl",
			Subsystem: "stream",
			Name:      "history_evictions_total",
			Help:      "Total log entries evicted from the bounded history",
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.connectionsTotal, m.connectionActive, m.reconnectAttempts,
		m.messagesReceived, m.decodeErrors, m.historyEvictions,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) connected() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionActive.Set(1)
}

func (m *Metrics) disconnected() {
	if m == nil {
		return
	}
	m.connectionActive.Set(0)
}

func (m *Metrics) reconnectScheduled() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

func (m *Metrics) received(severity Severity) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(string(severity)).Inc()
}

func (m *Metrics) decodeFailed() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *Metrics) evicted() {
	if m == nil {
		return
	}
	m.historyEvictions.Inc()
}
