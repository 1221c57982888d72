package observability

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tanglegossip"

// ProtocolMetrics counts protocol traffic. Counters are plain atomics so
// workers can read deltas; Register exports them to a registry.
type ProtocolMetrics struct {
	ConnectedPeers     atomic.Int64
	HandshakesAccepted atomic.Uint64
	HandshakesRejected atomic.Uint64
	VersionMismatches  atomic.Uint64
	ShortReads         atomic.Uint64

	MessagesReceived atomic.Uint64
	InvalidMessages  atomic.Uint64
	ForwardFailures  atomic.Uint64

	IncomingTransactions atomic.Uint64
	NewTransactions      atomic.Uint64
	KnownTransactions    atomic.Uint64
	OutgoingTransactions atomic.Uint64

	MilestoneRequestsReceived   atomic.Uint64
	TransactionRequestsReceived atomic.Uint64
	RequestsSent                atomic.Uint64
	HeartbeatsReceived          atomic.Uint64
	HeartbeatsSent              atomic.Uint64
}

func NewProtocolMetrics() *ProtocolMetrics {
	return &ProtocolMetrics{}
}

// Register exports every counter on reg. Calling it twice on the same registry fails.
func (m *ProtocolMetrics) Register(reg prometheus.Registerer) error {
	counters := []struct {
		subsystem string
		name      string
		help      string
		value     *atomic.Uint64
	}{
		{"handshake", "accepted_total", "Handshakes accepted.", &m.HandshakesAccepted},
		{"handshake", "rejected_total", "Handshakes rejected.", &m.HandshakesRejected},
		{"handshake", "version_mismatch_total", "Handshakes without a common protocol version.", &m.VersionMismatches},
		{"receiver", "short_reads_total", "Reads dropped for being shorter than a header.", &m.ShortReads},
		{"receiver", "messages_total", "Complete messages reassembled.", &m.MessagesReceived},
		{"receiver", "invalid_messages_total", "Messages dropped after failing to decode.", &m.InvalidMessages},
		{"receiver", "forward_failures_total", "Messages that could not be forwarded to a worker.", &m.ForwardFailures},
		{"transactions", "incoming_total", "Transaction broadcasts received.", &m.IncomingTransactions},
		{"transactions", "new_total", "Previously unknown transactions stored.", &m.NewTransactions},
		{"transactions", "known_total", "Transactions already present in the tangle.", &m.KnownTransactions},
		{"transactions", "outgoing_total", "Transaction broadcasts sent.", &m.OutgoingTransactions},
		{"requests", "milestone_received_total", "Milestone requests received.", &m.MilestoneRequestsReceived},
		{"requests", "transaction_received_total", "Transaction requests received.", &m.TransactionRequestsReceived},
		{"requests", "sent_total", "Requests sent to peers.", &m.RequestsSent},
		{"heartbeat", "received_total", "Heartbeats received.", &m.HeartbeatsReceived},
		{"heartbeat", "sent_total", "Heartbeats sent.", &m.HeartbeatsSent},
	}
	for _, c := range counters {
		v := c.value
		collector := prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: c.subsystem,
			Name:      c.name,
			Help:      c.help,
		}, func() float64 { return float64(v.Load()) })
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	peers := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "peers",
		Name:      "connected",
		Help:      "Peers with a completed handshake.",
	}, func() float64 { return float64(m.ConnectedPeers.Load()) })
	return reg.Register(peers)
}

// HTTPMetrics records ops server requests.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total HTTP requests.",
			},
			[]string{"node", "method", "path", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"node", "method", "path", "status"},
		),
	}
	if err := reg.Register(m.requests); err != nil {
		return nil, err
	}
	if err := reg.Register(m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *HTTPMetrics) RecordRequest(node, method, path string, status int, duration time.Duration) {
	statusLabel := strconv.Itoa(status)
	m.requests.WithLabelValues(node, method, path, statusLabel).Inc()
	m.duration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
