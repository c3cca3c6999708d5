package remotemap

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the counters and histograms a Client emits during its
// request/response lifecycle. remotemap only owns the collectors; the
// host process is expected to mount them behind its own promhttp.Handler.
type Metrics struct {
	exchangeDuration prometheus.Histogram
	reconnects       prometheus.Counter
	remoteFailures   prometheus.Counter
	bytesSent        prometheus.Counter
	bytesReceived    prometheus.Counter
}

// NewMetrics constructs the collector set and, if reg is non-nil,
// registers them. Pass nil to get an unregistered, purely in-process
// collector set (useful for tests that don't run a /metrics endpoint).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		exchangeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "remotemap",
			Subsystem: "client",
			Name:      "exchange_duration_seconds",
			Help:      "Duration of a request/response round trip, including reconnects.",
			Buckets:   prometheus.DefBuckets,
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remotemap",
			Subsystem: "client",
			Name:      "reconnects_total",
			Help:      "Number of times the client reopened its TCP connection.",
		}),
		remoteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remotemap",
			Subsystem: "client",
			Name:      "remote_failures_total",
			Help:      "Number of responses carrying a server-side exception.",
		}),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remotemap",
			Subsystem: "client",
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to the wire across all requests.",
		}),
		bytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "remotemap",
			Subsystem: "client",
			Name:      "bytes_received_total",
			Help:      "Total bytes read from the wire across all responses.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.exchangeDuration,
			m.reconnects,
			m.remoteFailures,
			m.bytesSent,
			m.bytesReceived,
		)
	}
	return m
}
