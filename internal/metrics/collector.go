// Package metrics implements the Prometheus instrumentation surface for the
// session manager. This is purely ambient: ingested counts never feed back
// into a routing decision (path quality metrics are a spec.md Non-goal,
// Section 1), unlike the metric_be field on the wire which the manager
// always emits as "unknown" (spec.md Section 6).
//
// Grounded on dantte-lp-gobfd's bfdmetrics.Collector
// (internal/metrics/collector.go): namespace/subsystem constants, a struct
// of *prometheus.GaugeVec/*prometheus.CounterVec fields built by a
// newMetrics helper and registered in NewCollector.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "cored"
	subsystem = "core"
)

const labelReason = "reason"

// Collector holds every Prometheus metric the session manager exposes.
type Collector struct {
	// Sessions tracks the number of currently live sessions.
	Sessions prometheus.Gauge

	// SessionsCreated counts every session created since startup.
	SessionsCreated prometheus.Counter

	// SessionsEnded counts every session torn down since startup.
	SessionsEnded prometheus.Counter

	// PacketsDropped counts dropped packets, labeled by the drop reason
	// (spec.md Section 7: the Drop tier's enumerated causes).
	PacketsDropped *prometheus.CounterVec

	// HandshakePackets counts switch-ingress packets that carried a
	// handshake nonce (n <= 3) rather than an established handle.
	HandshakePackets prometheus.Counter

	// RunPackets counts switch-ingress packets demultiplexed by handle.
	RunPackets prometheus.Counter

	// BufferedMessages tracks the current occupancy of the buffered-message
	// store.
	BufferedMessages prometheus.Gauge

	// DiscoveredPaths counts DISCOVERED_PATH events emitted.
	DiscoveredPaths prometheus.Counter
}

// NewCollector builds a Collector and registers every metric against reg. If
// reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Sessions,
		c.SessionsCreated,
		c.SessionsEnded,
		c.PacketsDropped,
		c.HandshakePackets,
		c.RunPackets,
		c.BufferedMessages,
		c.DiscoveredPaths,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions",
			Help:      "Number of currently live sessions.",
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_created_total",
			Help:      "Total sessions created.",
		}),
		SessionsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_ended_total",
			Help:      "Total sessions torn down.",
		}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_dropped_total",
			Help:      "Total packets dropped, by reason.",
		}, []string{labelReason}),
		HandshakePackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handshake_packets_total",
			Help:      "Total switch-ingress packets carrying a handshake nonce.",
		}),
		RunPackets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "run_packets_total",
			Help:      "Total switch-ingress packets demultiplexed by handle.",
		}),
		BufferedMessages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "buffered_messages",
			Help:      "Current occupancy of the buffered-message store.",
		}),
		DiscoveredPaths: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "discovered_paths_total",
			Help:      "Total DISCOVERED_PATH events emitted.",
		}),
	}
}

// DropReason is a labeled cause passed to PacketsDropped.WithLabelValues.
type DropReason string

const (
	DropRunt              DropReason = "runt"
	DropUnknownHandle     DropReason = "unknown_handle"
	DropShortHandshake    DropReason = "short_handshake"
	DropBadHandshakeKey   DropReason = "bad_handshake_key"
	DropOwnKey            DropReason = "own_key"
	DropDecryptFailed     DropReason = "decrypt_failed"
	DropBufferFull        DropReason = "buffer_full"
	DropSessionCreateFail DropReason = "session_create_failed"
	DropHandshakeEncrypt  DropReason = "handshake_encrypt_failed"
)

// RecordDrop increments the PacketsDropped counter for reason.
func (c *Collector) RecordDrop(reason DropReason) {
	c.PacketsDropped.WithLabelValues(string(reason)).Inc()
}
