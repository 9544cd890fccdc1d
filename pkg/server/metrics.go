package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/treediff/pkg/vdom"
)

// Reconciliation outcomes used as the status label.
const (
	statusOK        = "ok"
	statusMalformed = "malformed"
	statusDuplicate = "duplicate_key"
	statusInvalid   = "invalid_request"
	statusError     = "error"
)

// Metrics holds the Prometheus collectors of a Server.
type Metrics struct {
	reconciliations *prometheus.CounterVec
	duration        prometheus.Histogram
	patches         *prometheus.CounterVec
	nodes           prometheus.Histogram
	wsConnections   prometheus.Gauge
	wsErrors        *prometheus.CounterVec
}

// NewMetrics registers the server metrics with reg.
//
// Metrics collected:
//   - treediff_reconciliations_total: reconciliations by status
//   - treediff_reconcile_duration_seconds: decode plus diff time
//   - treediff_patches_total: emitted patches by op
//   - treediff_snapshot_nodes: size of the new snapshot
//   - treediff_websocket_connections: open WebSocket connections
//   - treediff_websocket_errors_total: WebSocket errors by type
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		reconciliations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treediff",
			Name:      "reconciliations_total",
			Help:      "Total number of reconciliations by status",
		}, []string{"status"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "treediff",
			Name:      "reconcile_duration_seconds",
			Help:      "Time spent decoding and reconciling one request",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10), // 100µs to ~26s
		}),

		patches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treediff",
			Name:      "patches_total",
			Help:      "Total number of patches emitted by op",
		}, []string{"op"}),

		nodes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "treediff",
			Name:      "snapshot_nodes",
			Help:      "Number of entries in the new snapshot",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 7), // 1 to 1M
		}),

		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "treediff",
			Name:      "websocket_connections",
			Help:      "Number of open WebSocket connections",
		}),

		wsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treediff",
			Name:      "websocket_errors_total",
			Help:      "Total WebSocket errors by type",
		}, []string{"type"}),
	}
}

func (m *Metrics) recordPatches(patches []vdom.Patch) {
	for op, n := range vdom.Count(patches) {
		m.patches.WithLabelValues(op.String()).Add(float64(n))
	}
}
