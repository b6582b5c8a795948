package poolgrpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of the bootstrap server.
type Metrics struct {
	// Snapshot serving metrics.
	ExportsTotal   prometheus.Counter
	ChunksSent     prometheus.Counter
	ExportBytes    prometheus.Counter
	ExportDuration prometheus.Histogram

	// PoolMessages tracks the pending-message count last observed when
	// serving PoolInfo or a snapshot export.
	PoolMessages prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on reg under the
// given namespace.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ExportsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_exports_total",
			Help:      "Total number of snapshot exports served",
		}),
		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_chunks_sent_total",
			Help:      "Total number of snapshot chunks streamed to peers",
		}),
		ExportBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_export_bytes_total",
			Help:      "Total snapshot bytes streamed to peers",
		}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snapshot_export_duration_seconds",
			Help:      "Snapshot export duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		PoolMessages: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_messages",
			Help:      "Pending messages in the served pool",
		}),
	}
}
