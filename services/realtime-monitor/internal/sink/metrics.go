// services/realtime-monitor/internal/sink/metrics.go
package sink

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	promutil "github.com/YaganovValera/crypto-realtime/common/prometheus"
)

var (
	metricsOnce sync.Once

	enqueuedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "forwarder", Name: "enqueued_total",
		Help: "Updates accepted into the forward queue",
	})
	droppedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "forwarder", Name: "dropped_total",
		Help: "Updates dropped because the queue was full or closed",
	})
	queueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "realtime", Subsystem: "forwarder", Name: "queue_depth",
		Help: "Updates waiting in the forward queue",
	})
	writesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "forwarder", Name: "writes_total",
		Help: "Sink writes by result",
	}, []string{"sink", "result"})
	writeLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "realtime", Subsystem: "forwarder", Name: "write_latency_seconds",
		Help:    "Latency of a single sink write",
		Buckets: prometheus.DefBuckets,
	}, []string{"sink"})
)

// RegisterMetrics регистрирует метрики forwarder-а. nil → DefaultRegisterer.
func RegisterMetrics(r prometheus.Registerer) {
	metricsOnce.Do(func() {
		promutil.MustRegisterMany(r, enqueuedTotal, droppedTotal, queueDepth, writesTotal, writeLatency)
	})
}
