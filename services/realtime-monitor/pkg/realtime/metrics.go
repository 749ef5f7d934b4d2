// services/realtime-monitor/pkg/realtime/metrics.go
package realtime

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	promutil "github.com/YaganovValera/crypto-realtime/common/prometheus"
)

// Коллекторы создаются сразу, регистрируются по требованию: без
// RegisterMetrics клиент работает, метрики просто никуда не экспортируются.
var (
	metricsOnce sync.Once

	dispatchedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "client", Name: "dispatched_total",
		Help: "Events delivered to at least one callback",
	}, []string{"event"})

	droppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "client", Name: "dropped_total",
		Help: "Inbound events dropped by the dispatcher",
	}, []string{"reason"})

	callbackFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "client", Name: "callback_failures_total",
		Help: "Callbacks that returned an error or panicked",
	}, []string{"kind"})

	wireRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "client", Name: "wire_requests_total",
		Help: "Outbound subscribe/unsubscribe/ping requests",
	}, []string{"event", "reason"})

	connectionState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "realtime", Subsystem: "client", Name: "connection_state",
		Help: "0=disconnected 1=connecting 2=connected",
	})

	latencySeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "realtime", Subsystem: "client", Name: "latency_seconds",
		Help: "Most recent ping/pong round trip",
	})

	healthChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "client", Name: "health_checks_total",
		Help: "Active health checks by result",
	}, []string{"result"})
)

const (
	dropMalformed     = "malformed"
	dropNoSubscribers = "no_subscribers"
	dropUnknownEvent  = "unknown_event"

	reasonImmediate = "immediate"
	reasonReplay    = "replay"
	reasonPassive   = "passive"
	reasonHealth    = "health"
)

// RegisterMetrics регистрирует метрики клиента. nil → DefaultRegisterer.
func RegisterMetrics(r prometheus.Registerer) {
	metricsOnce.Do(func() {
		promutil.MustRegisterMany(r,
			dispatchedTotal, droppedTotal, callbackFailures, wireRequests,
			connectionState, latencySeconds, healthChecks,
		)
	})
}
