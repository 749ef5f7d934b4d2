// services/realtime-monitor/pkg/wstransport/metrics.go
package wstransport

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	promutil "github.com/YaganovValera/crypto-realtime/common/prometheus"
)

var (
	once sync.Once

	wsConnects = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "ws", Name: "connects_total",
		Help: "WebSocket dial attempts by status",
	}, []string{"status"})

	wsFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "ws", Name: "frames_total",
		Help: "Frames by direction and event",
	}, []string{"direction", "event"})

	wsDecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "ws", Name: "decode_errors_total",
		Help: "Inbound frames that are not valid envelopes",
	})
)

// RegisterMetrics регистрирует метрики транспорта. nil → DefaultRegisterer.
func RegisterMetrics(r prometheus.Registerer) {
	once.Do(func() {
		promutil.MustRegisterMany(r, wsConnects, wsFrames, wsDecodeErrors)
	})
}

func incConnect(status string)         { wsConnects.WithLabelValues(status).Inc() }
func incFrame(direction, event string) { wsFrames.WithLabelValues(direction, event).Inc() }
