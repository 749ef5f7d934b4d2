// common/middleware/metrics.go
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	promutil "github.com/YaganovValera/crypto-realtime/common/prometheus"
)

var (
	metricsOnce sync.Once

	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "realtime", Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by route, method and status code",
	}, []string{"route", "method", "code"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "realtime", Subsystem: "http", Name: "request_duration_seconds",
		Help: "HTTP request latency",
		// /status/health ждёт pong до health_timeout
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method"})

	inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "realtime", Subsystem: "http", Name: "in_flight_requests",
		Help: "Requests currently being served",
	})
)

// RegisterMetrics; nil → DefaultRegisterer.
func RegisterMetrics(r prometheus.Registerer) {
	metricsOnce.Do(func() {
		promutil.MustRegisterMany(r, requestsTotal, requestDuration, inFlight)
	})
}

// Metrics считает запросы по шаблону маршрута. Шаблон известен только после
// того, как ServeMux выбрал обработчик, поэтому метки ставятся после next.
func Metrics() Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inFlight.Inc()
			defer inFlight.Dec()

			start := time.Now()
			sw := wrap(w)
			r = withRouteContext(r)
			next.ServeHTTP(sw, r)

			rt := route(r)
			requestsTotal.WithLabelValues(rt, r.Method, strconv.Itoa(sw.status)).Inc()
			requestDuration.WithLabelValues(rt, r.Method).Observe(time.Since(start).Seconds())
		})
	}
}
