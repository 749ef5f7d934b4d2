// common/prometheus/prometheus.go
//
// Пакет prometheus: общий реестр и /metrics для всех подсистем сервиса.
package prometheus

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler отдаёт метрики глобального реестра; ошибки сбора не роняют ответ.
func Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(prometheus.DefaultRegisterer,
		promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		}))
}

// MustRegisterMany регистрирует cs в r (nil → DefaultRegisterer).
// Повторная регистрация того же коллектора допустима: RegisterMetrics
// пакетов вызываются и из тестов, и из app.Run.
func MustRegisterMany(r prometheus.Registerer, cs ...prometheus.Collector) {
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	for _, c := range cs {
		err := r.Register(c)
		var are prometheus.AlreadyRegisteredError
		if err == nil || errors.As(err, &are) {
			continue
		}
		panic(err)
	}
}
