// common/middleware/accesslog.go
package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

// AccessLog пишет строку на запрос; 5xx → error, 4xx → warn, остальное → debug,
// чтобы опрос /status дашбордом не засорял info.
func AccessLog(log *logger.Logger) Func {
	log = log.Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := wrap(w)
			r = withRouteContext(r)
			next.ServeHTTP(sw, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("route", route(r)),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Int("bytes", sw.bytes),
				zap.Duration("latency", time.Since(start)),
			}
			entry := log.WithContext(r.Context())
			switch {
			case sw.status >= 500:
				entry.Error("request", fields...)
			case sw.status >= 400:
				entry.Warn("request", fields...)
			default:
				entry.Debug("request", fields...)
			}
		})
	}
}
