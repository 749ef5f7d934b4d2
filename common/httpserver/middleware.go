// common/httpserver/middleware.go
package httpserver

import (
	"errors"
	"net/http"

	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/common/safe"
)

// RecoverMiddleware: паника в обработчике → 500 и запись со стеком.
// http.ErrAbortHandler пробрасывается дальше, как того ждёт net/http.
func RecoverMiddleware(log *logger.Logger) Middleware {
	log = log.Named("http-recover")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := safe.Call(func() error {
				next.ServeHTTP(w, r)
				return nil
			})
			var pe *safe.PanicError
			if !errors.As(err, &pe) {
				return
			}
			if errors.Is(pe, http.ErrAbortHandler) {
				panic(http.ErrAbortHandler)
			}
			log.WithContext(r.Context()).Error("handler panicked",
				zap.String("path", r.URL.Path),
				zap.Any("panic", pe.Value),
				zap.ByteString("stack", pe.Stack),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		})
	}
}

// CORSMiddleware для дашборда; пустой список origins разрешает всё.
func CORSMiddleware(origins []string) Middleware {
	if len(origins) == 0 {
		return cors.AllowAll().Handler
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	})
}
