// common/middleware/requestid.go
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

const HeaderRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID берёт X-Request-ID из запроса (если он вменяемый) или генерирует
// UUID, кладёт в контекст для logger.WithContext и возвращает в ответе.
func RequestID() Func {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(HeaderRequestID)
			if !validRequestID(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, reqID)
			next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), reqID)))
		})
	}
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
