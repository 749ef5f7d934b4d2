// common/middleware/middleware.go
package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Func: HTTP-middleware.
type Func = func(http.Handler) http.Handler

// Compose собирает цепочку; первый middleware самый внешний.
func Compose(mws ...Func) Func {
	return func(next http.Handler) http.Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] != nil {
				next = mws[i](next)
			}
		}
		return next
	}
}

// statusWriter запоминает код ответа и размер тела.
type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func wrap(w http.ResponseWriter) *statusWriter {
	return &statusWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// withRouteContext заранее кладёт chi.Context: смонтированный chi-роутер
// заполнит его, и после next шаблон маршрута виден снаружи.
func withRouteContext(r *http.Request) *http.Request {
	if chi.RouteContext(r.Context()) != nil {
		return r
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, chi.NewRouteContext()))
}

// route: шаблон маршрута ("/status/latest/{channel}", "GET /metrics"),
// а не сырой путь: метки не должны зависеть от мусорных URL.
// Вызывать на том же *http.Request, что ушёл в next.
func route(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" && p != "/*" {
			return p
		}
	}
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}
