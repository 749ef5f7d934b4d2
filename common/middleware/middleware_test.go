package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/YaganovValera/crypto-realtime/common/ctxkeys"
	"github.com/YaganovValera/crypto-realtime/common/logger"
)

func TestRequestID_GeneratesAndPropagates(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Fatal("request id not stored in context")
	}
	if got := rec.Header().Get(HeaderRequestID); got != seen {
		t.Errorf("header = %q; ctx = %q", got, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Errorf("incoming id not reused: %q", seen)
	}
}

func TestRequestID_RejectsGarbage(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.RequestIDFromContext(r.Context())
	}))
	for _, bad := range []string{"has space", strings.Repeat("x", maxRequestIDLen+1)} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(HeaderRequestID, bad)
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen == bad || seen == "" {
			t.Errorf("bad id %q must be replaced, got %q", bad, seen)
		}
	}
}

func TestCompose_Order(t *testing.T) {
	var order []string
	mk := func(name string) Func {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxkeys.TraceIDKey, name)))
			})
		}
	}
	h := Compose(mk("outer"), nil, mk("inner"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := []string{"outer", "inner", "handler"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v; want %v", order, want)
	}
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /tea/{kind}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := Metrics()(mux)

	counter := requestsTotal.WithLabelValues("GET /tea/{kind}", http.MethodGet, "418")
	before := testutil.ToFloat64(counter)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea/green", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tea/black", nil))
	if delta := testutil.ToFloat64(counter) - before; delta != 2 {
		t.Errorf("requests_total delta = %v; want 2", delta)
	}

	missBefore := testutil.ToFloat64(requestsTotal.WithLabelValues("unmatched", http.MethodGet, "404"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	if d := testutil.ToFloat64(requestsTotal.WithLabelValues("unmatched", http.MethodGet, "404")) - missBefore; d != 1 {
		t.Errorf("unmatched delta = %v; want 1", d)
	}
}

func TestMetrics_LabelsByChiPattern(t *testing.T) {
	sub := chi.NewRouter()
	sub.Get("/status/latest/{channel}", func(w http.ResponseWriter, _ *http.Request) {})
	mux := http.NewServeMux()
	mux.Handle("/status/", sub)
	h := Metrics()(mux)

	counter := requestsTotal.WithLabelValues("/status/latest/{channel}", http.MethodGet, "200")
	before := testutil.ToFloat64(counter)
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status/latest/market:BTCUSDT:1h", nil))
	if delta := testutil.ToFloat64(counter) - before; delta != 1 {
		t.Errorf("requests_total delta = %v; want 1", delta)
	}
}

func TestAccessLog_LevelByStatus(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	log := logger.FromZap(zap.New(core))

	h := Compose(RequestID(), AccessLog(log))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fail" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Level != zap.DebugLevel || entries[1].Level != zap.ErrorLevel {
		t.Errorf("levels = %v, %v", entries[0].Level, entries[1].Level)
	}
	f := entries[0].ContextMap()
	if f["bytes"] != int64(2) || f["request_id"] == "" || f["request_id"] == nil {
		t.Errorf("fields = %v", f)
	}
}
