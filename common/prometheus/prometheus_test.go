package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestMustRegisterMany_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "t"})

	MustRegisterMany(reg, c)
	MustRegisterMany(reg, c)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) != 1 {
		t.Errorf("got %d families; want 1", len(mfs))
	}
}

func TestMustRegisterMany_PanicsOnConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	MustRegisterMany(reg, prometheus.NewCounter(prometheus.CounterOpts{Name: "dup", Help: "a"}))
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for conflicting collector")
		}
	}()
	MustRegisterMany(reg, prometheus.NewGauge(prometheus.GaugeOpts{Name: "dup", Help: "b"}))
}

func TestHandler_ServesDefaultRegistry(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("default collectors missing from output")
	}
}
