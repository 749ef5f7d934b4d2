package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

func TestInitTracer_DisabledIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{}, logger.NewNop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestInitTracer_EnabledRequiresFields(t *testing.T) {
	_, err := InitTracer(context.Background(), Config{Enabled: true}, logger.NewNop())
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"endpoint", "service_name", "service_version"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestNormalize_ClampsRatio(t *testing.T) {
	cfg := Config{SamplerRatio: 2}
	cfg.normalize()
	if cfg.SamplerRatio != 1 || cfg.Timeout <= 0 || cfg.ReconnectPeriod <= 0 {
		t.Errorf("normalized = %+v", cfg)
	}
	if err := (Config{Endpoint: "otel:4317", ServiceName: "svc", ServiceVersion: "v1", SamplerRatio: 0.5}).check(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestSampler_Extremes(t *testing.T) {
	cases := map[float64]string{0: "AlwaysOffSampler", 1: "AlwaysOnSampler", 0.25: "TraceIDRatioBased"}
	for ratio, want := range cases {
		got := Config{SamplerRatio: ratio}.sampler().Description()
		if !strings.Contains(got, want) {
			t.Errorf("ratio %v: sampler %q does not contain %q", ratio, got, want)
		}
	}
}

func TestTracer_DefaultName(t *testing.T) {
	if Tracer("") == nil {
		t.Fatal("nil tracer")
	}
}
