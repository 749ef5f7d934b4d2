// common/telemetry/otel.go
//
// Пакет telemetry поднимает OTLP/gRPC-экспорт трейсов. Выключенная
// телеметрия оставляет глобальный no-op провайдер otel.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/logger"
)

type Config struct {
	Enabled         bool          `mapstructure:"enabled"`
	Endpoint        string        `mapstructure:"endpoint"` // host:port коллектора
	ServiceName     string        `mapstructure:"service_name"`
	ServiceVersion  string        `mapstructure:"service_version"`
	Insecure        bool          `mapstructure:"insecure"`
	ReconnectPeriod time.Duration `mapstructure:"reconnect_period"`
	Timeout         time.Duration `mapstructure:"timeout"` // на создание экспортёра и на Shutdown
	SamplerRatio    float64       `mapstructure:"sampler_ratio"`
}

// ShutdownFunc сбрасывает буфер span'ов и закрывает экспортёр.
type ShutdownFunc func(context.Context) error

func noopShutdown(context.Context) error { return nil }

func (c *Config) normalize() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.ReconnectPeriod <= 0 {
		c.ReconnectPeriod = 5 * time.Second
	}
	if c.SamplerRatio < 0 || c.SamplerRatio > 1 {
		c.SamplerRatio = 1
	}
}

func (c Config) check() error {
	var errs []error
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service_name is required"))
	}
	if c.ServiceVersion == "" {
		errs = append(errs, errors.New("service_version is required"))
	}
	if c.SamplerRatio < 0 || c.SamplerRatio > 1 {
		errs = append(errs, fmt.Errorf("sampler_ratio %v out of [0,1]", c.SamplerRatio))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}

// sampler: крайние значения без хеширования trace id.
func (c Config) sampler() sdktrace.Sampler {
	switch c.SamplerRatio {
	case 0:
		return sdktrace.ParentBased(sdktrace.NeverSample())
	case 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(c.SamplerRatio))
	}
}

// InitTracer ставит глобальный TracerProvider и W3C-пропагатор.
func InitTracer(ctx context.Context, cfg Config, log *logger.Logger) (ShutdownFunc, error) {
	log = log.Named("telemetry")
	if !cfg.Enabled {
		log.Info("disabled")
		return noopShutdown, nil
	}
	cfg.normalize()
	if err := cfg.check(); err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithReconnectionPeriod(cfg.ReconnectPeriod),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(dialCtx, opts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: otlp exporter %s: %w", cfg.Endpoint, err)
	}

	// schemaless: не конфликтует со schema URL resource.Default()
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		_ = exporter.Shutdown(context.Background())
		return nil, fmt.Errorf("telemetry: resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(cfg.sampler()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	log.Info("exporting traces",
		zap.String("endpoint", cfg.Endpoint),
		zap.Float64("sampler_ratio", cfg.SamplerRatio),
	)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown: %w", err)
		}
		return nil
	}, nil
}

// Tracer: именованный tracer глобального провайдера.
func Tracer(name string) trace.Tracer {
	if name == "" {
		name = "realtime"
	}
	return otel.Tracer(name)
}
