// services/realtime-monitor/internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/YaganovValera/crypto-realtime/common"
	httpserver "github.com/YaganovValera/crypto-realtime/common/httpserver"
	producer "github.com/YaganovValera/crypto-realtime/common/kafka/producer"
	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/common/middleware"
	commonredis "github.com/YaganovValera/crypto-realtime/common/redis"
	"github.com/YaganovValera/crypto-realtime/common/shutdown"
	"github.com/YaganovValera/crypto-realtime/common/telemetry"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/internal/config"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/internal/sink"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/internal/status"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/wstransport"
)

const (
	shutdownTimeout  = 10 * time.Second
	readinessTimeout = 2 * time.Second
)

func Run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	common.InitServiceName(cfg.ServiceName)
	realtime.RegisterMetrics(nil)
	wstransport.RegisterMetrics(nil)
	sink.RegisterMetrics(nil)
	middleware.RegisterMetrics(nil)

	cfg.Telemetry.ServiceName = cfg.ServiceName
	cfg.Telemetry.ServiceVersion = cfg.ServiceVersion
	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.Telemetry, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdown.GracefulShutdown("telemetry", shutdownTimeout, shutdown.Func(shutdownTracer), log)

	// 1) Sinks
	sinks, latest, err := openSinks(ctx, cfg, log)
	if err != nil {
		return err
	}
	fwd := sink.NewForwarder(cfg.Forwarder.QueueSize, cfg.Forwarder.WriteTimeout, log, sinks...)
	defer shutdown.GracefulShutdown("sinks", shutdownTimeout, shutdown.Closer(fwd.Close), log)

	// 2) Transport + client
	transport, err := wstransport.New(cfg.WS, log)
	if err != nil {
		return fmt.Errorf("ws transport init: %w", err)
	}
	client, err := realtime.New(transport, cfg.Realtime.Config, log)
	if err != nil {
		return fmt.Errorf("realtime client init: %w", err)
	}
	defer shutdown.GracefulShutdown("realtime-client", shutdownTimeout, shutdown.Closer(client.Close), log)

	// подписки до Start: уйдут на провод при первом connect
	forward := fwd.Callback()
	for _, ch := range cfg.Realtime.Channels {
		client.Subscribe(ch, forward)
	}
	client.Subscribe(realtime.ChannelSystem, realtime.Func(func(u realtime.Update) {
		log.Info("system message", zap.String("event", u.Event), zap.ByteString("data", u.Data))
	}))

	// 3) HTTP
	readiness := func() error {
		if !client.IsConnected() {
			return realtime.ErrNotConnected
		}
		pctx, cancel := context.WithTimeout(context.Background(), readinessTimeout)
		defer cancel()
		if err := fwd.Ping(pctx); err != nil {
			return fmt.Errorf("sinks: %w", err)
		}
		return nil
	}
	routes := status.New(client, latest, log).Routes()
	routes["/log/level"] = log.LevelHandler()
	httpSrv, err := httpserver.New(
		cfg.HTTP.Config,
		readiness,
		log,
		routes,
		httpserver.RecoverMiddleware(log),
		middleware.RequestID(),
		middleware.Metrics(),
		middleware.AccessLog(log),
		httpserver.CORSMiddleware(cfg.HTTP.CORSOrigins),
	)
	if err != nil {
		return fmt.Errorf("httpserver init: %w", err)
	}

	log.WithContext(ctx).Info("realtime-monitor: components initialized",
		zap.String("ws.url", cfg.WS.URL),
		zap.Strings("channels", cfg.Realtime.Channels),
		zap.Int("sinks", len(sinks)),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return httpSrv.Start(ctx) })
	g.Go(func() error { return fwd.Run(ctx) })
	g.Go(func() error {
		if err := client.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	})
	if cfg.Realtime.HealthCheckInterval > 0 {
		g.Go(func() error {
			runHealthChecks(ctx, client, cfg.Realtime.HealthCheckInterval, log)
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("realtime-monitor exited with error", zap.Error(err))
		return err
	}
	log.Info("realtime-monitor exited cleanly")
	return nil
}

func openSinks(ctx context.Context, cfg *config.Config, log *logger.Logger) ([]sink.Sink, status.LatestReader, error) {
	var (
		sinks  []sink.Sink
		latest status.LatestReader
	)

	if cfg.Kafka.Enabled {
		p, err := producer.New(ctx, cfg.Kafka.Config, log)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer init: %w", err)
		}
		sinks = append(sinks, sink.NewKafka(p, cfg.Kafka.Topic, log))
	}

	if cfg.Redis.Enabled {
		rc, err := commonredis.Connect(ctx, cfg.Redis.Config, log)
		if err != nil {
			for _, s := range sinks {
				_ = s.Close()
			}
			return nil, nil, fmt.Errorf("redis init: %w", err)
		}
		rs := sink.NewRedis(rc, log)
		sinks = append(sinks, rs)
		latest = rs
	}
	return sinks, latest, nil
}

// runHealthChecks периодически делает активную проверку; результат только логируется,
// latency и счётчики обновляет сам клиент.
func runHealthChecks(ctx context.Context, client *realtime.Client, every time.Duration, log *logger.Logger) {
	log = log.Named("health")
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rtt, err := client.CheckHealth(ctx)
			switch {
			case err == nil:
				log.Debug("health ok", zap.Duration("rtt", rtt))
			case errors.Is(err, realtime.ErrNotConnected), errors.Is(err, context.Canceled):
			default:
				log.Warn("health check failed", zap.Error(err))
			}
		}
	}
}
