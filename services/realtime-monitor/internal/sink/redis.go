// services/realtime-monitor/internal/sink/redis.go
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
)

// Store: то, что RedisSink берёт от common/redis.Client.
type Store interface {
	Set(ctx context.Context, name string, value []byte) error
	Get(ctx context.Context, name string) ([]byte, error)
	Ping(ctx context.Context) error
	Close() error
}

// RedisSink хранит последний апдейт каждого канала.
type RedisSink struct {
	store Store
	log   *logger.Logger
}

func NewRedis(store Store, log *logger.Logger) *RedisSink {
	return &RedisSink{store: store, log: log.Named("redis-sink")}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Write(ctx context.Context, u realtime.Update) error {
	ctx, span := tracer.Start(ctx, "RedisSink.Write",
		trace.WithAttributes(attribute.String("channel", u.Channel)),
	)
	defer span.End()

	value, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("redis-sink: marshal: %w", err)
	}
	if err := s.store.Set(ctx, u.Channel, value); err != nil {
		span.RecordError(err)
		return fmt.Errorf("redis-sink: %w", err)
	}
	return nil
}

// Latest возвращает последний сохранённый апдейт канала; ok=false, если его нет.
func (s *RedisSink) Latest(ctx context.Context, channel string) (realtime.Update, bool, error) {
	raw, err := s.store.Get(ctx, channel)
	if err != nil {
		return realtime.Update{}, false, fmt.Errorf("redis-sink: %w", err)
	}
	if raw == nil {
		return realtime.Update{}, false, nil
	}
	var u realtime.Update
	if err := json.Unmarshal(raw, &u); err != nil {
		return realtime.Update{}, false, fmt.Errorf("redis-sink: decode %s: %w", channel, err)
	}
	return u, true, nil
}

func (s *RedisSink) Ping(ctx context.Context) error { return s.store.Ping(ctx) }

func (s *RedisSink) Close() error { return s.store.Close() }
