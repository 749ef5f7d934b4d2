// services/realtime-monitor/internal/sink/kafka.go
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	commonkafka "github.com/YaganovValera/crypto-realtime/common/kafka"
	"github.com/YaganovValera/crypto-realtime/common/logger"
	"github.com/YaganovValera/crypto-realtime/common/telemetry"
	"github.com/YaganovValera/crypto-realtime/services/realtime-monitor/pkg/realtime"
)

var tracer = telemetry.Tracer("realtime-monitor/sink")

// KafkaSink публикует апдейты JSON-ом в один топик с ключом = канал,
// чтобы порядок внутри канала сохранялся в пределах партиции.
type KafkaSink struct {
	producer commonkafka.Producer
	topic    string
	log      *logger.Logger
}

func NewKafka(p commonkafka.Producer, topic string, log *logger.Logger) *KafkaSink {
	return &KafkaSink{producer: p, topic: topic, log: log.Named("kafka-sink")}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Write(ctx context.Context, u realtime.Update) error {
	ctx, span := tracer.Start(ctx, "KafkaSink.Write",
		trace.WithAttributes(
			attribute.String("channel", u.Channel),
			attribute.String("topic", s.topic),
		),
	)
	defer span.End()

	value, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("kafka-sink: marshal: %w", err)
	}
	if err := s.producer.Publish(ctx, s.topic, []byte(u.Channel), value); err != nil {
		span.RecordError(err)
		s.log.WithContext(ctx).Error("publish failed", zap.String("channel", u.Channel), zap.Error(err))
		return fmt.Errorf("kafka-sink: publish: %w", err)
	}
	return nil
}

// Ping: для readiness.
func (s *KafkaSink) Ping(ctx context.Context) error { return s.producer.Ping(ctx) }

func (s *KafkaSink) Close() error { return s.producer.Close() }
