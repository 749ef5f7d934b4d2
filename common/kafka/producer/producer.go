// common/kafka/producer/producer.go
package producer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/dnwe/otelsarama"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/YaganovValera/crypto-realtime/common/backoff"
	commonkafka "github.com/YaganovValera/crypto-realtime/common/kafka"
	"github.com/YaganovValera/crypto-realtime/common/logger"
)

var serviceLabel = "unknown"

// SetServiceLabel вызывается из common.InitServiceName(..) один раз при старте.
func SetServiceLabel(name string) { serviceLabel = name }

var (
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "realtime", Subsystem: "kafka_producer", Name: "publish_total",
			Help: "Kafka publishes by result (ok|error)",
		},
		[]string{"service", "topic", "result"},
	)
	publishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "realtime", Subsystem: "kafka_producer", Name: "publish_latency_seconds",
			Help:    "Publish latency including retries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	connectErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "realtime", Subsystem: "kafka_producer", Name: "connect_errors_total",
			Help: "Kafka producer connect errors",
		},
		[]string{"service"},
	)
)

var tracer = otel.Tracer("kafka-producer")

// Config: настройки SyncProducer. Нулевые значения заменяются в applyDefaults().
type Config struct {
	Brokers []string `mapstructure:"brokers"`

	// "all" (дефолт) | "leader" | "none".
	RequiredAcks string `mapstructure:"required_acks"`

	Timeout time.Duration `mapstructure:"timeout"`

	// "none" (дефолт), "gzip", "snappy", "lz4", "zstd".
	Compression string `mapstructure:"compression"`

	// Ноль → disable.
	FlushFrequency time.Duration `mapstructure:"flush_frequency"`
	FlushMessages  int           `mapstructure:"flush_messages"`

	Backoff backoff.Config `mapstructure:"backoff"`
}

func (c *Config) applyDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	if c.RequiredAcks == "" {
		c.RequiredAcks = "all"
	}
	if c.Compression == "" {
		c.Compression = "none"
	}
}

func (c Config) validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka producer: brokers required")
	}
	return nil
}

var requiredAcks = map[string]sarama.RequiredAcks{
	"all":    sarama.WaitForAll,
	"leader": sarama.WaitForLocal,
	"none":   sarama.NoResponse,
}

var compressions = map[string]sarama.CompressionCodec{
	"none":   sarama.CompressionNone,
	"gzip":   sarama.CompressionGZIP,
	"snappy": sarama.CompressionSnappy,
	"lz4":    sarama.CompressionLZ4,
	"zstd":   sarama.CompressionZSTD,
}

func buildSaramaConfig(c Config) (*sarama.Config, error) {
	sc := sarama.NewConfig()

	acks, ok := requiredAcks[strings.ToLower(c.RequiredAcks)]
	if !ok {
		return nil, fmt.Errorf("kafka producer: invalid RequiredAcks %q", c.RequiredAcks)
	}
	codec, ok := compressions[strings.ToLower(c.Compression)]
	if !ok {
		return nil, fmt.Errorf("kafka producer: invalid Compression %q", c.Compression)
	}

	sc.Producer.RequiredAcks = acks
	sc.Producer.Compression = codec
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Timeout = c.Timeout
	// идемпотентность требует WaitForAll и одного in-flight запроса
	if acks == sarama.WaitForAll {
		sc.Producer.Idempotent = true
		sc.Net.MaxOpenRequests = 1
	}
	if c.FlushFrequency > 0 {
		sc.Producer.Flush.Frequency = c.FlushFrequency
	}
	if c.FlushMessages > 0 {
		sc.Producer.Flush.Messages = c.FlushMessages
	}
	return sc, nil
}

type kafkaProducer struct {
	prod       sarama.SyncProducer
	client     sarama.Client
	log        *logger.Logger
	backoffCfg backoff.Config
}

// New создает SyncProducer c ретраями подключения и otel-обёрткой.
func New(ctx context.Context, cfg Config, log *logger.Logger) (commonkafka.Producer, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log = log.Named("kafka-producer")

	sc, err := buildSaramaConfig(cfg)
	if err != nil {
		return nil, err
	}

	ctxConn, span := tracer.Start(ctx, "Connect",
		trace.WithAttributes(attribute.StringSlice("brokers", cfg.Brokers)))
	defer span.End()

	var (
		client   sarama.Client
		syncProd sarama.SyncProducer
	)
	connect := func(ctx context.Context) error {
		c, err := sarama.NewClient(cfg.Brokers, sc)
		if err != nil {
			connectErrors.WithLabelValues(serviceLabel).Inc()
			return err
		}
		p, err := sarama.NewSyncProducerFromClient(c)
		if err != nil {
			connectErrors.WithLabelValues(serviceLabel).Inc()
			_ = c.Close()
			return err
		}
		client, syncProd = c, p
		return nil
	}
	if err := backoff.Execute(ctxConn, "kafka-connect", cfg.Backoff, log, connect); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		log.Error("kafka producer connect failed", zap.Error(err))
		return nil, fmt.Errorf("kafka producer: connect: %w", err)
	}

	log.Info("kafka producer ready", zap.Strings("brokers", cfg.Brokers))
	return newFromSync(otelsarama.WrapSyncProducer(sc, syncProd), client, cfg.Backoff, log), nil
}

func newFromSync(p sarama.SyncProducer, client sarama.Client, bo backoff.Config, log *logger.Logger) *kafkaProducer {
	return &kafkaProducer{prod: p, client: client, log: log, backoffCfg: bo}
}

// isPermanent: ошибки, которые повтор не исправит.
func isPermanent(err error) bool {
	return errors.Is(err, sarama.ErrMessageSizeTooLarge) ||
		errors.Is(err, sarama.ErrInvalidMessage) ||
		errors.Is(err, sarama.ErrTopicAuthorizationFailed)
}

// Publish отправляет сообщение в Kafka c ретраями.
func (k *kafkaProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	ctxPub, span := tracer.Start(ctx, "Publish", trace.WithAttributes(attribute.String("topic", topic)))
	defer span.End()
	start := time.Now()

	send := func(ctx context.Context) error {
		_, _, err := k.prod.SendMessage(&sarama.ProducerMessage{
			Topic: topic,
			Key:   sarama.ByteEncoder(key),
			Value: sarama.ByteEncoder(value),
		})
		if err != nil && isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Execute(ctxPub, "kafka-publish", k.backoffCfg, k.log, send)
	publishLatency.WithLabelValues(serviceLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		publishTotal.WithLabelValues(serviceLabel, topic, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		k.log.WithContext(ctx).Error("publish failed", zap.String("topic", topic), zap.Error(err))
		return err
	}
	publishTotal.WithLabelValues(serviceLabel, topic, "ok").Inc()
	return nil
}

// Ping обновляет метаданные клиента, проверяя доступность кластера.
func (k *kafkaProducer) Ping(ctx context.Context) error {
	_, span := tracer.Start(ctx, "Ping")
	defer span.End()
	if k.client == nil {
		return errors.New("kafka producer: no client")
	}
	if err := k.client.RefreshMetadata(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// Close корректно закрывает продьюсер и клиент.
func (k *kafkaProducer) Close() error {
	if err := k.prod.Close(); err != nil {
		k.log.Error("producer close failed", zap.Error(err))
		return err
	}
	if k.client != nil && !k.client.Closed() {
		if err := k.client.Close(); err != nil {
			k.log.Error("client close failed", zap.Error(err))
			return err
		}
	}
	k.log.Info("kafka producer closed")
	return nil
}
