// common/kafka/interface.go
package kafka

import "context"

// Producer описывает то, что нужно sink-у от Kafka; sarama сюда не протекает.
type Producer interface {
	// Publish возвращает nil после подтверждения по RequiredAcks.
	Publish(ctx context.Context, topic string, key, value []byte) error
	Ping(ctx context.Context) error
	Close() error
}
